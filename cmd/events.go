package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/patou-app/moderation-cli/internal/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events <track-id>",
	Short: "Show the audit history for one track, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		events, err := st.ListEvents(ctx, store.EventFilter{TrackID: args[0], Limit: limit})
		if err != nil {
			return eris.Wrap(err, "events")
		}

		if len(events) == 0 {
			fmt.Fprintln(os.Stderr, "No events for this track.")
			return nil
		}

		out, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

func init() {
	eventsCmd.Flags().Int("limit", 20, "maximum events to show")
	rootCmd.AddCommand(eventsCmd)
}

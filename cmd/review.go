package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/patou-app/moderation-cli/internal/model"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the review queue",
	Long:  "Commands for listing tracks awaiting review and resolving them with manual overrides.",
}

// -- review list --

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracks awaiting review, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
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
		events, err := st.ListEventsInReview(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "review list")
		}

		if len(events) == 0 {
			fmt.Fprintln(os.Stderr, "Review queue is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TRACK\tTITLE\tARTIST\tRULES\tWHEN")
		for _, ev := range events {
			title, artist := "-", "-"
			if ev.TrackMetadata != nil {
				title, artist = ev.TrackMetadata.Name, ev.TrackMetadata.Artist
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				ev.TrackID, title, artist,
				strings.Join(ev.RulesFired, ","),
				ev.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

// -- review override --

var (
	overrideScope string
	overrideType  string
)

var reviewOverrideCmd = &cobra.Command{
	Use:   "override <track-or-artist-id> <allow|block>",
	Short: "Record a manual override decision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		decision := model.Decision(args[1])
		if !decision.ValidOverride() {
			return eris.Errorf("invalid decision %q (want allow or block)", args[1])
		}
		if overrideType != model.OverrideTypeTrack && overrideType != model.OverrideTypeArtist {
			return eris.Errorf("invalid override type %q (want track or artist)", overrideType)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		o, err := st.CreateOverride(ctx, overrideScope, overrideType, args[0], decision)
		if err != nil {
			return eris.Wrap(err, "review override")
		}

		fmt.Fprintf(os.Stdout, "Override %s: %s %s -> %s\n", o.ID, o.Type, o.Value, o.Decision)
		return nil
	},
}

func init() {
	reviewListCmd.Flags().Int("limit", 50, "maximum events to list")
	reviewOverrideCmd.Flags().StringVar(&overrideScope, "scope", "", "family or profile the override applies to")
	reviewOverrideCmd.Flags().StringVar(&overrideType, "type", model.OverrideTypeTrack, "override target type (track or artist)")
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewOverrideCmd)
	rootCmd.AddCommand(reviewCmd)
}

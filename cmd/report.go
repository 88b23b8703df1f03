package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/patou-app/moderation-cli/internal/model"
	"github.com/patou-app/moderation-cli/internal/report"
	"github.com/patou-app/moderation-cli/internal/store"
)

var (
	reportOut      string
	reportDecision string
	reportDays     int
	reportLimit    int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the audit log",
}

var reportExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export moderation events to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var decision model.Decision
		if reportDecision != "" {
			decision = model.Decision(reportDecision)
			if !decision.Valid() {
				return eris.Errorf("invalid decision filter %q", reportDecision)
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		filter := store.EventFilter{Decision: decision, Limit: reportLimit}
		if reportDays > 0 {
			filter.Since = time.Now().UTC().AddDate(0, 0, -reportDays)
		}

		events, err := st.ListEvents(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "report export")
		}

		if err := report.WriteXLSX(reportOut, events); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %d events to %s\n", len(events), reportOut)
		return nil
	},
}

func init() {
	reportExportCmd.Flags().StringVar(&reportOut, "out", "moderation-events.xlsx", "output file path")
	reportExportCmd.Flags().StringVar(&reportDecision, "decision", "", "filter by decision (allow, review, block)")
	reportExportCmd.Flags().IntVar(&reportDays, "days", 0, "only include events from the last N days")
	reportExportCmd.Flags().IntVar(&reportLimit, "limit", 10000, "maximum events to export")
	reportCmd.AddCommand(reportExportCmd)
	rootCmd.AddCommand(reportCmd)
}

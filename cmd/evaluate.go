package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/patou-app/moderation-cli/internal/engine"
)

var (
	evalProfileID string
	evalSource    string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <track-id>",
	Short: "Evaluate one track and print the decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Engine.Evaluate(ctx, args[0], evalProfileID, evalSource)
		if err != nil {
			var auditErr *engine.AuditError
			if !errors.As(err, &auditErr) {
				return err
			}
			// The verdict stands even when the audit write failed.
			zap.L().Warn("decision reached but not audited", zap.Error(err))
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evalProfileID, "profile", "", "child profile the track was requested for")
	evaluateCmd.Flags().StringVar(&evalSource, "source", "spotify", "where the track request originated")
	rootCmd.AddCommand(evaluateCmd)
}

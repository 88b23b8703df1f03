package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/patou-app/moderation-cli/internal/model"
)

var denylistCmd = &cobra.Command{
	Use:   "denylist",
	Short: "Maintain the banned-term list",
}

// -- denylist list --

var denylistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List denylist terms",
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

		terms, err := st.ListDenylist(ctx)
		if err != nil {
			return eris.Wrap(err, "denylist list")
		}

		if len(terms) == 0 {
			fmt.Fprintln(os.Stderr, "Denylist is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TERM\tCATEGORY\tSEVERITY")
		for _, t := range terms {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Term, t.Category, t.Severity)
		}
		return w.Flush()
	},
}

// -- denylist import --

var denylistImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import denylist terms from a YAML file",
	Long:  "Reads a YAML list of {term, category, severity} entries and upserts each. Existing terms keep their ID and get the imported category and severity.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var terms []model.DenylistTerm
		if err := yaml.Unmarshal(data, &terms); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		imported := 0
		for _, t := range terms {
			if t.Term == "" {
				continue
			}
			if t.Severity == "" {
				t.Severity = model.SeverityLow
			}
			if t.Severity != model.SeverityLow && t.Severity != model.SeverityMedium && t.Severity != model.SeverityHigh {
				return eris.Errorf("invalid severity %q for term %q", t.Severity, t.Term)
			}
			if _, err := st.UpsertDenylistTerm(ctx, t); err != nil {
				return eris.Wrapf(err, "import term %q", t.Term)
			}
			imported++
		}

		fmt.Fprintf(os.Stdout, "Imported %d terms.\n", imported)
		return nil
	},
}

// -- denylist add / remove --

var (
	termCategory string
	termSeverity string
)

var denylistAddCmd = &cobra.Command{
	Use:   "add <term>",
	Short: "Add or update one denylist term",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sev := model.Severity(termSeverity)
		if sev != model.SeverityLow && sev != model.SeverityMedium && sev != model.SeverityHigh {
			return eris.Errorf("invalid severity %q (want low, medium, or high)", termSeverity)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		t, err := st.UpsertDenylistTerm(ctx, model.DenylistTerm{
			Term:     args[0],
			Category: termCategory,
			Severity: sev,
		})
		if err != nil {
			return eris.Wrap(err, "denylist add")
		}
		fmt.Fprintf(os.Stdout, "Added %q (%s/%s)\n", t.Term, t.Severity, t.Category)
		return nil
	},
}

var denylistRemoveCmd = &cobra.Command{
	Use:   "remove <term>",
	Short: "Remove one denylist term",
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

		if err := st.DeleteDenylistTerm(ctx, args[0]); err != nil {
			return eris.Wrap(err, "denylist remove")
		}
		fmt.Fprintf(os.Stdout, "Removed %q\n", args[0])
		return nil
	},
}

func init() {
	denylistAddCmd.Flags().StringVar(&termCategory, "category", "", "term category (e.g. violence, profanity)")
	denylistAddCmd.Flags().StringVar(&termSeverity, "severity", string(model.SeverityLow), "term severity (low, medium, high)")
	denylistCmd.AddCommand(denylistListCmd)
	denylistCmd.AddCommand(denylistImportCmd)
	denylistCmd.AddCommand(denylistAddCmd)
	denylistCmd.AddCommand(denylistRemoveCmd)
	rootCmd.AddCommand(denylistCmd)
}

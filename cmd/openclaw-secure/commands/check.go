package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/systmms/openclaw-secure/internal/catalog"
	"github.com/systmms/openclaw-secure/internal/config"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/internal/scrub"
)

type checkReport struct {
	Backend string                 `json:"backend" yaml:"backend"`
	Keys    []scrub.KeyCheckResult `json:"keys" yaml:"keys"`
	Missing int                    `json:"missing" yaml:"missing"`
}

func NewCheckCommand(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report which secrets the backend holds",
		Long: `Probe the backend for every known secret without changing anything.

Exits with status 1 when at least one secret is missing.

Examples:
  openclaw-secure check
  openclaw-secure check --backend vault --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case "table", "json", "yaml":
			default:
				return apperrors.UserError{
					Message:    fmt.Sprintf("unsupported output format %q", output),
					Suggestion: "Use --output table, json or yaml",
				}
			}

			b, err := openBackend(cfg)
			if err != nil {
				return err
			}
			if !b.Available(cmd.Context()) {
				cfg.Logger.Warn("%v; every key will be reported missing", &apperrors.BackendUnavailableError{Backend: b.Name()})
			}

			report := checkReport{Backend: b.Name(), Keys: scrub.CheckAll(cmd.Context(), catalog.Default, b)}
			for _, r := range report.Keys {
				if !r.Exists {
					report.Missing++
				}
				if r.Err != nil {
					cfg.Logger.Debug("%s: %v", r.KeychainName, r.Err)
				}
			}

			if err := writeCheckReport(cmd.OutOrStdout(), output, report); err != nil {
				return err
			}
			if report.Missing > 0 {
				cfg.Logger.Warn("%d of %d keys missing from %s", report.Missing, len(report.Keys), b.Name())
				return &ExitError{Code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml)")

	return cmd
}

func writeCheckReport(w io.Writer, format string, report checkReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "KEY\tCONFIG PATH\tSTATUS\n")
	for _, r := range report.Keys {
		status := "✘ missing"
		if r.Exists {
			status = "✔ present"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", r.KeychainName, r.ConfigPath, status)
	}
	return tw.Flush()
}

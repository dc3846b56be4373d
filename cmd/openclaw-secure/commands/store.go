package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/openclaw-secure/internal/catalog"
	"github.com/systmms/openclaw-secure/internal/config"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/internal/scrub"
)

func NewStoreCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Move literal secrets from the config into the backend",
		Long: `Read the OpenClaw config, store every literal secret it holds in the
selected backend and replace it with a ${OPENCLAW_SECURE_*} reference.

Values that are already references or placeholders are left alone. If a
write to the backend fails, the keys stored so far are still replaced in
the config, so no stored secret stays on disk in clear text.

Before the config is rewritten it is copied to <config>.bak.<timestamp>
(mode 0600, the five newest kept). The backup taken by the first store
still holds the literal secrets: delete it once the backend copy is
confirmed.

Examples:
  openclaw-secure store
  openclaw-secure store --backend 1password --config ./openclaw.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cfg)
			if err != nil {
				return err
			}
			if !b.Available(cmd.Context()) {
				return &apperrors.BackendUnavailableError{Backend: b.Name()}
			}

			path := cfg.ConfigPath()
			cfg.Logger.Info("Storing keys from %s to %s...", path, b.Name())

			engine := scrub.NewEngine(cfg.Store, cfg.Logger)
			results, err := engine.StoreFile(cmd.Context(), path, catalog.Default, b)
			printStoreResults(cmd, results)
			if err != nil {
				return err
			}

			stored := 0
			for _, r := range results {
				if r.Stored {
					stored++
				}
			}
			if stored == 0 {
				cfg.Logger.Info("No literal secrets found; config unchanged")
				return nil
			}
			cfg.Logger.Info("Stored %d keys and replaced them with env references", stored)
			if backups, err := config.Backups(path); err == nil && len(backups) > 0 {
				cfg.Logger.Warn("The pre-store backup %s still holds the literal secrets; delete it once the backend copy is confirmed", backups[len(backups)-1])
			}
			return nil
		},
	}

	return cmd
}

func printStoreResults(cmd *cobra.Command, results []scrub.StoreResult) {
	if len(results) == 0 {
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "KEY\tCONFIG PATH\tSTATUS\n")
	for _, r := range results {
		status := "skipped"
		if r.Stored {
			status = "stored"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.KeychainName, r.ConfigPath, status)
	}
	_ = w.Flush()
}

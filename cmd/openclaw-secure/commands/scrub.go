package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/openclaw-secure/internal/catalog"
	"github.com/systmms/openclaw-secure/internal/config"
	"github.com/systmms/openclaw-secure/internal/scrub"
)

func NewScrubCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrub",
		Short: "Replace every secret in the config with its env reference",
		Long: `Force the config into its reference-only state: every known secret path
is set to ${OPENCLAW_SECURE_*}, whatever it holds now. Literal values are
discarded, so run 'store' first if they are not in the backend yet.

Use this after a crash left resolved values or placeholders behind.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.ConfigPath()
			engine := scrub.NewEngine(cfg.Store, cfg.Logger)
			if err := engine.ScrubFile(path, catalog.Default); err != nil {
				return err
			}

			doc, err := cfg.Store.Read(path)
			if err != nil {
				return err
			}
			if unsafe := scrub.Verify(doc, catalog.Default); len(unsafe) > 0 {
				return fmt.Errorf("config still holds values at %s after scrub", strings.Join(unsafe, ", "))
			}

			cfg.Logger.Info("Config scrubbed: %s", path)
			return nil
		},
	}

	return cmd
}

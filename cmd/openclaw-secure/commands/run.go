package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/systmms/openclaw-secure/internal/catalog"
	"github.com/systmms/openclaw-secure/internal/config"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/internal/resolve"
	"github.com/systmms/openclaw-secure/internal/supervisor"
)

func NewRunCommand(cfg *config.Config) *cobra.Command {
	var graceMs int

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Run any command with the secrets in its environment",
		Long: `Resolve the secrets the backend holds and run a command with them set
as OPENCLAW_SECURE_* environment variables. The config file is not touched.

Missing secrets and an unavailable backend only produce warnings; the
command always runs. The exit code is the command's own.

Examples:
  openclaw-secure run -- openclaw gateway run
  openclaw-secure run --backend pass -- env`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return apperrors.UserError{
					Message:    "No command specified",
					Suggestion: "Use: openclaw-secure run -- <command> [args...]",
				}
			}
			return runCommand(cmd.Context(), cfg, args, graceMs)
		},
	}

	// Flags after the command name belong to the command.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().IntVar(&graceMs, "grace", -1, "Milliseconds between SIGTERM and SIGKILL on shutdown (default 5000)")

	return cmd
}

func runCommand(ctx context.Context, cfg *config.Config, argv []string, graceMs int) error {
	b, err := openBackend(cfg)
	if err != nil {
		return err
	}

	res, err := resolve.New(b, cfg.Logger, resolve.BestEffort).Resolve(ctx, catalog.Default)
	if err != nil {
		return err
	}
	defer res.Env.Destroy()
	cfg.Logger.Debug("injecting %d of %d secrets", len(res.Found), len(catalog.Default))

	sup := supervisor.New(cfg.Logger, nil)
	result, err := sup.Run(ctx, supervisor.Spec{
		Command:     argv[0],
		Args:        argv[1:],
		Env:         res.Env,
		GracePeriod: cfg.GracePeriod(graceMs),
	})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return &ExitError{Code: result.ExitCode}
	}
	return nil
}

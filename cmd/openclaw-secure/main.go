package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/systmms/openclaw-secure/cmd/openclaw-secure/commands"
	"github.com/systmms/openclaw-secure/internal/config"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	defer memguard.Purge()

	rootCmd := newRootCommand(commands.BuildInfo{Version: version, Commit: commit, Date: date})
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	// The child's exit code, already reported.
	var exitErr *commands.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	_, _ = fmt.Fprintf(stderr, "Error: %v\n", apperrors.SimplifyError(err))
	var coder apperrors.ExitCoder
	if errors.As(err, &coder) && coder.ExitCode() != 0 {
		return coder.ExitCode()
	}
	return 1
}

func newRootCommand(info commands.BuildInfo) *cobra.Command {
	var (
		configFile  string
		backendName string
		noColor     bool
		debug       bool
	)

	cfg := config.New(logging.Discard())

	rootCmd := &cobra.Command{
		Use:   "openclaw-secure",
		Short: "Keep OpenClaw secrets in a secret store instead of its config file",
		Long: `openclaw-secure moves the API keys and tokens in the OpenClaw config into a
secret backend (OS keychain, password manager, cloud secret store or Vault)
and starts the gateway with them injected as environment variables. The
config on disk only ever holds ${OPENCLAW_SECURE_*} references.`,
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Logger = logging.New(debug, noColor)
			cfg.Path = configFile
			cfg.BackendName = backendName
			cfg.LoadPreferences()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "OpenClaw config file (default ~/.openclaw/openclaw.json)")
	rootCmd.PersistentFlags().StringVarP(&backendName, "backend", "b", "", "Secret backend (default keychain)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewStoreCommand(cfg),
		commands.NewCheckCommand(cfg),
		commands.NewScrubCommand(cfg),
		commands.NewStartCommand(cfg),
		commands.NewRunCommand(cfg),
		commands.NewBackendsCommand(cfg),
		commands.NewVersionCommand(info),
		commands.NewCompletionCommand(),
	)

	return rootCmd
}

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/openclaw-secure/internal/catalog"
	"github.com/systmms/openclaw-secure/internal/config"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/internal/guard"
	"github.com/systmms/openclaw-secure/internal/health"
	"github.com/systmms/openclaw-secure/internal/metrics"
	"github.com/systmms/openclaw-secure/internal/resolve"
	"github.com/systmms/openclaw-secure/internal/scrub"
	"github.com/systmms/openclaw-secure/internal/supervisor"
)

type startOptions struct {
	timeoutMs   int
	graceMs     int
	command     string
	port        int
	watch       bool
	metricsAddr string
}

func NewStartCommand(cfg *config.Config) *cobra.Command {
	var opts startOptions

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the gateway with secrets injected as environment variables",
		Long: `Fetch every secret from the backend, point the config at
${OPENCLAW_SECURE_*} references and start the gateway with the values in
its environment. The config is scrubbed again whenever the gateway stops.

The backend must be available. Secrets it does not hold are written as
placeholders and the gateway starts without them.

If the gateway does not answer on its health endpoint within --timeout,
the config is scrubbed, the gateway is stopped and the command fails.

Examples:
  openclaw-secure start
  openclaw-secure start --timeout 30000 --watch
  openclaw-secure start --command "openclaw gateway run --verbose" --port 18790`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.timeoutMs, "timeout", "t", 0, "Health check timeout in milliseconds (default 10000)")
	cmd.Flags().IntVar(&opts.graceMs, "grace", -1, "Milliseconds between SIGTERM and SIGKILL on shutdown (default 5000)")
	cmd.Flags().StringVar(&opts.command, "command", "", "Gateway command, run through sh -c (default \"openclaw gateway run\")")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Gateway port polled for /health (default 18789)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Re-scrub the config if a secret value is written back to it")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	return cmd
}

func runStart(ctx context.Context, cfg *config.Config, opts startOptions) error {
	logger := cfg.Logger
	secrets := catalog.Default
	path := cfg.ConfigPath()

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		srv := metrics.NewServer(opts.metricsAddr, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to serve metrics on %s: %w", opts.metricsAddr, err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Stop(stopCtx)
		}()
	}

	logger.Info("Secure gateway start (%s backend)", b.Name())
	logger.Info("Fetching keys into environment...")

	res, err := resolve.New(b, logger, resolve.FailFast).Resolve(ctx, secrets)
	if err != nil {
		return err
	}
	defer res.Env.Destroy()

	engine := scrub.NewEngine(cfg.Store, logger)
	if err := engine.ReconcileFile(path, res.Found, res.Missing); err != nil {
		return err
	}
	logger.Info("Config updated with ${VAR} references (%d of %d keys)", len(res.Found), len(secrets))

	// Every exit path from here on leaves the config scrubbed.
	defer func() {
		if err := engine.ScrubFile(path, secrets); err != nil {
			logger.Error("Failed to scrub %s: %v", path, err)
			return
		}
		logger.Info("Config scrubbed")
	}()

	sup := supervisor.New(logger, nil)
	spec := supervisor.Spec{
		Command:     cfg.GatewayCommand(opts.command),
		Shell:       true,
		Env:         res.Env,
		GracePeriod: cfg.GracePeriod(opts.graceMs),
	}
	logger.Info("Starting gateway: %s", spec.Command)
	if err := sup.Start(ctx, spec); err != nil {
		return err
	}

	if opts.watch {
		g := guard.New(path, secrets, res.Env, cfg.Store, logger)
		guardCtx, stopGuard := context.WithCancel(ctx)
		guardDone := make(chan struct{})
		go func() {
			defer close(guardDone)
			if err := g.Run(guardCtx); err != nil {
				logger.Warn("Config guard stopped: %v", err)
			}
		}()
		// The guard reads the resolved values, so it must stop before they
		// are destroyed.
		defer func() {
			stopGuard()
			<-guardDone
		}()
	}

	endpoint := health.Endpoint(cfg.HealthPort(opts.port))
	timeout := cfg.HealthTimeout(opts.timeoutMs)
	logger.Info("Waiting for gateway health (%s timeout)...", timeout)

	// A child that exits, or a termination signal, ends the wait early.
	waitCtx, stopWait := context.WithCancel(ctx)
	go func() {
		select {
		case <-sup.Done():
			stopWait()
		case <-waitCtx.Done():
		}
	}()
	healthy := health.NewWaiter(logger).Wait(waitCtx, endpoint, timeout)
	stopWait()

	if !healthy {
		select {
		case <-sup.Done():
			return gatewayExited(cfg, sup)
		default:
		}
		logger.Error("Gateway health check timed out")
		if err := engine.ScrubFile(path, secrets); err != nil {
			logger.Error("Failed to scrub %s: %v", path, err)
		}
		sup.Terminate()
		_, _ = sup.Wait()
		return &apperrors.HealthTimeoutError{Endpoint: endpoint, Timeout: timeout}
	}

	logger.Info("Gateway is healthy")
	return gatewayExited(cfg, sup)
}

// gatewayExited waits for the child and turns a non-zero exit into an
// ExitError carrying the same code.
func gatewayExited(cfg *config.Config, sup *supervisor.Supervisor) error {
	result, err := sup.Wait()
	if err != nil {
		return err
	}
	switch {
	case result.Forced:
		cfg.Logger.Warn("Gateway did not stop within the grace period and was killed")
	case result.Signal != 0:
		cfg.Logger.Info("Gateway stopped by %s", result.Signal)
	default:
		cfg.Logger.Info("Gateway exited with code %d", result.ExitCode)
	}
	if result.ExitCode != 0 {
		return &ExitError{Code: result.ExitCode}
	}
	return nil
}

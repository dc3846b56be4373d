package commands

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/systmms/openclaw-secure/internal/backends"
	"github.com/systmms/openclaw-secure/internal/config"
	"github.com/systmms/openclaw-secure/internal/logging"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

// newTestConfig returns a config using b as the "fake" backend and
// capturing log output. Tests using it must not run in parallel: the
// registry hook is package state.
func newTestConfig(t *testing.T, b backend.Backend) (*config.Config, *bytes.Buffer) {
	t.Helper()

	logs := &bytes.Buffer{}
	cfg := config.New(logging.NewWithWriter(logs, false, true))
	cfg.PreferencesPath = filepath.Join(t.TempDir(), "prefs.json")
	cfg.BackendName = "fake"

	orig := newRegistry
	newRegistry = func(cfg *config.Config) *backends.Registry {
		r := backends.NewRegistry(backends.Deps{Logger: cfg.Logger})
		r.Register("fake", func(map[string]any, backends.Deps) (backend.Backend, error) {
			return b, nil
		})
		return r
	}
	t.Cleanup(func() { newRegistry = orig })

	return cfg, logs
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	// Mirrors the root command, which reports errors itself.
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

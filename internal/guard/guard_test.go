package guard_test

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/openclaw-secure/internal/catalog"
	"github.com/systmms/openclaw-secure/internal/guard"
	"github.com/systmms/openclaw-secure/internal/secure"
	"github.com/systmms/openclaw-secure/tests/testutil"
)

func scrubbedConfig() map[string]any {
	return map[string]any{
		"gateway": map[string]any{"auth": map[string]any{"token": "${OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN}"}},
	}
}

func liveEnv(t *testing.T) *secure.Env {
	t.Helper()
	env := secure.NewEnv()
	env.Set("OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN", "tok-123")
	t.Cleanup(env.Destroy)
	return env
}

func writeJSON(t *testing.T, path string, doc map[string]any) {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestCheckRescrubsLeakedSecret(t *testing.T) {
	t.Parallel()

	path := testutil.WriteConfig(t, map[string]any{
		"gateway": map[string]any{"auth": map[string]any{"token": "tok-123"}},
	})
	g := guard.New(path, catalog.Default, liveEnv(t), nil, nil)

	rescrubbed, err := g.Check()
	require.NoError(t, err)
	assert.True(t, rescrubbed)
	testutil.AssertConfigScrubbed(t, path, catalog.Default, "tok-123")

	rescrubbed, err = g.Check()
	require.NoError(t, err)
	assert.False(t, rescrubbed, "a clean file is left alone")
}

func TestCheckIgnoresUnrelatedLiterals(t *testing.T) {
	t.Parallel()

	path := testutil.WriteConfig(t, map[string]any{
		"gateway": map[string]any{"auth": map[string]any{"token": "something-else"}},
	})
	g := guard.New(path, catalog.Default, liveEnv(t), nil, nil)

	rescrubbed, err := g.Check()
	require.NoError(t, err)
	assert.False(t, rescrubbed)
}

func TestRunWatchesFile(t *testing.T) {
	t.Parallel()

	path := testutil.WriteConfig(t, scrubbedConfig())
	g := guard.New(path, catalog.Default, liveEnv(t), nil, nil)
	g.Debounce = 20 * time.Millisecond

	var rescrubs atomic.Int32
	g.OnCheck = func(rescrubbed bool, _ error) {
		if rescrubbed {
			rescrubs.Add(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	// Give the watcher time to register before the gateway "writes back".
	time.Sleep(100 * time.Millisecond)
	writeJSON(t, path, map[string]any{
		"gateway": map[string]any{"auth": map[string]any{"token": "tok-123"}},
	})

	require.Eventually(t, func() bool { return rescrubs.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
	testutil.AssertConfigScrubbed(t, path, catalog.Default, "tok-123")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("guard did not stop")
	}
}

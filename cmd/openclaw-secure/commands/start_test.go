package commands

import (
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/openclaw-secure/internal/catalog"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/tests/fakes"
	"github.com/systmms/openclaw-secure/tests/testutil"
)

func healthyGateway(t *testing.T) int {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().(*net.TCPAddr).Port
}

func literalConfig(t *testing.T) string {
	t.Helper()
	return testutil.WriteConfig(t, map[string]any{
		"gateway":  map[string]any{"auth": map[string]any{"token": "${OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN}"}, "mode": "local"},
		"channels": map[string]any{"discord": map[string]any{"token": "${OPENCLAW_SECURE_DISCORD_BOT_TOKEN}"}},
	})
}

func TestStartCommandHappyPath(t *testing.T) {
	fake := fakes.NewFakeBackend("fake").WithSecret("gateway-auth-token", "tok-123")
	cfg, logs := newTestConfig(t, fake)
	cfg.Path = literalConfig(t)

	dir := t.TempDir()
	envOut := filepath.Join(dir, "env")
	snapshot := filepath.Join(dir, "config-seen-by-gateway.json")
	command := `printf %s "$OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN" > ` + envOut + `; cp ` + cfg.Path + ` ` + snapshot + `; sleep 1`

	_, err := execute(t, NewStartCommand(cfg),
		"--command", command,
		"--port", strconv.Itoa(healthyGateway(t)),
		"--timeout", "5000",
		"--metrics-addr", "127.0.0.1:0",
	)
	require.NoError(t, err)

	got, err := os.ReadFile(envOut)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", string(got))

	seen := testutil.ReadConfig(t, snapshot)
	assert.Equal(t, "${OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN}", seen["gateway"].(map[string]any)["auth"].(map[string]any)["token"])
	assert.Equal(t, catalog.Placeholder, seen["channels"].(map[string]any)["discord"].(map[string]any)["token"],
		"keys missing from the backend become placeholders while running")

	testutil.AssertConfigScrubbed(t, cfg.Path, catalog.Default, "tok-123")
	final := testutil.ReadConfig(t, cfg.Path)
	assert.Equal(t, "${OPENCLAW_SECURE_DISCORD_BOT_TOKEN}", final["channels"].(map[string]any)["discord"].(map[string]any)["token"])
	assert.Equal(t, "local", final["gateway"].(map[string]any)["mode"])

	testutil.AssertLinesContain(t, logs.String(), []string{
		"Secure gateway start (fake backend)",
		"1 of 8 keys",
		"Gateway is healthy",
		"Gateway exited with code 0",
		"Config scrubbed",
	})
	assert.NotContains(t, logs.String(), "tok-123")
}

func TestStartCommandHealthTimeout(t *testing.T) {
	cfg, logs := newTestConfig(t, fakes.NewFakeBackend("fake").WithSecret("gateway-auth-token", "tok-123"))
	cfg.Path = literalConfig(t)

	start := time.Now()
	_, err := execute(t, NewStartCommand(cfg),
		"--command", "sleep 30",
		"--port", strconv.Itoa(freePort(t)),
		"--timeout", "600",
		"--grace", "500",
	)
	var timeoutErr *apperrors.HealthTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 600*time.Millisecond, timeoutErr.Timeout)
	assert.Less(t, time.Since(start), 10*time.Second, "the gateway is stopped, not waited for")

	testutil.AssertConfigScrubbed(t, cfg.Path, catalog.Default, "tok-123")
	assert.Contains(t, logs.String(), "health check timed out")
}

func TestStartCommandGatewayExitsEarly(t *testing.T) {
	cfg, _ := newTestConfig(t, fakes.NewFakeBackend("fake").WithSecret("gateway-auth-token", "tok-123"))
	cfg.Path = literalConfig(t)

	start := time.Now()
	_, err := execute(t, NewStartCommand(cfg),
		"--command", "exit 3",
		"--port", strconv.Itoa(freePort(t)),
		"--timeout", "20000",
	)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Less(t, time.Since(start), 10*time.Second, "a dead gateway ends the health wait")

	testutil.AssertConfigScrubbed(t, cfg.Path, catalog.Default)
}

func TestStartCommandUnavailableBackend(t *testing.T) {
	cfg, _ := newTestConfig(t, fakes.NewFakeBackend("fake").Unavailable())
	cfg.Path = testutil.WriteConfig(t, map[string]any{"gateway": map[string]any{"auth": map[string]any{"token": "${OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN}"}}})
	before, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)

	_, err = execute(t, NewStartCommand(cfg), "--command", "true")
	var unavailable *apperrors.BackendUnavailableError
	require.ErrorAs(t, err, &unavailable)

	after, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "nothing is written when the backend is unavailable")
}

func TestStartCommandBadMetricsAddr(t *testing.T) {
	cfg, _ := newTestConfig(t, fakes.NewFakeBackend("fake").WithSecret("gateway-auth-token", "tok-123"))
	cfg.Path = literalConfig(t)
	before, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)

	_, err = execute(t, NewStartCommand(cfg), "--command", "true", "--metrics-addr", "256.0.0.1:bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to serve metrics")

	after, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

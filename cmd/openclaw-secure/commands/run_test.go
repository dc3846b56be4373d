package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/tests/fakes"
	"github.com/systmms/openclaw-secure/tests/testutil"
)

func TestRunCommandInjectsSecrets(t *testing.T) {
	cfg, _ := newTestConfig(t, fakes.NewFakeBackend("fake").WithSecret("gateway-auth-token", "tok-123"))
	cfg.Path = testutil.WriteConfig(t, map[string]any{"gateway": map[string]any{"auth": map[string]any{"token": "${OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN}"}}})

	_, err := execute(t, NewRunCommand(cfg), "--", "sh", "-c", `test "$OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN" = tok-123`)
	require.NoError(t, err)

	doc := testutil.ReadConfig(t, cfg.Path)
	assert.Equal(t, "${OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN}",
		doc["gateway"].(map[string]any)["auth"].(map[string]any)["token"], "run leaves the config alone")
}

func TestRunCommandMirrorsExitCode(t *testing.T) {
	cfg, _ := newTestConfig(t, fakes.NewFakeBackend("fake"))

	_, err := execute(t, NewRunCommand(cfg), "sh", "-c", "exit 7")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 7, exitErr.Code)
}

func TestRunCommandBestEffort(t *testing.T) {
	cfg, logs := newTestConfig(t, fakes.NewFakeBackend("fake").Unavailable())

	_, err := execute(t, NewRunCommand(cfg), "--", "sh", "-c", `test -z "$OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN"`)
	require.NoError(t, err, "an unavailable backend does not stop the command")
	assert.Contains(t, logs.String(), "continuing without it")
	assert.Contains(t, logs.String(), "gateway-auth-token not found")
}

func TestRunCommandRequiresCommand(t *testing.T) {
	cfg, _ := newTestConfig(t, fakes.NewFakeBackend("fake"))

	_, err := execute(t, NewRunCommand(cfg))
	var userErr apperrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "No command specified", userErr.Message)
}

func TestRunCommandSpawnFailure(t *testing.T) {
	cfg, _ := newTestConfig(t, fakes.NewFakeBackend("fake"))

	_, err := execute(t, NewRunCommand(cfg), "--", "definitely-not-a-command-xyz")
	var spawnErr *apperrors.SpawnError
	require.ErrorAs(t, err, &spawnErr)
}

package resolve_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/openclaw-secure/internal/catalog"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/internal/logging"
	"github.com/systmms/openclaw-secure/internal/resolve"
	"github.com/systmms/openclaw-secure/tests/fakes"
)

// newResolver returns a resolver whose backoff delays run 100x faster.
func newResolver(t *testing.T, b *fakes.FakeBackend, policy resolve.Policy) (*resolve.Resolver, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	r := resolve.New(b, logging.NewWithWriter(&out, false, true), policy)
	r.Clock = testclock.NewDilatedWallClock(10 * time.Millisecond)
	return r, &out
}

func envValues(t *testing.T, res *resolve.Result) map[string]string {
	t.Helper()
	values := map[string]string{}
	require.NoError(t, res.Env.Each(func(name string, value []byte) error {
		values[name] = string(value)
		return nil
	}))
	return values
}

func TestResolveRetriesThenSucceedsWithoutWarning(t *testing.T) {
	t.Parallel()

	b := fakes.NewFakeBackend("memory").
		WithSecret("gateway-auth-token", "abc").
		FailTimes("gateway-auth-token", 2, errors.New("connection reset"))
	r, out := newResolver(t, b, resolve.FailFast)

	res, err := r.Resolve(context.Background(), catalog.Default[:1])
	require.NoError(t, err)
	defer res.Env.Destroy()

	assert.Equal(t, 3, b.GetCalls("gateway-auth-token"))
	assert.Equal(t, map[string]string{"OPENCLAW_SECURE_GATEWAY_AUTH_TOKEN": "abc"}, envValues(t, res))
	assert.Equal(t, catalog.Default[:1], res.Found)
	assert.Empty(t, res.Missing)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, out.String(), "no warning after a successful retry")
}

func TestResolveExhaustedRetriesMarksMissing(t *testing.T) {
	t.Parallel()

	reset := errors.New("connection reset")
	b := fakes.NewFakeBackend("memory").
		WithSecret("gateway-auth-token", "abc").
		WithGetError("whisper-api-key", reset)
	r, out := newResolver(t, b, resolve.FailFast)

	res, err := r.Resolve(context.Background(), catalog.Default[:2])
	require.NoError(t, err)

	assert.Equal(t, 3, b.GetCalls("whisper-api-key"))
	assert.Equal(t, catalog.SecretMap{catalog.Default[1]}, res.Missing)
	require.Len(t, res.Warnings, 1)

	var transient *apperrors.BackendTransientError
	require.ErrorAs(t, res.Warnings[0], &transient)
	assert.Equal(t, "whisper-api-key", transient.Key)
	assert.Equal(t, 3, transient.Attempts)
	assert.ErrorIs(t, transient, reset)
	assert.Contains(t, out.String(), "whisper-api-key")
}

func TestResolveNotFoundIsNotRetried(t *testing.T) {
	t.Parallel()

	b := fakes.NewFakeBackend("memory")
	r, out := newResolver(t, b, resolve.FailFast)

	res, err := r.Resolve(context.Background(), catalog.Default[:1])
	require.NoError(t, err)

	assert.Equal(t, 1, b.GetCalls("gateway-auth-token"))
	assert.Equal(t, catalog.Default[:1], res.Missing)
	assert.Empty(t, res.Warnings)
	assert.Contains(t, out.String(), "gateway-auth-token not found")
	assert.Zero(t, res.Env.Len())
}

func TestResolveUnavailableBackend(t *testing.T) {
	t.Parallel()

	t.Run("fail fast", func(t *testing.T) {
		b := fakes.NewFakeBackend("keychain").WithSecret("gateway-auth-token", "abc").Unavailable()
		r, _ := newResolver(t, b, resolve.FailFast)

		res, err := r.Resolve(context.Background(), catalog.Default)
		assert.Nil(t, res)
		assert.True(t, resolve.IsUnavailable(err))
		assert.Zero(t, b.GetCalls("gateway-auth-token"))
	})

	t.Run("best effort", func(t *testing.T) {
		b := fakes.NewFakeBackend("keychain").WithSecret("gateway-auth-token", "abc").Unavailable()
		r, out := newResolver(t, b, resolve.BestEffort)

		res, err := r.Resolve(context.Background(), catalog.Default)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "backend keychain is not available")
		assert.Equal(t, catalog.Default[:1], res.Found)
		assert.Len(t, res.Missing, len(catalog.Default)-1)
	})
}

func TestResolveConcurrentKeepsCatalogOrder(t *testing.T) {
	t.Parallel()

	b := fakes.NewFakeBackend("memory").WithDelay(5 * time.Millisecond)
	for _, key := range catalog.Default.Keys() {
		b.WithSecret(key, "v-"+key)
	}
	b.WithGetError("discord-bot-token", errors.New("boom"))

	r, _ := newResolver(t, b, resolve.BestEffort)
	r.Concurrency = 8

	res, err := r.Resolve(context.Background(), catalog.Default)
	require.NoError(t, err)
	defer res.Env.Destroy()

	var want catalog.SecretMap
	for _, e := range catalog.Default {
		if e.KeychainName != "discord-bot-token" {
			want = append(want, e)
		}
	}
	assert.Equal(t, want, res.Found)
	assert.Equal(t, catalog.SecretMap{catalog.Default[6]}, res.Missing)

	values := envValues(t, res)
	assert.Equal(t, "v-telegram-bot-token", values["OPENCLAW_SECURE_TELEGRAM_BOT_TOKEN"])
	assert.Len(t, values, len(catalog.Default)-1)
}

func TestResolveSequential(t *testing.T) {
	t.Parallel()

	b := fakes.NewFakeBackend("memory").WithSecret("whisper-api-key", "w")
	r, _ := newResolver(t, b, resolve.FailFast)
	r.Concurrency = 1

	res, err := r.Resolve(context.Background(), catalog.Default)
	require.NoError(t, err)
	assert.Equal(t, catalog.SecretMap{catalog.Default[1]}, res.Found)
}

func TestResolveCancelled(t *testing.T) {
	t.Parallel()

	b := fakes.NewFakeBackend("memory").WithDelay(time.Second).WithSecret("gateway-auth-token", "abc")
	r, _ := newResolver(t, b, resolve.FailFast)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Resolve(ctx, catalog.Default)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveFetchTimeout(t *testing.T) {
	t.Parallel()

	b := fakes.NewFakeBackend("bitwarden").WithDelay(200 * time.Millisecond).WithSecret("gateway-auth-token", "abc")
	r, _ := newResolver(t, b, resolve.BestEffort)
	r.Attempts = 1
	r.FetchTimeout = 10 * time.Millisecond

	res, err := r.Resolve(context.Background(), catalog.Default[:1])
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)

	var userErr apperrors.UserError
	require.ErrorAs(t, res.Warnings[0], &userErr)
	assert.Contains(t, userErr.Suggestion, "bw status")
}

func TestPolicyString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "fail-fast", resolve.FailFast.String())
	assert.Equal(t, "best-effort", resolve.BestEffort.String())
}

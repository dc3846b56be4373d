package backends_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/openclaw-secure/internal/backends"
	"github.com/systmms/openclaw-secure/tests/fakes"
	"github.com/systmms/openclaw-secure/tests/testutil"
)

var contractData = map[string]string{
	"gateway-auth-token": "tok-123",
	"discord-bot-token":  "discord secret with spaces",
}

func TestMemoryContract(t *testing.T) {
	t.Parallel()

	testutil.RunBackendContractTests(t, testutil.BackendTestCase{
		Name:     "memory",
		Backend:  backends.NewMemory(),
		TestData: contractData,
	})
}

func TestKeychainContract(t *testing.T) {
	t.Parallel()

	testutil.RunBackendContractTests(t, testutil.BackendTestCase{
		Name:     "keychain",
		Backend:  backends.NewKeychainWithClient(fakes.NewFakeKeyring()),
		TestData: contractData,
	})
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := backends.NewMemory()
	assert.ErrorIs(t, m.Set(ctx, "k", "v"), context.Canceled)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

package backends_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/openclaw-secure/internal/backends"
	"github.com/systmms/openclaw-secure/pkg/backend"
	"github.com/systmms/openclaw-secure/tests/fakes"
)

func TestKeychainNamespacing(t *testing.T) {
	t.Parallel()

	ring := fakes.NewFakeKeyring()
	kc := backends.NewKeychainWithClient(ring)

	require.NoError(t, kc.Set(context.Background(), "gateway-auth-token", "abc"))
	assert.Equal(t, "abc", ring.Secrets["openclaw-gateway-auth-token"]["openclaw"])

	got, err := kc.Get(context.Background(), "gateway-auth-token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestKeychainErrors(t *testing.T) {
	t.Parallel()

	ring := fakes.NewFakeKeyring()
	kc := backends.NewKeychainWithClient(ring)

	_, err := kc.Get(context.Background(), "missing")
	assert.True(t, backend.IsNotFound(err))

	ring.GetErr = errors.New("user denied access")
	_, err = kc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.False(t, backend.IsNotFound(err))
	assert.ErrorIs(t, err, backends.ErrKeychainAccessDenied)

	ring.SetErr = errors.New("dbus: connection closed")
	err = kc.Set(context.Background(), "k", "v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keychain backend error during set")
}

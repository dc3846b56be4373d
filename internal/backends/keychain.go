package backends

import (
	"context"
	"errors"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/systmms/openclaw-secure/internal/catalog"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

// KeyringClient is the slice of go-keyring the keychain backend needs.
type KeyringClient interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

type systemKeyring struct{}

func (systemKeyring) Get(service, account string) (string, error) {
	return keyring.Get(service, account)
}

func (systemKeyring) Set(service, account, value string) error {
	return keyring.Set(service, account, value)
}

// Keychain stores secrets in the OS keychain (macOS Keychain, Secret
// Service on Linux, Credential Manager on Windows). Items live under the
// service "openclaw-<key>" and the account "openclaw".
type Keychain struct {
	client    KeyringClient
	account   string
	available func() bool
}

// NewKeychain returns a keychain backend talking to the system keyring.
func NewKeychain() *Keychain {
	return NewKeychainWithClient(systemKeyring{})
}

// NewKeychainWithClient returns a keychain backend using client. Used by tests.
func NewKeychainWithClient(client KeyringClient) *Keychain {
	return &Keychain{
		client:    client,
		account:   catalog.KeychainAccount,
		available: platformKeychainAvailable,
	}
}

func newKeychainFactory(options map[string]any, _ Deps) (backend.Backend, error) {
	kc := NewKeychain()
	kc.account = stringOption(options, "account", catalog.KeychainAccount)
	return kc, nil
}

// Name implements backend.Backend.
func (k *Keychain) Name() string { return "keychain" }

// Available implements backend.Backend.
func (k *Keychain) Available(context.Context) bool {
	if k.available == nil {
		return true
	}
	return k.available()
}

// Get implements backend.Backend.
func (k *Keychain) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := k.client.Get(itemName(key), k.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", backend.NotFound(k.Name(), key)
		}
		return "", apperrors.ProviderError(k.Name(), "get", keychainError(err))
	}
	return v, nil
}

// Set implements backend.Backend.
func (k *Keychain) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := k.client.Set(itemName(key), k.account, value); err != nil {
		return apperrors.ProviderError(k.Name(), "set", keychainError(err))
	}
	return nil
}

// ErrKeychainAccessDenied is reported when the user or OS refuses access.
var ErrKeychainAccessDenied = errors.New("keychain access denied")

func keychainError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "user denied") ||
		strings.Contains(msg, "canceled") {
		return errors.Join(ErrKeychainAccessDenied, err)
	}
	return err
}

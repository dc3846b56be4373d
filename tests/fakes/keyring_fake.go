package fakes

import (
	"sync"

	"github.com/zalando/go-keyring"
)

// FakeKeyring is a test double for backends.KeyringClient.
type FakeKeyring struct {
	mu sync.Mutex

	// Secrets is a map of service -> account -> value
	Secrets map[string]map[string]string

	// GetErr and SetErr override normal behaviour when set.
	GetErr error
	SetErr error
}

// NewFakeKeyring creates an empty fake keyring.
func NewFakeKeyring() *FakeKeyring {
	return &FakeKeyring{Secrets: make(map[string]map[string]string)}
}

// Get returns keyring.ErrNotFound for unknown items like the real library.
func (f *FakeKeyring) Get(service, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return "", f.GetErr
	}
	if v, ok := f.Secrets[service][account]; ok {
		return v, nil
	}
	return "", keyring.ErrNotFound
}

// Set stores value.
func (f *FakeKeyring) Set(service, account, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetErr != nil {
		return f.SetErr
	}
	if f.Secrets[service] == nil {
		f.Secrets[service] = make(map[string]string)
	}
	f.Secrets[service][account] = value
	return nil
}

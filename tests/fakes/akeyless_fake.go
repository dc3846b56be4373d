package fakes

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// FakeAkeylessClient is an in-memory backends.AkeylessAPI.
type FakeAkeylessClient struct {
	mu sync.Mutex
	// Items maps full item paths to values
	Items map[string]string
	// Errors maps item paths to errors to return
	Errors map[string]error
	// AuthErr is returned by Auth
	AuthErr error
	// AuthCalls counts Auth calls
	AuthCalls int
	// Created lists item paths passed to CreateSecret, in order
	Created []string
}

// NewFakeAkeylessClient creates an empty fake.
func NewFakeAkeylessClient() *FakeAkeylessClient {
	return &FakeAkeylessClient{
		Items:  make(map[string]string),
		Errors: make(map[string]error),
	}
}

const fakeAkeylessToken = "t-fake"

func (f *FakeAkeylessClient) checkToken(token string) error {
	if token != fakeAkeylessToken {
		return errors.New("unauthorized: invalid token")
	}
	return nil
}

// Auth implements backends.AkeylessAPI.
func (f *FakeAkeylessClient) Auth(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AuthCalls++
	if f.AuthErr != nil {
		return "", f.AuthErr
	}
	return fakeAkeylessToken, nil
}

// GetSecretValue implements backends.AkeylessAPI.
func (f *FakeAkeylessClient) GetSecretValue(_ context.Context, token, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkToken(token); err != nil {
		return "", err
	}
	if err, ok := f.Errors[name]; ok {
		return "", err
	}
	v, ok := f.Items[name]
	if !ok {
		return "", fmt.Errorf("itemNotFound: item %s not found", name)
	}
	return v, nil
}

// CreateSecret implements backends.AkeylessAPI.
func (f *FakeAkeylessClient) CreateSecret(_ context.Context, token, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkToken(token); err != nil {
		return err
	}
	if _, ok := f.Items[name]; ok {
		return fmt.Errorf("item %s already exists", name)
	}
	f.Items[name] = value
	f.Created = append(f.Created, name)
	return nil
}

// UpdateSecretValue implements backends.AkeylessAPI.
func (f *FakeAkeylessClient) UpdateSecretValue(_ context.Context, token, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkToken(token); err != nil {
		return err
	}
	if _, ok := f.Items[name]; !ok {
		return fmt.Errorf("itemNotFound: item %s not found", name)
	}
	f.Items[name] = value
	return nil
}

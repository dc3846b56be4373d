package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/systmms/openclaw-secure/pkg/backend"
)

// FakeBackend is an in-memory backend.Backend with injectable failures.
//
// Example usage:
//
//	fake := fakes.NewFakeBackend("test").
//	    WithSecret("gateway-auth-token", "abc").
//	    WithSetError("discord-bot-token", errors.New("quota exceeded"))
type FakeBackend struct {
	name string

	mu          sync.Mutex
	secrets     map[string]string
	getErrors   map[string]error
	setErrors   map[string]error
	failures    map[string]int // remaining transient failures per key
	failErr     map[string]error
	unavailable bool
	delay       time.Duration

	getCalls map[string]int
	setCalls map[string]int
	setOrder []string
}

// NewFakeBackend creates an empty, available fake.
func NewFakeBackend(name string) *FakeBackend {
	return &FakeBackend{
		name:      name,
		secrets:   make(map[string]string),
		getErrors: make(map[string]error),
		setErrors: make(map[string]error),
		failures:  make(map[string]int),
		failErr:   make(map[string]error),
		getCalls:  make(map[string]int),
		setCalls:  make(map[string]int),
	}
}

// WithSecret stores value under key.
func (f *FakeBackend) WithSecret(key, value string) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[key] = value
	return f
}

// WithGetError makes every Get of key fail with err.
func (f *FakeBackend) WithGetError(key string, err error) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErrors[key] = err
	return f
}

// WithSetError makes every Set of key fail with err.
func (f *FakeBackend) WithSetError(key string, err error) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErrors[key] = err
	return f
}

// FailTimes makes the next n Gets of key fail with err before it behaves
// normally.
func (f *FakeBackend) FailTimes(key string, n int, err error) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[key] = n
	f.failErr[key] = err
	return f
}

// Unavailable makes Available report false.
func (f *FakeBackend) Unavailable() *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = true
	return f
}

// WithDelay makes each Get sleep for d (or until ctx is done).
func (f *FakeBackend) WithDelay(d time.Duration) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

// Name implements backend.Backend.
func (f *FakeBackend) Name() string { return f.name }

// Available implements backend.Backend.
func (f *FakeBackend) Available(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable
}

// Get implements backend.Backend.
func (f *FakeBackend) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	f.getCalls[key]++
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if n := f.failures[key]; n > 0 {
		f.failures[key] = n - 1
		return "", f.failErr[key]
	}
	if err, ok := f.getErrors[key]; ok {
		return "", err
	}
	v, ok := f.secrets[key]
	if !ok {
		return "", backend.NotFound(f.name, key)
	}
	return v, nil
}

// Set implements backend.Backend.
func (f *FakeBackend) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls[key]++
	if err, ok := f.setErrors[key]; ok {
		return err
	}
	f.secrets[key] = value
	f.setOrder = append(f.setOrder, key)
	return nil
}

// Value returns what is stored under key.
func (f *FakeBackend) Value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.secrets[key]
	return v, ok
}

// GetCalls returns how often Get was called for key.
func (f *FakeBackend) GetCalls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls[key]
}

// SetCalls returns how often Set was called for key.
func (f *FakeBackend) SetCalls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setCalls[key]
}

// StoredKeys returns the keys successfully Set, in call order.
func (f *FakeBackend) StoredKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.setOrder...)
}

var _ backend.Backend = (*FakeBackend)(nil)

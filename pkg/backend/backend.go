package backend

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("secret not found")

// ProbeTimeout bounds Available checks that need I/O.
const ProbeTimeout = 5 * time.Second

// Backend is a secret store with a flat key namespace.
type Backend interface {
	// Name returns the registry name of the backend, e.g. "keychain".
	Name() string

	// Available is a quick feasibility probe: CLI tool present, credentials
	// resolvable, endpoint reachable. It must not block longer than
	// ProbeTimeout.
	Available(ctx context.Context) bool

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, creating or replacing it.
	Set(ctx context.Context, key, value string) error
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NotFound wraps ErrNotFound with the backend and key for context.
func NotFound(backendName, key string) error {
	return &notFoundError{backend: backendName, key: key}
}

type notFoundError struct {
	backend string
	key     string
}

func (e *notFoundError) Error() string {
	return e.backend + ": " + e.key + ": " + ErrNotFound.Error()
}

func (e *notFoundError) Unwrap() error { return ErrNotFound }

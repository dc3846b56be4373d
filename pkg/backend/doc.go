// Package backend defines the capability contract every secret store
// implements for openclaw-secure.
//
// A backend is deliberately small: it can report whether it is usable on
// this machine, read one value, and write one value. Everything else
// (retries, placeholders, config rewriting) lives above it.
//
// # Implementing a Backend
//
//	type MyBackend struct{ client *myapi.Client }
//
//	func (b *MyBackend) Name() string { return "my-store" }
//
//	func (b *MyBackend) Available(ctx context.Context) bool {
//	    return b.client.Ping(ctx) == nil
//	}
//
//	func (b *MyBackend) Get(ctx context.Context, key string) (string, error) {
//	    v, err := b.client.Read(ctx, key)
//	    if myapi.IsNotFound(err) {
//	        return "", backend.ErrNotFound
//	    }
//	    return v, err
//	}
//
//	func (b *MyBackend) Set(ctx context.Context, key, value string) error {
//	    return b.client.Write(ctx, key, value)
//	}
//
// # Error Contract
//
// Get returns ErrNotFound (possibly wrapped) when the key is genuinely
// absent. Any other error is treated as transient by callers and retried.
// Implementations should never include secret values in errors.
//
// # Concurrency
//
// Callers may issue Get for different keys concurrently. Implementations
// holding mutable state must synchronise it.
package backend

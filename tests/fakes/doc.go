// Package fakes provides test doubles for openclaw-secure backends.
//
// This package contains fake implementations of the backend contract and
// of the narrow SDK client interfaces the concrete backends depend on, so
// backends and the layers above them can be tested without real services.
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior.
//
// Usage:
//
//	fake := fakes.NewFakeBackend("test").
//	    WithSecret("gateway-auth-token", "abc").
//	    FailTimes("discord-bot-token", 2, errors.New("timeout"))
//	res, err := resolver.Resolve(ctx, catalog.Default)
package fakes

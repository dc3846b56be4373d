// Package resolve reads the catalog secrets from a backend into a
// secure.Env before the child process is started.
//
// Each read is retried with exponential backoff. A key that is absent, or
// that still fails after the last attempt, is reported as missing; only
// context cancellation and, under FailFast, an unavailable backend abort
// resolution. The child is never started with a partially built Env
// because Resolve returns only after every read has finished.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"golang.org/x/sync/errgroup"

	"github.com/systmms/openclaw-secure/internal/catalog"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/internal/logging"
	"github.com/systmms/openclaw-secure/internal/metrics"
	"github.com/systmms/openclaw-secure/internal/secure"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

const (
	DefaultAttempts    = 3
	DefaultBaseDelay   = 100 * time.Millisecond
	DefaultConcurrency = 4
)

// Policy decides what an unavailable backend means.
type Policy int

const (
	// FailFast refuses to resolve from an unavailable backend.
	FailFast Policy = iota
	// BestEffort logs a warning and resolves whatever it can.
	BestEffort
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case BestEffort:
		return "best-effort"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Resolver fetches secrets from one backend.
type Resolver struct {
	Backend backend.Backend
	Logger  *logging.Logger
	Clock   clock.Clock
	Policy  Policy

	// Attempts per key, including the first.
	Attempts int
	// BaseDelay before the second attempt; it doubles after each failure.
	BaseDelay time.Duration
	// FetchTimeout bounds each attempt; zero means no bound.
	FetchTimeout time.Duration
	// Concurrency is the number of keys read in parallel. 1 reads them in
	// catalog order.
	Concurrency int
}

// Result is the outcome of Resolve. Found and Missing follow catalog order.
type Result struct {
	Env      *secure.Env
	Found    catalog.SecretMap
	Missing  catalog.SecretMap
	Warnings []error
}

// New returns a Resolver with the default retry schedule.
func New(b backend.Backend, logger *logging.Logger, policy Policy) *Resolver {
	return &Resolver{
		Backend:     b,
		Logger:      logger,
		Clock:       clock.WallClock,
		Policy:      policy,
		Attempts:    DefaultAttempts,
		BaseDelay:   DefaultBaseDelay,
		Concurrency: DefaultConcurrency,
	}
}

type fetchOutcome struct {
	value string
	found bool
	warn  error
}

// Resolve reads every entry of secrets. The returned error is non-nil only
// for an unavailable backend under FailFast or a cancelled ctx; in both
// cases no Env is returned.
func (r *Resolver) Resolve(ctx context.Context, secrets catalog.SecretMap) (*Result, error) {
	r.defaults()

	if !r.Backend.Available(ctx) {
		unavailable := &apperrors.BackendUnavailableError{Backend: r.Backend.Name()}
		if r.Policy == FailFast {
			return nil, unavailable
		}
		r.Logger.Warn("%v, continuing without it", unavailable)
	}

	outcomes := make([]fetchOutcome, len(secrets))
	if err := r.fetchAll(ctx, secrets, outcomes); err != nil {
		return nil, err
	}

	res := &Result{Env: secure.NewEnv()}
	for i, entry := range secrets {
		out := outcomes[i]
		if out.warn != nil {
			res.Warnings = append(res.Warnings, out.warn)
		}
		if !out.found {
			res.Missing = append(res.Missing, entry)
			continue
		}
		res.Env.Set(entry.EnvVarName(), out.value)
		res.Found = append(res.Found, entry)
	}
	r.Logger.Debug("resolved %d of %d secrets from %s", len(res.Found), len(secrets), r.Backend.Name())
	return res, nil
}

func (r *Resolver) defaults() {
	if r.Logger == nil {
		r.Logger = logging.Discard()
	}
	if r.Clock == nil {
		r.Clock = clock.WallClock
	}
	if r.Attempts < 1 {
		r.Attempts = DefaultAttempts
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = DefaultBaseDelay
	}
	if r.Concurrency < 1 {
		r.Concurrency = 1
	}
}

func (r *Resolver) fetchAll(ctx context.Context, secrets catalog.SecretMap, outcomes []fetchOutcome) error {
	if r.Concurrency == 1 {
		for i, entry := range secrets {
			outcomes[i] = r.fetch(ctx, entry)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)
	for i, entry := range secrets {
		g.Go(func() error {
			outcomes[i] = r.fetch(gctx, entry)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// fetch reads one key with retries. Not-found stops retrying at once.
func (r *Resolver) fetch(ctx context.Context, entry catalog.SecretEntry) fetchOutcome {
	name := r.Backend.Name()
	key := entry.KeychainName

	var (
		value    string
		attempts int
	)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			attempts++

			actx, cancel := withFetchTimeout(ctx, r.FetchTimeout)
			defer cancel()
			v, err := r.Backend.Get(actx, key)
			if err != nil {
				return timeoutError(ctx, err, name, r.FetchTimeout)
			}
			value = v
			return nil
		},
		IsFatalError: func(err error) bool {
			return backend.IsNotFound(err) || ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			r.Logger.Debug("reading %s from %s failed (attempt %d/%d): %v", key, name, attempt, r.Attempts, err)
		},
		Attempts:    r.Attempts,
		Delay:       r.BaseDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       r.Clock,
		Stop:        ctx.Done(),
	})

	switch {
	case err == nil:
		metrics.RecordFetch(name, metrics.ResultFound)
		return fetchOutcome{value: value, found: true}
	case backend.IsNotFound(err):
		metrics.RecordFetch(name, metrics.ResultNotFound)
		r.Logger.Warn("%s not found in %s", key, name)
		return fetchOutcome{}
	case ctx.Err() != nil:
		return fetchOutcome{}
	}

	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	transient := &apperrors.BackendTransientError{Backend: name, Key: key, Attempts: attempts, Err: err}
	metrics.RecordFetch(name, metrics.ResultError)
	r.Logger.Warn("%v", transient)
	return fetchOutcome{warn: transient}
}

// IsUnavailable reports whether err came from an unavailable backend.
func IsUnavailable(err error) bool {
	var unavailable *apperrors.BackendUnavailableError
	return errors.As(err, &unavailable)
}

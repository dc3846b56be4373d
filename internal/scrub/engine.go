package scrub

import (
	"context"
	"errors"

	"github.com/systmms/openclaw-secure/internal/catalog"
	"github.com/systmms/openclaw-secure/internal/config"
	"github.com/systmms/openclaw-secure/internal/logging"
	"github.com/systmms/openclaw-secure/internal/metrics"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

// Operation names used in logs and metrics.
const (
	OpStore     = "store"
	OpScrub     = "scrub"
	OpReconcile = "reconcile"
)

// Engine applies the transforms to a config file.
type Engine struct {
	store  *config.Store
	logger *logging.Logger
}

// NewEngine returns an Engine writing through store.
func NewEngine(store *config.Store, logger *logging.Logger) *Engine {
	if store == nil {
		store = config.NewStore()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{store: store, logger: logger}
}

// StoreFile moves literal secrets from the file at path into b. The file
// is rewritten when at least one entry was stored, including when a later
// entry failed.
func (e *Engine) StoreFile(ctx context.Context, path string, secrets catalog.SecretMap, b backend.Backend) (results []StoreResult, err error) {
	defer func() { metrics.RecordScrub(OpStore, err) }()

	doc, err := e.store.Read(path)
	if err != nil {
		return nil, err
	}

	out, results, storeErr := StoreAndReference(ctx, doc, secrets, b)

	stored := 0
	for _, r := range results {
		if r.Stored {
			stored++
			e.logger.Debug("stored %s in %s", r.KeychainName, b.Name())
		}
	}
	if stored > 0 {
		if err := e.store.Write(path, out); err != nil {
			return results, errors.Join(storeErr, err)
		}
	}
	return results, storeErr
}

// ScrubFile forces every catalog path in the file to its env reference.
func (e *Engine) ScrubFile(path string, secrets catalog.SecretMap) (err error) {
	defer func() { metrics.RecordScrub(OpScrub, err) }()

	doc, err := e.store.Read(path)
	if err != nil {
		return err
	}
	out, err := Scrub(doc, secrets)
	if err != nil {
		return err
	}
	if err := e.store.Write(path, out); err != nil {
		return err
	}
	e.logger.Debug("scrubbed %d paths in %s", len(secrets), path)
	return nil
}

// ReconcileFile writes references for found entries and placeholders for
// missing ones.
func (e *Engine) ReconcileFile(path string, found, missing catalog.SecretMap) (err error) {
	defer func() { metrics.RecordScrub(OpReconcile, err) }()

	doc, err := e.store.Read(path)
	if err != nil {
		return err
	}
	out, err := Reconcile(doc, found, missing)
	if err != nil {
		return err
	}
	return e.store.Write(path, out)
}

// Package scrub rewrites the secret fields of an OpenClaw config document.
//
// The transforms here are pure: each takes a document and returns a new
// one. Engine binds them to a config.Store for read, transform, write
// cycles on the file itself.
//
// After Scrub, and after a successful StoreAndReference, every catalog path
// in the returned document holds either an env reference or the missing
// placeholder.
package scrub

import (
	"context"
	"fmt"
	"strings"

	"github.com/systmms/openclaw-secure/internal/catalog"
	"github.com/systmms/openclaw-secure/internal/docpath"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

// StoreResult describes what StoreAndReference did with one entry.
type StoreResult struct {
	KeychainName string `json:"keychainName" yaml:"keychainName"`
	ConfigPath   string `json:"configPath" yaml:"configPath"`
	Stored       bool   `json:"stored" yaml:"stored"`
	Skipped      bool   `json:"skipped" yaml:"skipped"`
}

// KeyCheckResult reports whether a backend holds the secret for one entry.
type KeyCheckResult struct {
	KeychainName string `json:"keychainName" yaml:"keychainName"`
	ConfigPath   string `json:"configPath" yaml:"configPath"`
	Exists       bool   `json:"exists" yaml:"exists"`
	Err          error  `json:"-" yaml:"-"`
}

// Scrub overwrites every catalog path with its env reference, whatever the
// current value. Missing intermediate objects are created.
func Scrub(doc docpath.Document, secrets catalog.SecretMap) (docpath.Document, error) {
	out := docpath.Clone(doc)
	for _, entry := range secrets {
		next, err := docpath.Set(out, entry.ConfigPath, entry.EnvReference())
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// isLiteral reports whether v is a plaintext secret that should be moved
// into the backend. References and bracketed placeholders are left alone.
func isLiteral(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(s, "${") || strings.HasPrefix(s, "[") {
		return "", false
	}
	return s, true
}

// StoreAndReference moves each literal secret into b and replaces it with
// its env reference. Entries that are absent, non-string, already a
// reference or a placeholder are reported as skipped.
//
// A failed Set stops processing. The returned document then contains the
// references for the entries stored so far, and only those, together with
// the error. Callers should still persist it so that no stored secret stays
// in plaintext on disk.
func StoreAndReference(ctx context.Context, doc docpath.Document, secrets catalog.SecretMap, b backend.Backend) (docpath.Document, []StoreResult, error) {
	out := docpath.Clone(doc)
	results := make([]StoreResult, 0, len(secrets))

	for _, entry := range secrets {
		res := StoreResult{KeychainName: entry.KeychainName, ConfigPath: entry.ConfigPath}

		v, ok, err := docpath.Get(out, entry.ConfigPath)
		if err != nil {
			return out, results, err
		}
		value, literal := isLiteral(v)
		if !ok || !literal {
			res.Skipped = true
			results = append(results, res)
			continue
		}

		if err := b.Set(ctx, entry.KeychainName, value); err != nil {
			return out, results, fmt.Errorf("failed to store %s: %w", entry.KeychainName, err)
		}

		next, err := docpath.Set(out, entry.ConfigPath, entry.EnvReference())
		if err != nil {
			return out, results, err
		}
		out = next
		res.Stored = true
		results = append(results, res)
	}
	return out, results, nil
}

// Reconcile writes the env reference for every found entry and the missing
// placeholder for every missing one.
func Reconcile(doc docpath.Document, found, missing catalog.SecretMap) (docpath.Document, error) {
	out := docpath.Clone(doc)
	for _, entry := range found {
		next, err := docpath.Set(out, entry.ConfigPath, entry.EnvReference())
		if err != nil {
			return nil, err
		}
		out = next
	}
	for _, entry := range missing {
		next, err := docpath.Set(out, entry.ConfigPath, catalog.Placeholder)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// CheckAll probes b for every entry without modifying anything. A lookup
// error other than not-found is reported in Err with Exists false.
func CheckAll(ctx context.Context, secrets catalog.SecretMap, b backend.Backend) []KeyCheckResult {
	results := make([]KeyCheckResult, 0, len(secrets))
	for _, entry := range secrets {
		res := KeyCheckResult{KeychainName: entry.KeychainName, ConfigPath: entry.ConfigPath}
		_, err := b.Get(ctx, entry.KeychainName)
		switch {
		case err == nil:
			res.Exists = true
		case backend.IsNotFound(err):
		default:
			res.Err = err
		}
		results = append(results, res)
	}
	return results
}

// IsReferenceOrPlaceholder reports whether value may sit at a catalog path
// on disk.
func IsReferenceOrPlaceholder(value any) bool {
	s, ok := value.(string)
	return ok && catalog.IsSafeValue(s)
}

// Verify returns the catalog paths present in doc whose value is neither an
// env reference nor the placeholder. Absent paths hold nothing and are not
// reported.
func Verify(doc docpath.Document, secrets catalog.SecretMap) []string {
	var unsafe []string
	for _, entry := range secrets {
		v, ok, err := docpath.Get(doc, entry.ConfigPath)
		if err != nil {
			unsafe = append(unsafe, entry.ConfigPath)
			continue
		}
		if ok && !IsReferenceOrPlaceholder(v) {
			unsafe = append(unsafe, entry.ConfigPath)
		}
	}
	return unsafe
}

// Package guard watches the config file while the gateway runs and
// scrubs it again if a live secret value is written back into it.
package guard

import (
	"context"
	"crypto/subtle"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/systmms/openclaw-secure/internal/catalog"
	"github.com/systmms/openclaw-secure/internal/config"
	"github.com/systmms/openclaw-secure/internal/docpath"
	"github.com/systmms/openclaw-secure/internal/logging"
	"github.com/systmms/openclaw-secure/internal/scrub"
	"github.com/systmms/openclaw-secure/internal/secure"
)

// DefaultDebounce coalesces the burst of events produced by one save.
const DefaultDebounce = 100 * time.Millisecond

// Guard re-scrubs one config file.
type Guard struct {
	Path     string
	Secrets  catalog.SecretMap
	Env      *secure.Env
	Store    *config.Store
	Engine   *scrub.Engine
	Logger   *logging.Logger
	Debounce time.Duration

	// OnCheck, when set, receives the outcome of every check.
	OnCheck func(rescrubbed bool, err error)
}

// New returns a Guard for path. env holds the values to look for.
func New(path string, secrets catalog.SecretMap, env *secure.Env, store *config.Store, logger *logging.Logger) *Guard {
	if store == nil {
		store = config.NewStore()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Guard{
		Path:     config.ExpandPath(path),
		Secrets:  secrets,
		Env:      env,
		Store:    store,
		Engine:   scrub.NewEngine(store, logger),
		Logger:   logger,
		Debounce: DefaultDebounce,
	}
}

// Check reads the file once and scrubs it when a catalog path holds one
// of the resolved values. It reports whether it scrubbed.
func (g *Guard) Check() (bool, error) {
	doc, err := g.Store.Read(g.Path)
	if err != nil {
		return false, err
	}
	leaked, err := g.leakedPaths(doc)
	if err != nil {
		return false, err
	}
	if len(leaked) == 0 {
		return false, nil
	}
	g.Logger.Warn("secret value found in %s at %v, scrubbing again", g.Path, leaked)
	if err := g.Engine.ScrubFile(g.Path, g.Secrets); err != nil {
		return false, err
	}
	return true, nil
}

func (g *Guard) leakedPaths(doc docpath.Document) ([]string, error) {
	var candidates []string
	values := map[string][]byte{}
	for _, entry := range g.Secrets {
		v, ok, err := docpath.Get(doc, entry.ConfigPath)
		if err != nil {
			return nil, err
		}
		if s, isString := v.(string); ok && isString && !catalog.IsSafeValue(s) {
			candidates = append(candidates, entry.ConfigPath)
			values[entry.ConfigPath] = []byte(s)
		}
	}
	if len(candidates) == 0 || g.Env == nil {
		return nil, nil
	}

	var leaked []string
	err := g.Env.Each(func(_ string, secret []byte) error {
		for _, path := range candidates {
			if subtle.ConstantTimeCompare(values[path], secret) == 1 {
				leaked = append(leaked, path)
			}
		}
		return nil
	})
	return leaked, err
}

// Run watches the file's directory until ctx is done. The directory, not
// the file, is watched so atomic replacements are seen.
func (g *Guard) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(g.Path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(g.Path), err)
	}
	g.Logger.Debug("watching %s for leaked secrets", g.Path)

	debounce := g.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(g.Path) {
				continue
			}
			timer.Reset(debounce)
		case <-timer.C:
			rescrubbed, err := g.Check()
			if err != nil {
				g.Logger.Debug("guard check failed: %v", err)
			}
			if g.OnCheck != nil {
				g.OnCheck(rescrubbed, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			g.Logger.Debug("watcher error: %v", err)
		}
	}
}

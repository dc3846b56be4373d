// Package commands holds the cobra commands of openclaw-secure.
package commands

import (
	"fmt"

	"github.com/systmms/openclaw-secure/internal/backends"
	"github.com/systmms/openclaw-secure/internal/config"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

// ExitError ends the process with Code. It carries no message of its own:
// whatever caused it has already been reported.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode implements errors.ExitCoder.
func (e *ExitError) ExitCode() int { return e.Code }

// newRegistry builds the backend registry. Tests swap it for one holding
// fakes.
var newRegistry = func(cfg *config.Config) *backends.Registry {
	return backends.NewRegistry(backends.Deps{Logger: cfg.Logger})
}

// openBackend creates the backend selected by --backend, the preferences
// file or the default.
func openBackend(cfg *config.Config) (backend.Backend, error) {
	name := cfg.Backend()
	return newRegistry(cfg).Create(name, cfg.BackendOptions(name))
}

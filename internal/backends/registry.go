// Package backends holds the concrete secret stores behind pkg/backend and
// the registry that builds them by name.
package backends

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/internal/logging"
	"github.com/systmms/openclaw-secure/pkg/backend"
	pkgexec "github.com/systmms/openclaw-secure/pkg/exec"
)

// Deps are the collaborators shared by every backend a registry builds.
type Deps struct {
	Executor pkgexec.CommandExecutor
	Logger   *logging.Logger
}

// Factory creates a backend from its option map (the "backends.<name>"
// section of the preferences file, possibly nil).
type Factory func(options map[string]any, deps Deps) (backend.Backend, error)

// Registry manages backend creation by name.
type Registry struct {
	factories map[string]Factory
	deps      Deps
}

// NewRegistry creates a registry with the built-in backends.
func NewRegistry(deps Deps) *Registry {
	if deps.Executor == nil {
		deps.Executor = pkgexec.DefaultExecutor()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}

	r := &Registry{
		factories: make(map[string]Factory),
		deps:      deps,
	}

	r.Register("keychain", newKeychainFactory)
	r.Register("1password", newOnePasswordFactory)
	r.Register("bitwarden", newBitwardenFactory)
	r.Register("lastpass", newLastPassFactory)
	r.Register("pass", newPassFactory)
	r.Register("doppler", newDopplerFactory)
	r.Register("aws", newAWSSecretsManagerFactory)
	r.Register("aws-ssm", newAWSSSMFactory)
	r.Register("gcloud", newGCloudFactory)
	r.Register("azure", newAzureKeyVaultFactory)
	r.Register("vault", newVaultFactory)
	r.Register("akeyless", newAkeylessFactory)
	r.Register("memory", newMemoryFactory)

	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupported reports whether name is registered.
func (r *Registry) IsSupported(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Create builds the backend called name.
func (r *Registry) Create(name string, options map[string]any) (backend.Backend, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, apperrors.UserError{
			Message:    fmt.Sprintf("unknown backend %q", name),
			Suggestion: "Use one of: " + strings.Join(r.Names(), ", "),
		}
	}

	b, err := factory(options, r.deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", name, err)
	}
	return b, nil
}

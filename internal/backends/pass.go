package backends

import (
	"context"
	"strings"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
	pkgexec "github.com/systmms/openclaw-secure/pkg/exec"
)

// PassConfig configures the pass (zx2c4) backend.
type PassConfig struct {
	Prefix        string // directory inside the store, default "openclaw"
	PasswordStore string // PASSWORD_STORE_DIR override
	GpgKey        string // PASSWORD_STORE_KEY override
}

// Pass stores each secret in the first line of <prefix>/<key>.
type Pass struct {
	tool   cliTool
	prefix string
}

// NewPass returns a pass backend.
func NewPass(cfg PassConfig, executor pkgexec.CommandExecutor) *Pass {
	tool := cliTool{bin: "pass", executor: executor}
	if cfg.PasswordStore != "" {
		tool.env = append(tool.env, "PASSWORD_STORE_DIR="+cfg.PasswordStore)
	}
	if cfg.GpgKey != "" {
		tool.env = append(tool.env, "PASSWORD_STORE_KEY="+cfg.GpgKey)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "openclaw"
	}
	return &Pass{tool: tool, prefix: prefix}
}

func newPassFactory(options map[string]any, deps Deps) (backend.Backend, error) {
	return NewPass(PassConfig{
		Prefix:        stringOption(options, "prefix", ""),
		PasswordStore: stringOption(options, "password_store", ""),
		GpgKey:        stringOption(options, "gpg_key", ""),
	}, deps.Executor), nil
}

// Name implements backend.Backend.
func (p *Pass) Name() string { return "pass" }

// Available implements backend.Backend.
func (p *Pass) Available(context.Context) bool {
	return p.tool.installed()
}

func (p *Pass) path(key string) string {
	return p.prefix + "/" + key
}

// Get implements backend.Backend.
func (p *Pass) Get(ctx context.Context, key string) (string, error) {
	out, err := p.tool.run(ctx, nil, "show", p.path(key))
	if err != nil {
		if stderrContains(err, "is not in the password store") {
			return "", backend.NotFound(p.Name(), key)
		}
		return "", apperrors.ProviderError(p.Name(), "get", err)
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return first, nil
}

// Set implements backend.Backend.
func (p *Pass) Set(ctx context.Context, key, value string) error {
	if _, err := p.tool.run(ctx, []byte(value+"\n"), "insert", "--multiline", "--force", p.path(key)); err != nil {
		return apperrors.ProviderError(p.Name(), "set", err)
	}
	return nil
}

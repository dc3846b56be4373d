package backends

import (
	"context"
	"strings"

	"github.com/systmms/openclaw-secure/internal/catalog"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
	pkgexec "github.com/systmms/openclaw-secure/pkg/exec"
)

// DopplerConfig selects the Doppler project and config. Empty fields fall
// back to the directory scope set up by "doppler setup".
type DopplerConfig struct {
	Token   string
	Project string
	Config  string
}

// Doppler stores secrets under their environment-variable names
// (OPENCLAW_SECURE_<KEY>), which is the only naming Doppler accepts.
type Doppler struct {
	tool cliTool
	cfg  DopplerConfig
}

// NewDoppler returns a Doppler backend.
func NewDoppler(cfg DopplerConfig, executor pkgexec.CommandExecutor) *Doppler {
	tool := cliTool{bin: "doppler", executor: executor}
	if cfg.Token != "" {
		tool.env = []string{"DOPPLER_TOKEN=" + cfg.Token}
	}
	return &Doppler{tool: tool, cfg: cfg}
}

func newDopplerFactory(options map[string]any, deps Deps) (backend.Backend, error) {
	return NewDoppler(DopplerConfig{
		Token:   stringOption(options, "token", ""),
		Project: stringOption(options, "project", "", "DOPPLER_PROJECT"),
		Config:  stringOption(options, "config", "", "DOPPLER_CONFIG"),
	}, deps.Executor), nil
}

// Name implements backend.Backend.
func (d *Doppler) Name() string { return "doppler" }

// Available implements backend.Backend.
func (d *Doppler) Available(ctx context.Context) bool {
	_, ok := d.tool.probe(ctx, "me", "--json")
	return ok
}

func (d *Doppler) scope() []string {
	var args []string
	if d.cfg.Project != "" {
		args = append(args, "--project", d.cfg.Project)
	}
	if d.cfg.Config != "" {
		args = append(args, "--config", d.cfg.Config)
	}
	return args
}

// Get implements backend.Backend.
func (d *Doppler) Get(ctx context.Context, key string) (string, error) {
	args := append([]string{"secrets", "get", catalog.EnvVarName(key), "--plain"}, d.scope()...)
	out, err := d.tool.run(ctx, nil, args...)
	if err != nil {
		if stderrContains(err, "could not find requested secret") {
			return "", backend.NotFound(d.Name(), key)
		}
		return "", apperrors.ProviderError(d.Name(), "get", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// Set implements backend.Backend. The value is read by doppler from stdin.
func (d *Doppler) Set(ctx context.Context, key, value string) error {
	args := append([]string{"secrets", "set", catalog.EnvVarName(key), "--silent"}, d.scope()...)
	if _, err := d.tool.run(ctx, []byte(value), args...); err != nil {
		return apperrors.ProviderError(d.Name(), "set", err)
	}
	return nil
}

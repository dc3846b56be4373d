package backends

import (
	"context"
	"strings"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
	pkgexec "github.com/systmms/openclaw-secure/pkg/exec"
)

// LastPass stores secrets as site entries under an optional folder, driven
// through lpass. "lpass login" must have been run beforehand.
type LastPass struct {
	tool   cliTool
	folder string
}

// NewLastPass returns a LastPass backend. folder may be empty.
func NewLastPass(folder string, executor pkgexec.CommandExecutor) *LastPass {
	return &LastPass{tool: cliTool{bin: "lpass", executor: executor}, folder: folder}
}

func newLastPassFactory(options map[string]any, deps Deps) (backend.Backend, error) {
	return NewLastPass(stringOption(options, "folder", ""), deps.Executor), nil
}

// Name implements backend.Backend.
func (l *LastPass) Name() string { return "lastpass" }

// Available implements backend.Backend.
func (l *LastPass) Available(ctx context.Context) bool {
	_, ok := l.tool.probe(ctx, "status", "--quiet")
	return ok
}

func (l *LastPass) entry(key string) string {
	if l.folder == "" {
		return itemName(key)
	}
	return l.folder + "/" + itemName(key)
}

// Get implements backend.Backend.
func (l *LastPass) Get(ctx context.Context, key string) (string, error) {
	out, err := l.tool.run(ctx, nil, "show", "--password", l.entry(key))
	if err != nil {
		if stderrContains(err, "could not find specified account") {
			return "", backend.NotFound(l.Name(), key)
		}
		return "", apperrors.ProviderError(l.Name(), "get", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// Set implements backend.Backend. lpass edit creates the entry when it
// does not exist yet.
func (l *LastPass) Set(ctx context.Context, key, value string) error {
	if _, err := l.tool.run(ctx, []byte(value), "edit", "--non-interactive", "--password", l.entry(key)); err != nil {
		return apperrors.ProviderError(l.Name(), "set", err)
	}
	return nil
}

package backends

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
	pkgexec "github.com/systmms/openclaw-secure/pkg/exec"
)

// cliTool runs a password-manager CLI. Secret values only ever travel on
// stdin; argv is visible to every local user through the process table.
type cliTool struct {
	bin      string
	env      []string
	executor pkgexec.CommandExecutor
}

// CLIError carries the stderr of a failed CLI invocation.
type CLIError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *CLIError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Tool, e.Stderr, e.Err)
}

func (e *CLIError) Unwrap() error { return e.Err }

func (c cliTool) run(ctx context.Context, input []byte, args ...string) ([]byte, error) {
	name, argv := c.bin, args
	if len(c.env) > 0 {
		name = "env"
		argv = make([]string, 0, len(c.env)+1+len(args))
		argv = append(argv, c.env...)
		argv = append(argv, c.bin)
		argv = append(argv, args...)
	}

	stdout, stderr, err := c.executor.ExecuteWithInput(ctx, input, name, argv...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, apperrors.WrapCommandNotFound(c.bin, err)
		}
		return stdout, &CLIError{Tool: c.bin, Stderr: strings.TrimSpace(string(stderr)), Err: err}
	}
	return stdout, nil
}

func (c cliTool) installed() bool {
	_, err := c.executor.LookPath(c.bin)
	return err == nil
}

// probe reports whether the tool is installed and args exits cleanly
// within backend.ProbeTimeout.
func (c cliTool) probe(ctx context.Context, args ...string) ([]byte, bool) {
	if !c.installed() {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, backend.ProbeTimeout)
	defer cancel()
	out, err := c.run(ctx, nil, args...)
	return out, err == nil
}

// stderrContains reports whether err is a CLIError whose stderr mentions any
// of the given fragments, case-insensitively.
func stderrContains(err error, fragments ...string) bool {
	var cliErr *CLIError
	if !errors.As(err, &cliErr) {
		return false
	}
	s := strings.ToLower(cliErr.Stderr)
	for _, f := range fragments {
		if strings.Contains(s, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

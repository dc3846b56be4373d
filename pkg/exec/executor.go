// Package exec provides abstractions for command execution.
// CLI-driven secret backends and process listing go through
// CommandExecutor so their behaviour can be mocked in tests.
package exec

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandExecutor defines an interface for executing shell commands.
type CommandExecutor interface {
	// Execute runs a command with the given context and arguments.
	// Returns stdout, stderr, and any error that occurred.
	Execute(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)

	// ExecuteWithInput is Execute with input fed to the command's stdin.
	// Secret values are passed this way so they never appear in argv.
	ExecuteWithInput(ctx context.Context, input []byte, name string, args ...string) (stdout []byte, stderr []byte, err error)

	// LookPath reports where name would be found on PATH.
	LookPath(name string) (string, error)
}

// RealCommandExecutor executes actual commands using os/exec.
type RealCommandExecutor struct{}

// Execute runs an actual command.
func (r *RealCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	return r.ExecuteWithInput(ctx, nil, name, args...)
}

// ExecuteWithInput runs an actual command with stdin set to input.
func (r *RealCommandExecutor) ExecuteWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if input != nil {
		cmd.Stdin = bytes.NewReader(input)
	}
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// LookPath wraps exec.LookPath.
func (r *RealCommandExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// DefaultExecutor returns the standard production executor.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}

package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// UnsafePathError is returned when a config path contains a reserved
// structural segment. It signals a corrupt or hostile config path.
type UnsafePathError struct {
	Path    string
	Segment string
}

func (e *UnsafePathError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("unsafe config path %q: empty segment", e.Path)
	}
	return fmt.Sprintf("unsafe config path %q: reserved segment %q", e.Path, e.Segment)
}

// ConfigReadError wraps a failure to load or parse the configuration document
type ConfigReadError struct {
	Path string
	Err  error
}

func (e *ConfigReadError) Error() string {
	return fmt.Sprintf("failed to read config %s: %v", e.Path, e.Err)
}

func (e *ConfigReadError) Unwrap() error { return e.Err }

// ConfigWriteError wraps a failure during backup or atomic replace.
// Stage is one of "backup", "encode", "write", "rename".
type ConfigWriteError struct {
	Path  string
	Stage string
	Err   error
}

func (e *ConfigWriteError) Error() string {
	return fmt.Sprintf("failed to write config %s (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *ConfigWriteError) Unwrap() error { return e.Err }

// BackendUnavailableError reports that a backend failed its availability probe
type BackendUnavailableError struct {
	Backend string
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend %s is not available", e.Backend)
}

// BackendTransientError reports a backend read that kept failing after retries
type BackendTransientError struct {
	Backend  string
	Key      string
	Attempts int
	Err      error
}

func (e *BackendTransientError) Error() string {
	return fmt.Sprintf("backend %s: fetching %s failed after %d attempts: %v", e.Backend, e.Key, e.Attempts, e.Err)
}

func (e *BackendTransientError) Unwrap() error { return e.Err }

// ExitCoder is implemented by errors that carry a process exit code
type ExitCoder interface {
	ExitCode() int
}

// SpawnError reports that the child process could not be started
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// HealthTimeoutError reports that the liveness endpoint never became healthy
type HealthTimeoutError struct {
	Endpoint string
	Timeout  time.Duration
}

func (e *HealthTimeoutError) Error() string {
	return fmt.Sprintf("%s did not become healthy within %s", e.Endpoint, e.Timeout)
}

// ProviderError enhances backend-specific errors with context
func ProviderError(backend string, operation string, err error) error {
	suggestion := getProviderSuggestion(backend, err)

	return UserError{
		Message:    fmt.Sprintf("%s backend error during %s", backend, operation),
		Suggestion: suggestion,
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on backend and error
func getProviderSuggestion(backend string, err error) string {
	errStr := err.Error()

	switch backend {
	case "bitwarden":
		if strings.Contains(errStr, "not logged in") {
			return "Run 'bw login' to authenticate with Bitwarden"
		}
		if strings.Contains(errStr, "vault is locked") {
			return "Run 'bw unlock' and export the BW_SESSION environment variable"
		}
		if strings.Contains(errStr, "command not found") {
			return "Install Bitwarden CLI: https://bitwarden.com/help/cli/"
		}

	case "1password":
		if strings.Contains(errStr, "not signed in") {
			return "Run 'op signin' to authenticate with 1Password"
		}
		if strings.Contains(errStr, "session expired") {
			return "Your 1Password session has expired. Run 'op signin' again"
		}
		if strings.Contains(errStr, "command not found") {
			return "Install 1Password CLI: https://developer.1password.com/docs/cli/get-started/"
		}

	case "lastpass":
		if strings.Contains(errStr, "Not logged in") || strings.Contains(errStr, "not logged in") {
			return "Run 'lpass login <email>' to authenticate with LastPass"
		}

	case "aws", "aws-ssm":
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:GetSecretValue and PutSecretValue"
		}
		if strings.Contains(errStr, "ThrottlingException") {
			return "AWS rate limit exceeded. Wait a moment and try again"
		}

	case "keychain":
		if strings.Contains(errStr, "access denied") {
			return "Allow access to the keychain item when prompted, or unlock the login keychain"
		}
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and backend configuration"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"openclaw": "Install OpenClaw and make sure 'openclaw' is in your PATH",
		"op":       "Install 1Password CLI: https://developer.1password.com/docs/cli/get-started/",
		"bw":       "Install Bitwarden CLI: https://bitwarden.com/help/cli/",
		"lpass":    "Install LastPass CLI: https://github.com/lastpass/lastpass-cli",
		"pass":     "Install pass: https://www.passwordstore.org/",
		"doppler":  "Install Doppler CLI: https://docs.doppler.com/docs/install-cli",
		"npm":      "Install Node.js from https://nodejs.org/",
		"docker":   "Install Docker from https://docker.com/",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	return CommandError{
		Command:    command,
		Message:    "command not found",
		Suggestion: suggestion,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}
	var cmdErr CommandError
	if errors.As(err, &cmdErr) {
		return err
	}

	var unsafe *UnsafePathError
	if errors.As(err, &unsafe) {
		return UserError{
			Message:    unsafe.Error(),
			Suggestion: "The secret catalog or config contains a reserved path segment; check for tampering",
			Err:        err,
		}
	}

	var readErr *ConfigReadError
	if errors.As(err, &readErr) {
		suggestion := "Check that the config file exists and is valid JSON"
		if strings.Contains(err.Error(), "no such file or directory") {
			suggestion = "Pass --config or set configPath in ~/.openclaw-secure.json"
		}
		return UserError{Message: readErr.Error(), Suggestion: suggestion, Err: err}
	}

	var writeErr *ConfigWriteError
	if errors.As(err, &writeErr) {
		return UserError{
			Message:    writeErr.Error(),
			Suggestion: "The original config was left in place; check free space and directory permissions",
			Err:        err,
		}
	}

	var unavailable *BackendUnavailableError
	if errors.As(err, &unavailable) {
		return UserError{
			Message:    unavailable.Error(),
			Suggestion: "Run 'openclaw-secure backends' to see which backends are usable here",
			Err:        err,
		}
	}

	var spawnErr *SpawnError
	if errors.As(err, &spawnErr) {
		return UserError{
			Message:    spawnErr.Error(),
			Suggestion: "Check the command with --command or gatewayCommand in ~/.openclaw-secure.json",
			Err:        err,
		}
	}

	var healthErr *HealthTimeoutError
	if errors.As(err, &healthErr) {
		return UserError{
			Message:    healthErr.Error(),
			Suggestion: "The config was scrubbed. Raise --timeout or check --port against the gateway's listen port",
			Err:        err,
		}
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	return err
}

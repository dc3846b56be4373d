package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
)

// withFetchTimeout bounds a single backend read. A zero timeout leaves ctx
// unchanged.
func withFetchTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutError turns a per-attempt deadline into a UserError. Other errors,
// and a deadline inherited from the caller's context, pass through.
func timeoutError(parent context.Context, err error, backendName string, timeout time.Duration) error {
	if !errors.Is(err, context.DeadlineExceeded) || parent.Err() != nil {
		return err
	}
	return apperrors.UserError{
		Message:    fmt.Sprintf("%s backend timed out", backendName),
		Details:    fmt.Sprintf("read exceeded %s", timeout),
		Suggestion: timeoutSuggestion(backendName),
		Err:        err,
	}
}

func timeoutSuggestion(backendName string) string {
	switch backendName {
	case "bitwarden":
		return "The Bitwarden CLI can be slow. Check 'bw status' and run 'bw unlock' if the vault is locked"
	case "1password":
		return "Check 'op whoami'. Run 'op signin' if the session expired"
	case "lastpass":
		return "Check 'lpass status'. Run 'lpass login' if needed"
	case "keychain":
		return "The keychain may be waiting for an unlock prompt. Unlock it and try again"
	case "aws", "aws-ssm":
		return "Check AWS connectivity and credentials. Verify the region is correct"
	case "gcloud":
		return "Check Google Cloud connectivity and authentication"
	case "azure":
		return "Check Azure connectivity and authentication"
	case "vault":
		return "Check Vault connectivity and authentication. Verify VAULT_ADDR"
	}
	return "Check connectivity and authentication for the backend"
}

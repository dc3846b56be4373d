package backends

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
	pkgexec "github.com/systmms/openclaw-secure/pkg/exec"
)

// Bitwarden stores each secret as the password of a login item named
// "openclaw-<key>". The vault must be unlocked with BW_SESSION exported.
type Bitwarden struct {
	tool cliTool
}

// NewBitwarden returns a Bitwarden backend using executor to run bw.
func NewBitwarden(executor pkgexec.CommandExecutor) *Bitwarden {
	return &Bitwarden{tool: cliTool{bin: "bw", executor: executor}}
}

func newBitwardenFactory(_ map[string]any, deps Deps) (backend.Backend, error) {
	return NewBitwarden(deps.Executor), nil
}

// Name implements backend.Backend.
func (b *Bitwarden) Name() string { return "bitwarden" }

type bitwardenStatus struct {
	Status string `json:"status"`
}

// Available implements backend.Backend. Only an unlocked vault counts.
func (b *Bitwarden) Available(ctx context.Context) bool {
	out, ok := b.tool.probe(ctx, "status")
	if !ok {
		return false
	}
	var status bitwardenStatus
	if err := json.Unmarshal(out, &status); err != nil {
		return false
	}
	return status.Status == "unlocked"
}

func (b *Bitwarden) isNotFound(err error) bool {
	return stderrContains(err, "not found")
}

// Get implements backend.Backend.
func (b *Bitwarden) Get(ctx context.Context, key string) (string, error) {
	out, err := b.tool.run(ctx, nil, "get", "password", itemName(key))
	if err != nil {
		if b.isNotFound(err) {
			return "", backend.NotFound(b.Name(), key)
		}
		return "", apperrors.ProviderError(b.Name(), "get", err)
	}
	return string(out), nil
}

// Set implements backend.Backend.
func (b *Bitwarden) Set(ctx context.Context, key, value string) error {
	name := itemName(key)

	out, err := b.tool.run(ctx, nil, "get", "item", name)
	if err != nil && !b.isNotFound(err) {
		return apperrors.ProviderError(b.Name(), "set", err)
	}

	if err == nil {
		var item map[string]any
		if err := json.Unmarshal(out, &item); err != nil {
			return fmt.Errorf("bitwarden: decode item %s: %w", name, err)
		}
		id, _ := item["id"].(string)
		login, _ := item["login"].(map[string]any)
		if login == nil {
			login = map[string]any{}
		}
		login["password"] = value
		item["login"] = login
		return b.write(ctx, item, "edit", "item", id)
	}

	item := map[string]any{
		"type":  1,
		"name":  name,
		"notes": nil,
		"login": map[string]any{"password": value},
	}
	return b.write(ctx, item, "create", "item")
}

// write sends item to bw in the base64 form "bw encode" would produce.
func (b *Bitwarden) write(ctx context.Context, item map[string]any, args ...string) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	encoded := []byte(base64.StdEncoding.EncodeToString(data))
	if _, err := b.tool.run(ctx, encoded, args...); err != nil {
		return apperrors.ProviderError(b.Name(), "set", err)
	}
	return nil
}

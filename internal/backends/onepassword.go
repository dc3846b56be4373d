package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
	pkgexec "github.com/systmms/openclaw-secure/pkg/exec"
)

// OnePassword stores each secret as a Password item named
// "openclaw-<key>" in one vault, driven through the op CLI.
type OnePassword struct {
	tool  cliTool
	vault string
}

// NewOnePassword returns a 1Password backend for vault. An empty account
// uses op's default account.
func NewOnePassword(vault, account string, executor pkgexec.CommandExecutor) *OnePassword {
	tool := cliTool{bin: "op", executor: executor}
	if account != "" {
		tool.env = []string{"OP_ACCOUNT=" + account}
	}
	return &OnePassword{tool: tool, vault: vault}
}

func newOnePasswordFactory(options map[string]any, deps Deps) (backend.Backend, error) {
	vault := stringOption(options, "vault", "Private", "OPENCLAW_SECURE_OP_VAULT")
	account := stringOption(options, "account", "")
	return NewOnePassword(vault, account, deps.Executor), nil
}

// Name implements backend.Backend.
func (o *OnePassword) Name() string { return "1password" }

// Available implements backend.Backend.
func (o *OnePassword) Available(ctx context.Context) bool {
	_, ok := o.tool.probe(ctx, "whoami")
	return ok
}

func (o *OnePassword) isNotFound(err error) bool {
	return stderrContains(err, "isn't an item", "not found", "no item found")
}

// Get implements backend.Backend.
func (o *OnePassword) Get(ctx context.Context, key string) (string, error) {
	ref := fmt.Sprintf("op://%s/%s/password", o.vault, itemName(key))
	out, err := o.tool.run(ctx, nil, "read", "--no-newline", ref)
	if err != nil {
		if o.isNotFound(err) {
			return "", backend.NotFound(o.Name(), key)
		}
		return "", apperrors.ProviderError(o.Name(), "get", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

type opField struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Purpose string `json:"purpose"`
	Label   string `json:"label"`
	Value   string `json:"value"`
}

type opItemTemplate struct {
	Title    string    `json:"title"`
	Category string    `json:"category"`
	Fields   []opField `json:"fields"`
}

// Set implements backend.Backend. An existing item is replaced: op has no
// way to edit a field from stdin.
func (o *OnePassword) Set(ctx context.Context, key, value string) error {
	item := itemName(key)

	_, err := o.tool.run(ctx, nil, "item", "get", item, "--vault", o.vault, "--format", "json")
	switch {
	case err == nil:
		if _, err := o.tool.run(ctx, nil, "item", "delete", item, "--vault", o.vault); err != nil {
			return apperrors.ProviderError(o.Name(), "set", err)
		}
	case !o.isNotFound(err):
		return apperrors.ProviderError(o.Name(), "set", err)
	}

	template, err := json.Marshal(opItemTemplate{
		Title:    item,
		Category: "PASSWORD",
		Fields: []opField{{
			ID:      "password",
			Type:    "CONCEALED",
			Purpose: "PASSWORD",
			Label:   "password",
			Value:   value,
		}},
	})
	if err != nil {
		return err
	}

	if _, err := o.tool.run(ctx, template, "item", "create", "--vault", o.vault, "--format", "json", "-"); err != nil {
		return apperrors.ProviderError(o.Name(), "set", err)
	}
	return nil
}

package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

// VaultConfig configures the HashiCorp Vault KV v2 backend.
type VaultConfig struct {
	Address   string
	Token     string
	Namespace string
	Mount     string // KV v2 mount, default "secret"
	Prefix    string // path under the mount, default "openclaw"
}

// Vault stores each secret at <mount>/data/<prefix>/<key> under the field
// "value".
type Vault struct {
	cfg    VaultConfig
	client *http.Client
}

// NewVault returns a Vault backend. A nil client gets a 30s timeout client.
func NewVault(cfg VaultConfig, client *http.Client) *Vault {
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "openclaw"
	}
	cfg.Address = strings.TrimSuffix(cfg.Address, "/")
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Vault{cfg: cfg, client: client}
}

func newVaultFactory(options map[string]any, _ Deps) (backend.Backend, error) {
	cfg := VaultConfig{
		Address:   stringOption(options, "address", "http://127.0.0.1:8200", "VAULT_ADDR"),
		Token:     stringOption(options, "token", "", "VAULT_TOKEN"),
		Namespace: stringOption(options, "namespace", "", "VAULT_NAMESPACE"),
		Mount:     stringOption(options, "mount", "secret"),
		Prefix:    stringOption(options, "prefix", "openclaw"),
	}
	if cfg.Token == "" {
		cfg.Token = tokenHelperFile()
	}
	return NewVault(cfg, nil), nil
}

// tokenHelperFile reads ~/.vault-token as written by "vault login".
func tokenHelperFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(home, ".vault-token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Name implements backend.Backend.
func (v *Vault) Name() string { return "vault" }

func (v *Vault) dataURL(key string) string {
	return fmt.Sprintf("%s/v1/%s/data/%s/%s", v.cfg.Address, v.cfg.Mount, v.cfg.Prefix, key)
}

func (v *Vault) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Vault-Token", v.cfg.Token)
	if v.cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", v.cfg.Namespace)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return v.client.Do(req)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("vault returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// Available implements backend.Backend: a token is configured and Vault
// accepts it.
func (v *Vault) Available(ctx context.Context) bool {
	if v.cfg.Token == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, backend.ProbeTimeout)
	defer cancel()
	resp, err := v.do(ctx, http.MethodGet, v.cfg.Address+"/v1/auth/token/lookup-self", nil)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

type kvResponse struct {
	Data struct {
		Data map[string]any `json:"data"`
	} `json:"data"`
}

// Get implements backend.Backend.
func (v *Vault) Get(ctx context.Context, key string) (string, error) {
	resp, err := v.do(ctx, http.MethodGet, v.dataURL(key), nil)
	if err != nil {
		return "", apperrors.ProviderError(v.Name(), "get", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", backend.NotFound(v.Name(), key)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.ProviderError(v.Name(), "get", statusError(resp))
	}

	var kv kvResponse
	if err := json.NewDecoder(resp.Body).Decode(&kv); err != nil {
		return "", apperrors.ProviderError(v.Name(), "get", fmt.Errorf("failed to decode response: %w", err))
	}
	// A soft-deleted latest version answers 200 with null data.
	value, ok := kv.Data.Data["value"].(string)
	if !ok {
		return "", backend.NotFound(v.Name(), key)
	}
	return value, nil
}

// Set implements backend.Backend.
func (v *Vault) Set(ctx context.Context, key, value string) error {
	body := map[string]any{"data": map[string]string{"value": value}}
	resp, err := v.do(ctx, http.MethodPost, v.dataURL(key), body)
	if err != nil {
		return apperrors.ProviderError(v.Name(), "set", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return apperrors.ProviderError(v.Name(), "set", statusError(resp))
	}
	return nil
}

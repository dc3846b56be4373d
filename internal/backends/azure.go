package backends

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

const azureVaultScope = "https://vault.azure.net/.default"

// AzureKeyVaultAPI is the subset of the azsecrets client in use.
type AzureKeyVaultAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// AzureConfig configures the Key Vault backend. Without client secret
// fields the default credential chain (env, managed identity, az CLI) is used.
type AzureConfig struct {
	VaultURL       string
	TenantID       string
	ClientID       string
	ClientSecret   string
	UserAssignedID string
}

// AzureKeyVault stores each secret as "openclaw-<key>" in one vault.
type AzureKeyVault struct {
	cfg AzureConfig

	once   sync.Once
	client AzureKeyVaultAPI
	cred   azcore.TokenCredential
	err    error
}

// NewAzureKeyVault returns an Azure backend; credentials are resolved on
// first use.
func NewAzureKeyVault(cfg AzureConfig) *AzureKeyVault {
	return &AzureKeyVault{cfg: cfg}
}

// NewAzureKeyVaultWithClient returns an Azure backend using client and
// cred (for testing). cred may be nil, in which case Available only checks
// that a client exists.
func NewAzureKeyVaultWithClient(client AzureKeyVaultAPI, cred azcore.TokenCredential) *AzureKeyVault {
	a := &AzureKeyVault{client: client, cred: cred}
	a.once.Do(func() {})
	return a
}

func newAzureKeyVaultFactory(options map[string]any, _ Deps) (backend.Backend, error) {
	cfg := AzureConfig{
		VaultURL:       stringOption(options, "vault_url", "", "AZURE_KEYVAULT_URL"),
		TenantID:       stringOption(options, "tenant_id", "", "AZURE_TENANT_ID"),
		ClientID:       stringOption(options, "client_id", "", "AZURE_CLIENT_ID"),
		ClientSecret:   stringOption(options, "client_secret", ""),
		UserAssignedID: stringOption(options, "user_assigned_identity_id", ""),
	}
	if cfg.VaultURL == "" {
		return nil, apperrors.ConfigError{
			Field:      "backends.azure.vault_url",
			Message:    "vault_url is required for Azure Key Vault",
			Suggestion: "Set backends.azure.vault_url (https://<name>.vault.azure.net/) or AZURE_KEYVAULT_URL",
		}
	}
	return NewAzureKeyVault(cfg), nil
}

func (a *AzureKeyVault) api() (AzureKeyVaultAPI, error) {
	a.once.Do(func() {
		var cred azcore.TokenCredential
		var err error
		switch {
		case a.cfg.ClientSecret != "":
			cred, err = azidentity.NewClientSecretCredential(a.cfg.TenantID, a.cfg.ClientID, a.cfg.ClientSecret, nil)
		case a.cfg.UserAssignedID != "":
			cred, err = azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
				ID: azidentity.ClientID(a.cfg.UserAssignedID),
			})
		default:
			cred, err = azidentity.NewDefaultAzureCredential(nil)
		}
		if err != nil {
			a.err = fmt.Errorf("failed to create Azure credential: %w", err)
			return
		}
		client, err := azsecrets.NewClient(a.cfg.VaultURL, cred, nil)
		if err != nil {
			a.err = fmt.Errorf("failed to create Key Vault client: %w", err)
			return
		}
		a.cred = cred
		a.client = client
	})
	return a.client, a.err
}

// Name implements backend.Backend.
func (a *AzureKeyVault) Name() string { return "azure" }

// Available implements backend.Backend. It checks that a token for Key
// Vault can be obtained.
func (a *AzureKeyVault) Available(ctx context.Context) bool {
	if _, err := a.api(); err != nil {
		return false
	}
	if a.cred == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, backend.ProbeTimeout)
	defer cancel()
	_, err := a.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{azureVaultScope}})
	return err == nil
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// Get implements backend.Backend.
func (a *AzureKeyVault) Get(ctx context.Context, key string) (string, error) {
	client, err := a.api()
	if err != nil {
		return "", apperrors.ProviderError(a.Name(), "get", err)
	}
	resp, err := client.GetSecret(ctx, itemName(key), "", nil)
	if err != nil {
		if isAzureNotFound(err) {
			return "", backend.NotFound(a.Name(), key)
		}
		return "", apperrors.ProviderError(a.Name(), "get", err)
	}
	if resp.Value == nil {
		return "", backend.NotFound(a.Name(), key)
	}
	return *resp.Value, nil
}

// Set implements backend.Backend.
func (a *AzureKeyVault) Set(ctx context.Context, key, value string) error {
	client, err := a.api()
	if err != nil {
		return apperrors.ProviderError(a.Name(), "set", err)
	}
	contentType := "text/plain"
	_, err = client.SetSecret(ctx, itemName(key), azsecrets.SetSecretParameters{
		Value:       &value,
		ContentType: &contentType,
	}, nil)
	if err != nil {
		return apperrors.ProviderError(a.Name(), "set", err)
	}
	return nil
}

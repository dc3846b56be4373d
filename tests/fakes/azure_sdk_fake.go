package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureKeyVaultClient is an in-memory backends.AzureKeyVaultAPI.
type FakeAzureKeyVaultClient struct {
	mu sync.Mutex
	// Secrets maps secret names to their values
	Secrets map[string]string
	// Errors maps secret names to errors to return
	Errors map[string]error
}

// NewFakeAzureKeyVaultClient creates a new mock Azure Key Vault client
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		Secrets: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

// GetSecret mocks GetSecret for the latest version.
func (f *FakeAzureKeyVaultClient) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.Errors[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	v, ok := f.Secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, AzureNotFoundError()
	}
	return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{Value: to.Ptr(v)}}, nil
}

// SetSecret mocks SetSecret.
func (f *FakeAzureKeyVaultClient) SetSecret(_ context.Context, name string, params azsecrets.SetSecretParameters, _ *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.Errors[name]; ok {
		return azsecrets.SetSecretResponse{}, err
	}
	f.Secrets[name] = *params.Value
	return azsecrets.SetSecretResponse{Secret: azsecrets.Secret{Value: params.Value}}, nil
}

// FakeTokenCredential returns Err or a token valid for an hour.
type FakeTokenCredential struct {
	Err error
}

// GetToken implements azcore.TokenCredential.
func (f *FakeTokenCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if f.Err != nil {
		return azcore.AccessToken{}, f.Err
	}
	return azcore.AccessToken{Token: "fake", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

// AzureNotFoundError creates a mock Azure not found error
func AzureNotFoundError() error {
	return &azcore.ResponseError{
		StatusCode: 404,
		ErrorCode:  "SecretNotFound",
	}
}

package backends_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/openclaw-secure/internal/backends"
	"github.com/systmms/openclaw-secure/pkg/backend"
	"github.com/systmms/openclaw-secure/tests/fakes"
	"github.com/systmms/openclaw-secure/tests/testutil"
)

func newSecretsManager(t *testing.T, sm *fakes.FakeSecretsManagerClient, sts *fakes.FakeSTSClient) *backends.AWSSecretsManager {
	t.Helper()
	b, err := backends.NewAWSSecretsManager(backends.AWSConfig{Region: "us-east-1"}, "openclaw/",
		backends.WithSecretsManagerClient(sm), backends.WithSTSClient(sts))
	require.NoError(t, err)
	return b
}

func TestAWSSecretsManagerContract(t *testing.T) {
	t.Parallel()

	testutil.RunBackendContractTests(t, testutil.BackendTestCase{
		Name:     "aws",
		Backend:  newSecretsManager(t, fakes.NewFakeSecretsManagerClient(), &fakes.FakeSTSClient{}),
		TestData: contractData,
	})
}

func TestAWSSecretsManagerCreatesThenUpdates(t *testing.T) {
	t.Parallel()

	sm := fakes.NewFakeSecretsManagerClient()
	b := newSecretsManager(t, sm, &fakes.FakeSTSClient{})
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "gateway-auth-token", "v1"))
	require.NoError(t, b.Set(ctx, "gateway-auth-token", "v2"))

	assert.Equal(t, []string{"openclaw/gateway-auth-token"}, sm.Created)
	assert.Equal(t, "v2", sm.Secrets["openclaw/gateway-auth-token"])
}

func TestAWSSecretsManagerErrors(t *testing.T) {
	t.Parallel()

	sm := fakes.NewFakeSecretsManagerClient()
	sm.Errors["openclaw/gateway-auth-token"] = errors.New("ThrottlingException: Rate exceeded")
	b := newSecretsManager(t, sm, &fakes.FakeSTSClient{Err: errors.New("no credentials")})

	_, err := b.Get(context.Background(), "gateway-auth-token")
	require.Error(t, err)
	assert.False(t, backend.IsNotFound(err))
	assert.Contains(t, err.Error(), "rate limit")

	assert.False(t, b.Available(context.Background()))
}

func TestAWSSSMContract(t *testing.T) {
	t.Parallel()

	ssm := fakes.NewFakeSSMClient()
	b, err := backends.NewAWSSSM(backends.AWSConfig{}, "openclaw",
		backends.WithSSMClient(ssm), backends.WithSTSClient(&fakes.FakeSTSClient{}))
	require.NoError(t, err)

	testutil.RunBackendContractTests(t, testutil.BackendTestCase{
		Name:     "aws-ssm",
		Backend:  b,
		TestData: contractData,
	})

	assert.Contains(t, ssm.Parameters, "/openclaw/gateway-auth-token", "prefix is normalised to /openclaw/")
	assert.EqualValues(t, "SecureString", ssm.Types["/openclaw/gateway-auth-token"])
	assert.True(t, b.Available(context.Background()))
}

func TestGCloudContract(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	b := backends.NewGCloudWithClient("demo", client)

	testutil.RunBackendContractTests(t, testutil.BackendTestCase{
		Name:     "gcloud",
		Backend:  b,
		TestData: contractData,
	})

	assert.True(t, client.Secrets["projects/demo/secrets/openclaw-gateway-auth-token"])
	assert.True(t, b.Available(context.Background()))
}

func TestGCloudAddsVersions(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	b := backends.NewGCloudWithClient("demo", client)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "whisper-api-key", "a"))
	require.NoError(t, b.Set(ctx, "whisper-api-key", "b"))

	assert.Len(t, client.Versions["projects/demo/secrets/openclaw-whisper-api-key"], 2)
	got, err := b.Get(ctx, "whisper-api-key")
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestGCloudPermissionDenied(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	client.Errors["projects/demo/secrets/openclaw-whisper-api-key"] = fakes.PermissionDenied("caller lacks secretmanager.versions.access")
	client.ProbeErr = fakes.PermissionDenied("denied")
	b := backends.NewGCloudWithClient("demo", client)

	_, err := b.Get(context.Background(), "whisper-api-key")
	require.Error(t, err)
	assert.False(t, backend.IsNotFound(err))
	assert.False(t, b.Available(context.Background()))
}

func TestAzureKeyVaultContract(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeAzureKeyVaultClient()
	b := backends.NewAzureKeyVaultWithClient(client, &fakes.FakeTokenCredential{})

	testutil.RunBackendContractTests(t, testutil.BackendTestCase{
		Name:     "azure",
		Backend:  b,
		TestData: contractData,
	})

	assert.Equal(t, "tok-123", client.Secrets["openclaw-gateway-auth-token"])
}

func TestAzureKeyVaultAvailability(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeAzureKeyVaultClient()
	assert.True(t, backends.NewAzureKeyVaultWithClient(client, &fakes.FakeTokenCredential{}).Available(context.Background()))
	assert.False(t, backends.NewAzureKeyVaultWithClient(client, &fakes.FakeTokenCredential{Err: errors.New("no identity")}).Available(context.Background()))
}

func TestAkeylessContract(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeAkeylessClient()
	b := backends.NewAkeylessWithClient("", client)

	testutil.RunBackendContractTests(t, testutil.BackendTestCase{
		Name:     "akeyless",
		Backend:  b,
		TestData: contractData,
	})

	assert.Equal(t, "tok-123", client.Items["/openclaw/gateway-auth-token"])
	assert.Equal(t, 1, client.AuthCalls, "the token is cached")
}

func TestAkeylessCreatesThenUpdates(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeAkeylessClient()
	b := backends.NewAkeylessWithClient("team/openclaw/", client)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "discord-bot-token", "a"))
	require.NoError(t, b.Set(ctx, "discord-bot-token", "b"))

	assert.Equal(t, []string{"/team/openclaw/discord-bot-token"}, client.Created)
	assert.Equal(t, "b", client.Items["/team/openclaw/discord-bot-token"])
}

func TestAkeylessErrors(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeAkeylessClient()
	client.Errors["/openclaw/whisper-api-key"] = errors.New("rate limit exceeded")
	b := backends.NewAkeylessWithClient("", client)

	_, err := b.Get(context.Background(), "whisper-api-key")
	require.Error(t, err)
	assert.False(t, backend.IsNotFound(err))

	_, err = b.Get(context.Background(), "telegram-bot-token")
	assert.True(t, backend.IsNotFound(err))

	denied := fakes.NewFakeAkeylessClient()
	denied.AuthErr = errors.New("access denied")
	assert.False(t, backends.NewAkeylessWithClient("", denied).Available(context.Background()))
	assert.True(t, b.Available(context.Background()))
}

package backends

import (
	"context"
	"fmt"
	"os"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/openclaw-secure/internal/config"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

// GCPSecretManagerAPI is the subset of Secret Manager in use. Probe does a
// cheap authenticated call against the project.
type GCPSecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error)
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error)
	Probe(ctx context.Context, parent string) error
}

type gcpClient struct {
	c *secretmanager.Client
}

func (g gcpClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return g.c.AccessSecretVersion(ctx, req)
}

func (g gcpClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	return g.c.AddSecretVersion(ctx, req)
}

func (g gcpClient) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	return g.c.CreateSecret(ctx, req)
}

func (g gcpClient) Probe(ctx context.Context, parent string) error {
	it := g.c.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{Parent: parent, PageSize: 1})
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return err
	}
	return nil
}

// GCloudConfig configures the GCP Secret Manager backend.
type GCloudConfig struct {
	ProjectID             string
	ServiceAccountKeyPath string
	ImpersonateAccount    string
}

// GCloud stores each secret as "openclaw-<key>" in one project; Get reads
// the latest version and Set adds a new one.
type GCloud struct {
	cfg GCloudConfig

	once   sync.Once
	client GCPSecretManagerAPI
	err    error
}

// NewGCloud returns a GCP backend. The client is created on first use so a
// machine without credentials can still list backends.
func NewGCloud(cfg GCloudConfig) *GCloud {
	return &GCloud{cfg: cfg}
}

// NewGCloudWithClient returns a GCP backend using client (for testing).
func NewGCloudWithClient(projectID string, client GCPSecretManagerAPI) *GCloud {
	g := &GCloud{cfg: GCloudConfig{ProjectID: projectID}, client: client}
	g.once.Do(func() {})
	return g
}

func newGCloudFactory(options map[string]any, _ Deps) (backend.Backend, error) {
	cfg := GCloudConfig{
		ProjectID:             stringOption(options, "project_id", "", "GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT"),
		ServiceAccountKeyPath: stringOption(options, "service_account_key_path", "", "GOOGLE_APPLICATION_CREDENTIALS"),
		ImpersonateAccount:    stringOption(options, "impersonate_service_account", ""),
	}
	if cfg.ProjectID == "" {
		return nil, apperrors.ConfigError{
			Field:      "backends.gcloud.project_id",
			Message:    "project_id is required for GCP Secret Manager",
			Suggestion: "Set backends.gcloud.project_id in ~/.openclaw-secure.json or GOOGLE_CLOUD_PROJECT",
		}
	}
	return NewGCloud(cfg), nil
}

func (g *GCloud) api(ctx context.Context) (GCPSecretManagerAPI, error) {
	g.once.Do(func() {
		var opts []option.ClientOption
		if g.cfg.ServiceAccountKeyPath != "" {
			path := config.ExpandPath(g.cfg.ServiceAccountKeyPath)
			if _, err := os.Stat(path); err != nil {
				g.err = fmt.Errorf("service account key: %w", err)
				return
			}
			opts = append(opts, option.WithCredentialsFile(path))
		}
		if g.cfg.ImpersonateAccount != "" {
			ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
				TargetPrincipal: g.cfg.ImpersonateAccount,
				Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
			}, opts...)
			if err != nil {
				g.err = fmt.Errorf("failed to create impersonated credentials: %w", err)
				return
			}
			opts = append(opts, option.WithTokenSource(ts))
		}
		c, err := secretmanager.NewClient(context.Background(), opts...)
		if err != nil {
			g.err = fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
			return
		}
		g.client = gcpClient{c: c}
	})
	return g.client, g.err
}

func (g *GCloud) parent() string {
	return "projects/" + g.cfg.ProjectID
}

func (g *GCloud) secretName(key string) string {
	return g.parent() + "/secrets/" + itemName(key)
}

// Name implements backend.Backend.
func (g *GCloud) Name() string { return "gcloud" }

// Available implements backend.Backend.
func (g *GCloud) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, backend.ProbeTimeout)
	defer cancel()
	client, err := g.api(ctx)
	if err != nil {
		return false
	}
	return client.Probe(ctx, g.parent()) == nil
}

// Get implements backend.Backend.
func (g *GCloud) Get(ctx context.Context, key string) (string, error) {
	client, err := g.api(ctx)
	if err != nil {
		return "", apperrors.ProviderError(g.Name(), "get", err)
	}
	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: g.secretName(key) + "/versions/latest",
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", backend.NotFound(g.Name(), key)
		}
		return "", apperrors.ProviderError(g.Name(), "get", err)
	}
	return string(resp.GetPayload().GetData()), nil
}

// Set implements backend.Backend. The secret resource is created with
// automatic replication when it does not exist.
func (g *GCloud) Set(ctx context.Context, key, value string) error {
	client, err := g.api(ctx)
	if err != nil {
		return apperrors.ProviderError(g.Name(), "set", err)
	}

	add := func() error {
		_, err := client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
			Parent:  g.secretName(key),
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		})
		return err
	}

	err = add()
	if status.Code(err) == codes.NotFound {
		_, err = client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   g.parent(),
			SecretId: itemName(key),
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
				Labels: map[string]string{"managed-by": "openclaw-secure"},
			},
		})
		if err == nil || status.Code(err) == codes.AlreadyExists {
			err = add()
		}
	}
	if err != nil {
		return apperrors.ProviderError(g.Name(), "set", err)
	}
	return nil
}

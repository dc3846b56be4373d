package backends

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

// AWSConfig is shared by the Secrets Manager and SSM backends.
type AWSConfig struct {
	Region          string
	Profile         string
	Endpoint        string // LocalStack or other compatible endpoint
	AccessKeyID     string
	SecretAccessKey string
}

func awsConfigFromOptions(options map[string]any) AWSConfig {
	return AWSConfig{
		Region:          stringOption(options, "region", "us-east-1", "AWS_REGION", "AWS_DEFAULT_REGION"),
		Profile:         stringOption(options, "profile", ""),
		Endpoint:        stringOption(options, "endpoint", ""),
		AccessKeyID:     stringOption(options, "access_key_id", ""),
		SecretAccessKey: stringOption(options, "secret_access_key", ""),
	}
}

func loadAWSConfig(ctx context.Context, cfg AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// STSClientAPI is used to check that credentials resolve.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func newSTSClient(awsCfg aws.Config, endpoint string) STSClientAPI {
	return sts.NewFromConfig(awsCfg, func(o *sts.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func callerIdentityOK(ctx context.Context, client STSClientAPI) bool {
	if client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, backend.ProbeTimeout)
	defer cancel()
	_, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	return err == nil
}

// SecretsManagerClientAPI is the subset of the Secrets Manager client in use.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// AWSSecretsManager stores each secret as a plain string secret named
// "<prefix><key>", default prefix "openclaw/".
type AWSSecretsManager struct {
	client SecretsManagerClientAPI
	sts    STSClientAPI
	prefix string
}

// AWSOption configures an AWS backend.
type AWSOption func(*awsClients)

type awsClients struct {
	sm  SecretsManagerClientAPI
	ssm SSMClientAPI
	sts STSClientAPI
}

// WithSecretsManagerClient injects a Secrets Manager client (for testing).
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(c *awsClients) { c.sm = client }
}

// WithSSMClient injects an SSM client (for testing).
func WithSSMClient(client SSMClientAPI) AWSOption {
	return func(c *awsClients) { c.ssm = client }
}

// WithSTSClient injects the STS client used by Available (for testing).
func WithSTSClient(client STSClientAPI) AWSOption {
	return func(c *awsClients) { c.sts = client }
}

// NewAWSSecretsManager builds the backend, loading the default AWS config
// chain unless clients are injected.
func NewAWSSecretsManager(cfg AWSConfig, prefix string, opts ...AWSOption) (*AWSSecretsManager, error) {
	var clients awsClients
	for _, opt := range opts {
		opt(&clients)
	}

	if clients.sm == nil || clients.sts == nil {
		awsCfg, err := loadAWSConfig(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		if clients.sm == nil {
			clients.sm = secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
				if cfg.Endpoint != "" {
					o.BaseEndpoint = aws.String(cfg.Endpoint)
				}
			})
		}
		if clients.sts == nil {
			clients.sts = newSTSClient(awsCfg, cfg.Endpoint)
		}
	}

	return &AWSSecretsManager{client: clients.sm, sts: clients.sts, prefix: prefix}, nil
}

func newAWSSecretsManagerFactory(options map[string]any, _ Deps) (backend.Backend, error) {
	return NewAWSSecretsManager(awsConfigFromOptions(options), stringOption(options, "prefix", "openclaw/"))
}

// Name implements backend.Backend.
func (a *AWSSecretsManager) Name() string { return "aws" }

// Available implements backend.Backend.
func (a *AWSSecretsManager) Available(ctx context.Context) bool {
	return callerIdentityOK(ctx, a.sts)
}

// Get implements backend.Backend.
func (a *AWSSecretsManager) Get(ctx context.Context, key string) (string, error) {
	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.prefix + key),
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", backend.NotFound(a.Name(), key)
		}
		return "", apperrors.ProviderError(a.Name(), "get", err)
	}
	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	return string(out.SecretBinary), nil
}

// Set implements backend.Backend. A missing secret is created.
func (a *AWSSecretsManager) Set(ctx context.Context, key, value string) error {
	name := a.prefix + key
	_, err := a.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	var notFound *smtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		_, err = a.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
			Name:         aws.String(name),
			SecretString: aws.String(value),
			Description:  aws.String("Managed by openclaw-secure"),
		})
	}
	if err != nil {
		return apperrors.ProviderError(a.Name(), "set", err)
	}
	return nil
}

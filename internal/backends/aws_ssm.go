package backends

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

// SSMClientAPI is the subset of the SSM client in use.
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// AWSSSM stores secrets as SecureString parameters under a path prefix,
// default "/openclaw/".
type AWSSSM struct {
	client SSMClientAPI
	sts    STSClientAPI
	prefix string
}

// NewAWSSSM builds the backend, loading the default AWS config chain unless
// clients are injected.
func NewAWSSSM(cfg AWSConfig, prefix string, opts ...AWSOption) (*AWSSSM, error) {
	var clients awsClients
	for _, opt := range opts {
		opt(&clients)
	}

	if clients.ssm == nil || clients.sts == nil {
		awsCfg, err := loadAWSConfig(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		if clients.ssm == nil {
			clients.ssm = ssm.NewFromConfig(awsCfg, func(o *ssm.Options) {
				if cfg.Endpoint != "" {
					o.BaseEndpoint = aws.String(cfg.Endpoint)
				}
			})
		}
		if clients.sts == nil {
			clients.sts = newSTSClient(awsCfg, cfg.Endpoint)
		}
	}

	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &AWSSSM{client: clients.ssm, sts: clients.sts, prefix: prefix}, nil
}

func newAWSSSMFactory(options map[string]any, _ Deps) (backend.Backend, error) {
	return NewAWSSSM(awsConfigFromOptions(options), stringOption(options, "prefix", "/openclaw/"))
}

// Name implements backend.Backend.
func (s *AWSSSM) Name() string { return "aws-ssm" }

// Available implements backend.Backend.
func (s *AWSSSM) Available(ctx context.Context) bool {
	return callerIdentityOK(ctx, s.sts)
}

// Get implements backend.Backend.
func (s *AWSSSM) Get(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.prefix + key),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", backend.NotFound(s.Name(), key)
		}
		return "", apperrors.ProviderError(s.Name(), "get", err)
	}
	if out.Parameter == nil {
		return "", backend.NotFound(s.Name(), key)
	}
	return aws.ToString(out.Parameter.Value), nil
}

// Set implements backend.Backend.
func (s *AWSSSM) Set(ctx context.Context, key, value string) error {
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.prefix + key),
		Value:     aws.String(value),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return apperrors.ProviderError(s.Name(), "set", err)
	}
	return nil
}

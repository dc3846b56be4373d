package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// FakeSecretsManagerClient is an in-memory backends.SecretsManagerClientAPI.
type FakeSecretsManagerClient struct {
	mu sync.Mutex
	// Secrets maps secret names to their string values
	Secrets map[string]string
	// Errors maps secret names to errors to return from every call
	Errors map[string]error
	// Created records names passed to CreateSecret
	Created []string
}

// NewFakeSecretsManagerClient creates a new mock Secrets Manager client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

func smNotFound(name string) error {
	return &smtypes.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
	}
}

// GetSecretValue mocks the GetSecretValue operation
func (f *FakeSecretsManagerClient) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	v, ok := f.Secrets[name]
	if !ok {
		return nil, smNotFound(name)
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:          params.SecretId,
		SecretString:  aws.String(v),
		VersionStages: []string{"AWSCURRENT"},
	}, nil
}

// PutSecretValue mocks PutSecretValue; unknown secrets are not found.
func (f *FakeSecretsManagerClient) PutSecretValue(_ context.Context, params *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return nil, smNotFound(name)
	}
	f.Secrets[name] = aws.ToString(params.SecretString)
	return &secretsmanager.PutSecretValueOutput{Name: params.SecretId}, nil
}

// CreateSecret mocks CreateSecret.
func (f *FakeSecretsManagerClient) CreateSecret(_ context.Context, params *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.Name)
	if _, ok := f.Secrets[name]; ok {
		return nil, &smtypes.ResourceExistsException{Message: aws.String("already exists")}
	}
	f.Secrets[name] = aws.ToString(params.SecretString)
	f.Created = append(f.Created, name)
	return &secretsmanager.CreateSecretOutput{Name: params.Name}, nil
}

// FakeSSMClient is an in-memory backends.SSMClientAPI.
type FakeSSMClient struct {
	mu         sync.Mutex
	Parameters map[string]string
	Types      map[string]ssmtypes.ParameterType
	Errors     map[string]error
}

// NewFakeSSMClient creates an empty SSM fake.
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{
		Parameters: make(map[string]string),
		Types:      make(map[string]ssmtypes.ParameterType),
		Errors:     make(map[string]error),
	}
}

// GetParameter mocks GetParameter.
func (f *FakeSSMClient) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	v, ok := f.Parameters[name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("parameter not found")}
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Name: params.Name, Value: aws.String(v), Type: f.Types[name]},
	}, nil
}

// PutParameter mocks PutParameter.
func (f *FakeSSMClient) PutParameter(_ context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, exists := f.Parameters[name]; exists && !aws.ToBool(params.Overwrite) {
		return nil, &ssmtypes.ParameterAlreadyExists{Message: aws.String("exists")}
	}
	f.Parameters[name] = aws.ToString(params.Value)
	f.Types[name] = params.Type
	return &ssm.PutParameterOutput{Version: 1}, nil
}

// FakeSTSClient answers GetCallerIdentity with Err or a fixed identity.
type FakeSTSClient struct {
	Err error
}

// GetCallerIdentity mocks GetCallerIdentity.
func (f *FakeSTSClient) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/test"),
		UserId:  aws.String("AIDATEST"),
	}, nil
}

package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FakeGCPSecretManagerClient is an in-memory backends.GCPSecretManagerAPI.
type FakeGCPSecretManagerClient struct {
	mu sync.Mutex
	// Secrets holds the created secret resources (projects/X/secrets/Y)
	Secrets map[string]bool
	// Versions maps secret resource names to their version payloads, oldest first
	Versions map[string][][]byte
	// Errors maps resource names to errors to return
	Errors map[string]error
	// ProbeErr is returned by Probe
	ProbeErr error
}

// NewFakeGCPSecretManagerClient creates a new mock GCP Secret Manager client
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Secrets:  make(map[string]bool),
		Versions: make(map[string][][]byte),
		Errors:   make(map[string]error),
	}
}

// AddSecretVersion appends a version; the secret must exist.
func (f *FakeGCPSecretManagerClient) AddSecretVersion(_ context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.Errors[req.Parent]; ok {
		return nil, err
	}
	if !f.Secrets[req.Parent] {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found", req.Parent)
	}
	f.Versions[req.Parent] = append(f.Versions[req.Parent], req.GetPayload().GetData())
	return &secretmanagerpb.SecretVersion{
		Name:  fmt.Sprintf("%s/versions/%d", req.Parent, len(f.Versions[req.Parent])),
		State: secretmanagerpb.SecretVersion_ENABLED,
	}, nil
}

// AccessSecretVersion returns the newest payload for ".../versions/latest".
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	secret := req.Name[:strings.Index(req.Name, "/versions/")]
	if err, ok := f.Errors[secret]; ok {
		return nil, err
	}
	versions := f.Versions[secret]
	if len(versions) == 0 {
		return nil, status.Errorf(codes.NotFound, "Secret [%s] not found or has no versions", secret)
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.Name,
		Payload: &secretmanagerpb.SecretPayload{Data: versions[len(versions)-1]},
	}, nil
}

// CreateSecret registers the secret resource.
func (f *FakeGCPSecretManagerClient) CreateSecret(_ context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := req.Parent + "/secrets/" + req.SecretId
	if f.Secrets[name] {
		return nil, status.Errorf(codes.AlreadyExists, "Secret [%s] already exists", name)
	}
	f.Secrets[name] = true
	return &secretmanagerpb.Secret{Name: name, Replication: req.GetSecret().GetReplication()}, nil
}

// Probe returns ProbeErr.
func (f *FakeGCPSecretManagerClient) Probe(context.Context, string) error {
	return f.ProbeErr
}

// PermissionDenied returns a gRPC PermissionDenied error.
func PermissionDenied(msg string) error {
	return status.Error(codes.PermissionDenied, msg)
}

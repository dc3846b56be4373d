package backends

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	akeyless "github.com/akeylesslabs/akeyless-go/v3"

	"github.com/systmms/openclaw-secure/internal/catalog"
	apperrors "github.com/systmms/openclaw-secure/internal/errors"
	"github.com/systmms/openclaw-secure/pkg/backend"
)

const (
	defaultAkeylessGateway = "https://api.akeyless.io"
	// Tokens last 30 minutes; refresh a little early.
	akeylessTokenTTL = 25 * time.Minute
)

var errAkeylessNotFound = errors.New("akeyless item not found")

// AkeylessAPI is the subset of the Akeyless V2 API in use. Implementations
// return errAkeylessNotFound, or an error mentioning "not found", for a
// missing item.
type AkeylessAPI interface {
	Auth(ctx context.Context) (string, error)
	GetSecretValue(ctx context.Context, token, name string) (string, error)
	CreateSecret(ctx context.Context, token, name, value string) error
	UpdateSecretValue(ctx context.Context, token, name, value string) error
}

// AkeylessConfig configures the Akeyless backend.
type AkeylessConfig struct {
	GatewayURL string
	AccessID   string
	// AccessType is "access_key" (default), "aws_iam", "azure_ad" or "gcp".
	AccessType string
	AccessKey  string
	Prefix     string // item folder, default "/openclaw"
}

type akeylessSDK struct {
	api *akeyless.APIClient
	cfg AkeylessConfig
}

func newAkeylessSDK(cfg AkeylessConfig) *akeylessSDK {
	conf := akeyless.NewConfiguration()
	conf.Servers = []akeyless.ServerConfiguration{{URL: cfg.GatewayURL}}
	return &akeylessSDK{api: akeyless.NewAPIClient(conf), cfg: cfg}
}

func akeylessErr(resp *http.Response, err error) error {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return errAkeylessNotFound
	}
	return err
}

func (s *akeylessSDK) Auth(ctx context.Context) (string, error) {
	body := akeyless.NewAuthWithDefaults()
	body.SetAccessId(s.cfg.AccessID)
	switch s.cfg.AccessType {
	case "", "access_key":
		body.SetAccessKey(s.cfg.AccessKey)
	default:
		body.SetAccessType(s.cfg.AccessType)
	}
	out, _, err := s.api.V2Api.Auth(ctx).Body(*body).Execute()
	if err != nil {
		return "", fmt.Errorf("authentication failed: %w", err)
	}
	return out.GetToken(), nil
}

func (s *akeylessSDK) GetSecretValue(ctx context.Context, token, name string) (string, error) {
	body := akeyless.NewGetSecretValue([]string{name})
	body.SetToken(token)
	out, resp, err := s.api.V2Api.GetSecretValue(ctx).Body(*body).Execute()
	if err != nil {
		return "", akeylessErr(resp, err)
	}
	v, ok := out[name]
	if !ok {
		return "", errAkeylessNotFound
	}
	return fmt.Sprint(v), nil
}

func (s *akeylessSDK) CreateSecret(ctx context.Context, token, name, value string) error {
	body := akeyless.NewCreateSecret(name, value)
	body.SetToken(token)
	_, resp, err := s.api.V2Api.CreateSecret(ctx).Body(*body).Execute()
	return akeylessErr(resp, err)
}

func (s *akeylessSDK) UpdateSecretValue(ctx context.Context, token, name, value string) error {
	body := akeyless.NewUpdateSecretVal(name, value)
	body.SetToken(token)
	_, resp, err := s.api.V2Api.UpdateSecretVal(ctx).Body(*body).Execute()
	return akeylessErr(resp, err)
}

// Akeyless stores each secret as a static secret "<prefix>/<key>".
type Akeyless struct {
	client AkeylessAPI
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewAkeyless returns an Akeyless backend talking to cfg.GatewayURL.
func NewAkeyless(cfg AkeylessConfig) *Akeyless {
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = defaultAkeylessGateway
	}
	return NewAkeylessWithClient(cfg.Prefix, newAkeylessSDK(cfg))
}

// NewAkeylessWithClient returns an Akeyless backend using client (for
// testing).
func NewAkeylessWithClient(prefix string, client AkeylessAPI) *Akeyless {
	if prefix == "" {
		prefix = "/" + catalog.ServicePrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return &Akeyless{client: client, prefix: strings.TrimSuffix(prefix, "/"), now: time.Now}
}

func newAkeylessFactory(options map[string]any, _ Deps) (backend.Backend, error) {
	cfg := AkeylessConfig{
		GatewayURL: stringOption(options, "gateway_url", defaultAkeylessGateway, "AKEYLESS_GATEWAY_URL"),
		AccessID:   stringOption(options, "access_id", "", "AKEYLESS_ACCESS_ID"),
		AccessType: stringOption(options, "access_type", "access_key", "AKEYLESS_ACCESS_TYPE"),
		AccessKey:  stringOption(options, "access_key", "", "AKEYLESS_ACCESS_KEY"),
		Prefix:     stringOption(options, "prefix", "/openclaw"),
	}
	if cfg.AccessID == "" {
		return nil, apperrors.ConfigError{
			Field:      "backends.akeyless.access_id",
			Message:    "access_id is required for Akeyless",
			Suggestion: "Set backends.akeyless.access_id or AKEYLESS_ACCESS_ID",
		}
	}
	return NewAkeyless(cfg), nil
}

// Name implements backend.Backend.
func (a *Akeyless) Name() string { return "akeyless" }

func (a *Akeyless) itemPath(key string) string {
	return a.prefix + "/" + key
}

func (a *Akeyless) authToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && a.now().Before(a.expires) {
		return a.token, nil
	}
	token, err := a.client.Auth(ctx)
	if err != nil {
		return "", err
	}
	a.token = token
	a.expires = a.now().Add(akeylessTokenTTL)
	return token, nil
}

func isAkeylessNotFound(err error) bool {
	if errors.Is(err, errAkeylessNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "itemnotfound")
}

// Available implements backend.Backend: the configured credentials can
// obtain a token.
func (a *Akeyless) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, backend.ProbeTimeout)
	defer cancel()
	_, err := a.authToken(ctx)
	return err == nil
}

// Get implements backend.Backend.
func (a *Akeyless) Get(ctx context.Context, key string) (string, error) {
	token, err := a.authToken(ctx)
	if err != nil {
		return "", apperrors.ProviderError(a.Name(), "get", err)
	}
	value, err := a.client.GetSecretValue(ctx, token, a.itemPath(key))
	if err != nil {
		if isAkeylessNotFound(err) {
			return "", backend.NotFound(a.Name(), key)
		}
		return "", apperrors.ProviderError(a.Name(), "get", err)
	}
	return value, nil
}

// Set implements backend.Backend. It updates the item, creating it when it
// does not exist yet.
func (a *Akeyless) Set(ctx context.Context, key, value string) error {
	token, err := a.authToken(ctx)
	if err != nil {
		return apperrors.ProviderError(a.Name(), "set", err)
	}
	name := a.itemPath(key)
	err = a.client.UpdateSecretValue(ctx, token, name, value)
	if err != nil && isAkeylessNotFound(err) {
		err = a.client.CreateSecret(ctx, token, name, value)
	}
	if err != nil {
		return apperrors.ProviderError(a.Name(), "set", err)
	}
	return nil
}

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/umsafe/umsafe/internal/config"
	"github.com/umsafe/umsafe/pkg/contracts"
)

// identityCacheTTL bounds how long a validated token is trusted without
// re-asking the identity service.
const identityCacheTTL = 5 * time.Minute

// identityUser is the identity service's user payload.
type identityUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type cachedIdentity struct {
	identity contracts.Identity
	expires  time.Time
}

// IdentityProvider validates Authorization bearer tokens against the
// external identity service. Validated tokens are cached briefly so a
// chatty client does not turn every streamed request into an upstream
// round trip.
type IdentityProvider struct {
	client  *resty.Client
	apiKey  string
	enabled bool

	mu    sync.Mutex
	cache map[string]cachedIdentity
}

// NewIdentityProvider builds a provider from config. Without an identity
// URL the provider reports disabled and the chain skips it.
func NewIdentityProvider(cfg config.AuthConfig) *IdentityProvider {
	p := &IdentityProvider{
		apiKey: cfg.IdentityAPIKey,
		cache:  make(map[string]cachedIdentity),
	}
	if cfg.IdentityURL == "" {
		return p
	}

	timeout := cfg.IdentityTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p.client = resty.New().
		SetBaseURL(strings.TrimRight(cfg.IdentityURL, "/")).
		SetTimeout(timeout)
	p.enabled = true
	return p
}

func (p *IdentityProvider) Name() string  { return "identity_service" }
func (p *IdentityProvider) Enabled() bool { return p.enabled }

// Authenticate exchanges the bearer token for a user identity.
// Returns (nil, nil) when no bearer token is present.
func (p *IdentityProvider) Authenticate(ctx context.Context, r *http.Request) (*contracts.Identity, error) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return nil, nil
	}
	token := strings.TrimPrefix(authz, "Bearer ")
	if token == "" {
		return nil, fmt.Errorf("empty bearer token")
	}

	cacheKey := fmt.Sprintf("%x", sha256.Sum256([]byte(token)))
	if identity, ok := p.cached(cacheKey); ok {
		return identity, nil
	}

	req := p.client.R().
		SetContext(ctx).
		SetAuthToken(token)
	if p.apiKey != "" {
		req.SetHeader("apikey", p.apiKey)
	}

	resp, err := req.Get("/auth/v1/user")
	if err != nil {
		return nil, fmt.Errorf("identity service unreachable: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("identity service rejected token: status %d", resp.StatusCode())
	}

	// Decode the body directly rather than via SetResult, which only
	// unmarshals when the upstream declares a JSON content type.
	var user identityUser
	if err := json.Unmarshal(resp.Body(), &user); err != nil {
		return nil, fmt.Errorf("identity service response malformed: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("identity service returned no user")
	}

	identity := contracts.Identity{
		Subject:   user.ID,
		Email:     user.Email,
		Provider:  "identity_service",
		ExpiresAt: time.Now().Add(identityCacheTTL),
	}
	p.store(cacheKey, identity)
	return &identity, nil
}

func (p *IdentityProvider) cached(key string) (*contracts.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.cache[key]
	if !ok || time.Now().After(entry.expires) {
		delete(p.cache, key)
		return nil, false
	}
	cp := entry.identity
	return &cp, true
}

func (p *IdentityProvider) store(key string, identity contracts.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[key] = cachedIdentity{identity: identity, expires: time.Now().Add(identityCacheTTL)}
}

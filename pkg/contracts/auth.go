// Package contracts holds the pluggable authentication boundary for the
// UM-SAFE service. The chat handlers depend only on these interfaces; the
// concrete providers (identity-service bearer tokens, static API keys)
// live in internal/auth and can be swapped without touching handler code.
package contracts

import (
	"context"
	"net/http"
	"time"
)

// ── Identity ────────────────────────────────────────────────

// Identity represents an authenticated user. Produced by an AuthProvider,
// consumed by the chat handlers for language resolution and persistence.
// No handler ever knows whether the user came from the identity service
// or a local API key.
type Identity struct {
	// Subject is the unique user identifier from the identity provider.
	Subject string `json:"subject"`

	// Email is the user's email address (may be empty).
	Email string `json:"email,omitempty"`

	// Provider identifies which auth provider authenticated this identity.
	// Values: "identity_service", "apikey".
	Provider string `json:"provider"`

	// ExpiresAt is when this identity's session expires (zero if unknown).
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// ── AuthProvider ────────────────────────────────────────────

// AuthProvider authenticates an HTTP request and returns an Identity.
//
// The chain pattern:
//   - Return (*Identity, nil) → authenticated, stop chain
//   - Return (nil, nil) → this provider doesn't handle this request, try next
//   - Return (nil, error) → authentication was attempted but failed, reject
type AuthProvider interface {
	// Name returns the provider identifier (e.g. "identity_service").
	Name() string

	// Authenticate inspects the request and returns an Identity.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)

	// Enabled returns whether this provider is configured and active.
	Enabled() bool
}

// AuthProviderChain tries providers in priority order until one returns
// an Identity. Used by the auth middleware so bearer-token users and
// API-key callers can hit the same endpoints.
type AuthProviderChain interface {
	// Authenticate walks the chain of providers in order.
	// Returns the first successful Identity, or (nil, nil) if no provider matched.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)

	// RegisterProvider adds a provider to the end of the chain.
	RegisterProvider(provider AuthProvider)
}

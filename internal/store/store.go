// Package store provides the storage interface and implementations for the
// UM-SAFE chat service. The chat handler depends only on this interface;
// the in-memory implementation backs tests and zero-config development,
// PostgreSQL backs production.
package store

import (
	"context"
	"time"

	"github.com/umsafe/umsafe/pkg/models"
)

// Store is the primary storage interface for the chat service.
type Store interface {
	ProfileStore
	ChatMessageStore
	EmbassyStore
	RecruiterStore
	RightsStore
	IncidentStore

	// Ping checks if the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Profile Store ───────────────────────────────────────────

type ProfileStore interface {
	// GetProfile returns the user's profile, or ErrNotFound.
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)

	// UpsertProfile creates or replaces the user's profile.
	UpsertProfile(ctx context.Context, profile *models.Profile) error
}

// ── Chat Message Store ──────────────────────────────────────

type ChatMessageStore interface {
	// ListMessages returns the user's messages ordered by creation time
	// ascending, up to limit (0 means a server default).
	ListMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error)

	// CreateMessage appends one chat message.
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error

	// ListMessagesBefore returns messages across all users created before
	// cutoff, oldest first, up to limit (0 means no limit). Used by the
	// retention janitor.
	ListMessagesBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ChatMessage, error)

	// DeleteMessagesBefore removes all messages created before cutoff and
	// returns how many were deleted.
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ── Knowledge Stores ────────────────────────────────────────

type EmbassyStore interface {
	ListEmbassies(ctx context.Context) ([]models.EmbassyContact, error)
}

type RecruiterStore interface {
	// ListRecruiters returns recruiters filtered by status; empty status
	// returns all.
	ListRecruiters(ctx context.Context, status models.RecruiterStatus) ([]models.Recruiter, error)
}

type RightsStore interface {
	// ListRightsResources returns resources ordered by descending
	// priority, up to limit.
	ListRightsResources(ctx context.Context, limit int) ([]models.RightsResource, error)
}

// ── Incident Store ──────────────────────────────────────────

type IncidentStore interface {
	CreateIncident(ctx context.Context, incident *models.IncidentReport) error
	ListIncidents(ctx context.Context, userID string, limit int) ([]models.IncidentReport, error)
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

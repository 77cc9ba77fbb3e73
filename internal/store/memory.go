package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/umsafe/umsafe/pkg/models"
)

// MemoryStore is the in-memory Store implementation. It backs tests and
// zero-configuration development. All methods are safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]models.Profile
	messages  map[string][]models.ChatMessage
	embassies []models.EmbassyContact
	recruits  []models.Recruiter
	rights    []models.RightsResource
	incidents map[string][]models.IncidentReport
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:  make(map[string]models.Profile),
		messages:  make(map[string][]models.ChatMessage),
		incidents: make(map[string][]models.IncidentReport),
	}
}

// NewSeededMemoryStore creates an in-memory store preloaded with a small
// knowledge base so the service answers usefully with zero configuration.
func NewSeededMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	s.embassies = seedEmbassies()
	s.recruits = seedRecruiters()
	s.rights = seedRights()
	return s
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                   { return nil }

// ── Profiles ────────────────────────────────────────────────

func (s *MemoryStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, &ErrNotFound{Entity: "profile", Key: userID}
	}
	cp := p
	return &cp, nil
}

func (s *MemoryStore) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[profile.UserID] = *profile
	return nil
}

// ── Chat messages ───────────────────────────────────────────

func (s *MemoryStore) ListMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[userID]
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.UserID] = append(s.messages[msg.UserID], *msg)
	return nil
}

func (s *MemoryStore) ListMessagesBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ChatMessage
	for _, msgs := range s.messages {
		for _, m := range msgs {
			if m.CreatedAt.Before(cutoff) {
				out = append(out, m)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for userID, msgs := range s.messages {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.CreatedAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) == 0 {
			delete(s.messages, userID)
			continue
		}
		s.messages[userID] = kept
	}
	return deleted, nil
}

// ── Knowledge base ──────────────────────────────────────────

func (s *MemoryStore) ListEmbassies(ctx context.Context) ([]models.EmbassyContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.EmbassyContact, len(s.embassies))
	copy(out, s.embassies)
	return out, nil
}

func (s *MemoryStore) ListRecruiters(ctx context.Context, status models.RecruiterStatus) ([]models.Recruiter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Recruiter
	for _, r := range s.recruits {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRightsResources(ctx context.Context, limit int) ([]models.RightsResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RightsResource, len(s.rights))
	copy(out, s.rights)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetKnowledge replaces the knowledge tables. Intended for tests and seeding.
func (s *MemoryStore) SetKnowledge(embassies []models.EmbassyContact, recruiters []models.Recruiter, rights []models.RightsResource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embassies = embassies
	s.recruits = recruiters
	s.rights = rights
}

// ── Incidents ───────────────────────────────────────────────

func (s *MemoryStore) CreateIncident(ctx context.Context, incident *models.IncidentReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if incident.ID == "" {
		incident.ID = uuid.New().String()
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now().UTC()
	}
	s.incidents[incident.UserID] = append(s.incidents[incident.UserID], *incident)
	return nil
}

func (s *MemoryStore) ListIncidents(ctx context.Context, userID string, limit int) ([]models.IncidentReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc := s.incidents[userID]
	out := make([]models.IncidentReport, len(inc))
	copy(out, inc)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── Seed data ───────────────────────────────────────────────

func seedEmbassies() []models.EmbassyContact {
	return []models.EmbassyContact{
		{
			ID:               uuid.New().String(),
			Country:          "Saudi Arabia",
			EmbassyName:      "Uganda Embassy Riyadh",
			PhonePrimary:     "+966-11-454-4910",
			EmergencyHotline: "+966-50-123-4567",
			Email:            "riyadh@mofa.go.ug",
			WorkingHours:     "Sun-Thu 9:00-17:00",
		},
		{
			ID:               uuid.New().String(),
			Country:          "United Arab Emirates",
			EmbassyName:      "Uganda Embassy Abu Dhabi",
			PhonePrimary:     "+971-2-234-5678",
			EmergencyHotline: "+971-50-987-6543",
			Email:            "abudhabi@mofa.go.ug",
			WorkingHours:     "Mon-Fri 8:30-16:30",
		},
		{
			ID:           uuid.New().String(),
			Country:      "Qatar",
			EmbassyName:  "Uganda Embassy Doha",
			PhonePrimary: "+974-4411-3456",
			Email:        "doha@mofa.go.ug",
		},
	}
}

func seedRecruiters() []models.Recruiter {
	return []models.Recruiter{
		{
			ID:                   uuid.New().String(),
			CompanyName:          "Gulf Bridge Recruitment Ltd",
			LicenseNumber:        "MGLSD/2024/0117",
			Status:               models.RecruiterActive,
			ExpiryDate:           "2026-03-31",
			CountriesOfOperation: []string{"Saudi Arabia", "Qatar"},
		},
		{
			ID:                   uuid.New().String(),
			CompanyName:          "Pearl Overseas Agency",
			LicenseNumber:        "MGLSD/2023/0342",
			Status:               models.RecruiterActive,
			ExpiryDate:           "2025-12-31",
			CountriesOfOperation: []string{"United Arab Emirates"},
			ComplaintsCount:      2,
		},
		{
			ID:            uuid.New().String(),
			CompanyName:   "Desert Star Manpower",
			LicenseNumber: "MGLSD/2021/0089",
			Status:        models.RecruiterExpired,
			ExpiryDate:    "2023-06-30",
		},
	}
}

func seedRights() []models.RightsResource {
	return []models.RightsResource{
		{
			ID:       uuid.New().String(),
			Category: "documents",
			Title:    "Your passport belongs to you",
			Content:  "No employer or recruiter may keep your passport. Confiscation is illegal; contact your embassy immediately if it happens.",
			Priority: 10,
		},
		{
			ID:       uuid.New().String(),
			Category: "wages",
			Title:    "Right to timely payment",
			Content:  "You must be paid the contracted wage on time. Keep copies of your contract and payment records; report non-payment beyond one month.",
			Priority: 8,
		},
		{
			ID:       uuid.New().String(),
			Category: "contracts",
			Title:    "Read before you sign",
			Content:  "Never sign a contract you do not understand. Request a translated copy and verify the recruiter's license before paying any fee.",
			Priority: 6,
		},
	}
}

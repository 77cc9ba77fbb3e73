package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/umsafe/umsafe/pkg/models"
)

func TestProfileRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetProfile(ctx, "u1"); err == nil {
		t.Fatal("missing profile must return ErrNotFound")
	} else {
		var nf *ErrNotFound
		if !errors.As(err, &nf) {
			t.Fatalf("error type = %T", err)
		}
	}

	if err := s.UpsertProfile(ctx, &models.Profile{UserID: "u1", PreferredLanguage: "lug"}); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	p, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.PreferredLanguage != "lug" {
		t.Errorf("language = %q", p.PreferredLanguage)
	}
	if p.UpdatedAt.IsZero() {
		t.Error("UpdatedAt must be set on upsert")
	}

	// Upsert replaces.
	if err := s.UpsertProfile(ctx, &models.Profile{UserID: "u1", PreferredLanguage: "ach"}); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	p, _ = s.GetProfile(ctx, "u1")
	if p.PreferredLanguage != "ach" {
		t.Errorf("language after upsert = %q", p.PreferredLanguage)
	}
}

func TestMessagesOrderedAndLimited(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, content := range []string{"first", "second", "third"} {
		err := s.CreateMessage(ctx, &models.ChatMessage{
			UserID:    "u1",
			Role:      models.RoleUser,
			Content:   content,
			Language:  "en",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	msgs, err := s.ListMessages(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Content != "first" || msgs[2].Content != "third" {
		t.Fatalf("order wrong: %+v", msgs)
	}
	if msgs[0].ID == "" {
		t.Error("store must assign message IDs")
	}

	// Limit keeps the most recent messages, still ascending.
	msgs, _ = s.ListMessages(ctx, "u1", 2)
	if len(msgs) != 2 || msgs[0].Content != "second" || msgs[1].Content != "third" {
		t.Errorf("limited list = %+v", msgs)
	}

	// Other users see nothing.
	other, _ := s.ListMessages(ctx, "u2", 0)
	if len(other) != 0 {
		t.Error("messages leaked across users")
	}
}

func TestRecruiterStatusFilter(t *testing.T) {
	s := NewSeededMemoryStore()
	ctx := context.Background()

	active, err := s.ListRecruiters(ctx, models.RecruiterActive)
	if err != nil {
		t.Fatalf("ListRecruiters: %v", err)
	}
	for _, r := range active {
		if r.Status != models.RecruiterActive {
			t.Errorf("non-active recruiter %q in filtered list", r.CompanyName)
		}
	}

	all, _ := s.ListRecruiters(ctx, "")
	if len(all) <= len(active) {
		t.Error("seed data should include at least one non-active recruiter")
	}
}

func TestRightsOrderedByPriority(t *testing.T) {
	s := NewSeededMemoryStore()
	rights, err := s.ListRightsResources(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRightsResources: %v", err)
	}
	if len(rights) != 2 {
		t.Fatalf("limit not applied: got %d", len(rights))
	}
	if rights[0].Priority < rights[1].Priority {
		t.Errorf("not ordered by descending priority: %d then %d", rights[0].Priority, rights[1].Priority)
	}
}

func TestIncidentsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, typ := range []models.IncidentType{models.IncidentWageTheft, models.IncidentAbuse} {
		err := s.CreateIncident(ctx, &models.IncidentReport{
			UserID:       "u1",
			IncidentType: typ,
			Severity:     models.SeverityMedium,
			Status:       "reported",
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("CreateIncident: %v", err)
		}
	}

	incidents, err := s.ListIncidents(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListIncidents: %v", err)
	}
	if len(incidents) != 2 || incidents[0].IncidentType != models.IncidentAbuse {
		t.Fatalf("expected newest first, got %+v", incidents)
	}
}

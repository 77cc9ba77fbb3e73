package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/umsafe/umsafe/internal/store"
	"github.com/umsafe/umsafe/pkg/models"
)

type fakeArchiver struct {
	batches [][]models.ChatMessage
	err     error
}

func (a *fakeArchiver) Kind() string { return "fake" }
func (a *fakeArchiver) ArchiveMessages(ctx context.Context, msgs []models.ChatMessage) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.batches = append(a.batches, msgs)
	return "fake://batch", nil
}

func seedMessages(t *testing.T, s *store.MemoryStore, ages ...time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	for i, age := range ages {
		err := s.CreateMessage(context.Background(), &models.ChatMessage{
			UserID:    "u1",
			Role:      models.RoleUser,
			Content:   "msg",
			Language:  "en",
			CreatedAt: now.Add(-age),
		})
		if err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
	}
}

func TestRunCyclePurgesOnlyExpired(t *testing.T) {
	ms := store.NewMemoryStore()
	seedMessages(t, ms, 100*24*time.Hour, 95*24*time.Hour, time.Hour)

	j := NewJanitor(ms, time.Hour, 90)
	stats := j.RunCycle(context.Background())

	if stats.Purged != 2 {
		t.Errorf("purged = %d, want 2", stats.Purged)
	}
	if len(stats.Errors) != 0 {
		t.Errorf("errors = %v", stats.Errors)
	}
	remaining, _ := ms.ListMessages(context.Background(), "u1", 0)
	if len(remaining) != 1 {
		t.Errorf("remaining = %d, want the recent message only", len(remaining))
	}
}

func TestRunCycleArchivesBeforePurge(t *testing.T) {
	ms := store.NewMemoryStore()
	seedMessages(t, ms, 100*24*time.Hour, 95*24*time.Hour)

	arch := &fakeArchiver{}
	j := NewJanitor(ms, time.Hour, 90)
	j.SetArchiver(arch)

	stats := j.RunCycle(context.Background())
	if stats.Archived != 2 || stats.Purged != 2 {
		t.Errorf("archived = %d purged = %d, want 2/2", stats.Archived, stats.Purged)
	}
	if len(arch.batches) != 1 || len(arch.batches[0]) != 2 {
		t.Errorf("archive batches = %+v", arch.batches)
	}
	// Oldest first inside the batch.
	if !arch.batches[0][0].CreatedAt.Before(arch.batches[0][1].CreatedAt) {
		t.Error("archive batch not ordered oldest first")
	}
}

func TestArchiveFailureSkipsPurge(t *testing.T) {
	ms := store.NewMemoryStore()
	seedMessages(t, ms, 100*24*time.Hour)

	j := NewJanitor(ms, time.Hour, 90)
	j.SetArchiver(&fakeArchiver{err: errors.New("disk full")})

	stats := j.RunCycle(context.Background())
	if stats.Purged != 0 {
		t.Errorf("purged = %d after archive failure, want 0", stats.Purged)
	}
	if len(stats.Errors) == 0 {
		t.Error("archive failure must surface in stats")
	}
	remaining, _ := ms.ListMessages(context.Background(), "u1", 0)
	if len(remaining) != 1 {
		t.Error("message purged despite archive failure")
	}
}

func TestJanitorDefaults(t *testing.T) {
	j := NewJanitor(store.NewMemoryStore(), time.Second, 0)
	if j.interval != time.Hour {
		t.Errorf("sub-minute interval not raised: %v", j.interval)
	}
	if j.window != DefaultMessageRetentionDays*24*time.Hour {
		t.Errorf("window = %v", j.window)
	}
}

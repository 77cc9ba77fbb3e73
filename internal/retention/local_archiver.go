package retention

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/umsafe/umsafe/pkg/models"
)

// Archiver writes expired messages to durable cold storage before they
// are purged from the hot store.
type Archiver interface {
	Kind() string
	ArchiveMessages(ctx context.Context, msgs []models.ChatMessage) (uri string, err error)
}

// LocalFileArchiver writes expired messages as JSONL files under a local
// directory:
//
//	{basePath}/messages/2026-08-29T15-04-05Z.jsonl[.gz]
type LocalFileArchiver struct {
	basePath string
	compress bool
}

// NewLocalFileArchiver creates a file-based archiver. An empty basePath
// defaults to ~/.umsafe/archive.
func NewLocalFileArchiver(basePath string, compress bool) *LocalFileArchiver {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			basePath = "/tmp/umsafe/archive"
		} else {
			basePath = filepath.Join(home, ".umsafe", "archive")
		}
	}
	return &LocalFileArchiver{basePath: basePath, compress: compress}
}

func (a *LocalFileArchiver) Kind() string { return "local" }

func (a *LocalFileArchiver) ArchiveMessages(_ context.Context, msgs []models.ChatMessage) (string, error) {
	dir := filepath.Join(a.basePath, "messages")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	filename := time.Now().UTC().Format("2006-01-02T15-04-05.000Z") + ".jsonl"
	if a.compress {
		filename += ".gz"
	}
	fpath := filepath.Join(dir, filename)

	f, err := os.Create(fpath)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if a.compress {
		gw := gzip.NewWriter(f)
		defer gw.Close()
		enc = json.NewEncoder(gw)
	}

	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			return "", fmt.Errorf("encode message %s: %w", m.ID, err)
		}
	}
	return fpath, nil
}

// HealthCheck verifies the archive path is writable.
func (a *LocalFileArchiver) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(a.basePath, 0o700); err != nil {
		return fmt.Errorf("archive path not writable: %w", err)
	}
	testFile := filepath.Join(a.basePath, ".healthcheck")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("archive path not writable: %w", err)
	}
	os.Remove(testFile)
	return nil
}

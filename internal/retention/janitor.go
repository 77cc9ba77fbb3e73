// Package retention purges old chat transcripts on a schedule.
//
// Conversations in this service are sensitive: they describe abuse,
// wage theft and escape plans. Transcripts are kept only as long as the
// configured window and are optionally archived to cold storage before
// deletion. Archiving is fail-safe: if the archive write fails, nothing
// is purged that cycle.
//
// Incident reports are exempt. They are case records and outlive the
// conversations that produced them.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/umsafe/umsafe/internal/store"
)

// DefaultMessageRetentionDays is used when the configured window is zero
// or negative.
const DefaultMessageRetentionDays = 90

// archiveBatchSize is the max messages per archive file.
const archiveBatchSize = 5000

// CycleStats tracks what happened in one retention sweep.
type CycleStats struct {
	Archived int
	Purged   int
	Errors   []error
}

// Janitor periodically purges chat messages older than the retention
// window, archiving them first when an Archiver is set.
type Janitor struct {
	store    store.Store
	interval time.Duration
	window   time.Duration
	archiver Archiver
}

// NewJanitor creates a retention janitor. Intervals under a minute are
// raised to an hour so a misconfigured deployment cannot hammer the
// store.
func NewJanitor(s store.Store, interval time.Duration, retentionDays int) *Janitor {
	if interval < time.Minute {
		interval = time.Hour
	}
	if retentionDays <= 0 {
		retentionDays = DefaultMessageRetentionDays
	}
	return &Janitor{
		store:    s,
		interval: interval,
		window:   time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// SetArchiver enables archive-before-purge with the given backend.
func (j *Janitor) SetArchiver(a Archiver) { j.archiver = a }

// Start runs the janitor until ctx is canceled. The first sweep runs
// immediately.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().
		Dur("interval", j.interval).
		Dur("window", j.window).
		Bool("archiving", j.archiver != nil).
		Msg("retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("retention janitor stopped")
			return
		case <-ticker.C:
			j.RunCycle(ctx)
		}
	}
}

// RunCycle performs one sweep and returns what it did.
func (j *Janitor) RunCycle(ctx context.Context) CycleStats {
	var stats CycleStats
	start := time.Now()
	cutoff := start.Add(-j.window)

	if j.archiver != nil {
		if !j.archive(ctx, cutoff, &stats) {
			log.Warn().Msg("retention: archive failed, skipping purge")
			return stats
		}
	}

	purged, err := j.store.DeleteMessagesBefore(ctx, cutoff)
	if err != nil {
		stats.Errors = append(stats.Errors, err)
		log.Warn().Err(err).Msg("retention: purge failed")
		return stats
	}
	stats.Purged = purged

	if stats.Purged > 0 || stats.Archived > 0 {
		log.Info().
			Int("purged", stats.Purged).
			Int("archived", stats.Archived).
			Dur("elapsed", time.Since(start)).
			Msg("retention cycle complete")
	}
	return stats
}

// archive writes all expired messages to the archive backend in batches.
// Returns false if any batch failed, in which case the purge is skipped.
func (j *Janitor) archive(ctx context.Context, cutoff time.Time, stats *CycleStats) bool {
	for {
		batch, err := j.store.ListMessagesBefore(ctx, cutoff, archiveBatchSize)
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			return false
		}
		if len(batch) == 0 {
			return true
		}

		uri, err := j.archiver.ArchiveMessages(ctx, batch)
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			return false
		}
		stats.Archived += len(batch)
		log.Debug().Str("uri", uri).Int("count", len(batch)).Msg("retention: batch archived")

		if len(batch) < archiveBatchSize {
			return true
		}
		// A full batch means more may remain, but the next ones are only
		// reachable after these rows are gone. Purge this slice now.
		cutoffNext := batch[len(batch)-1].CreatedAt.Add(time.Nanosecond)
		purged, err := j.store.DeleteMessagesBefore(ctx, cutoffNext)
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			return false
		}
		stats.Purged += purged
	}
}

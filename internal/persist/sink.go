// Package persist implements the fire-and-forget write path of the chat
// handler. Conversation transcripts and incident reports are queued and
// written by a background worker so a slow or failing store never delays
// a streaming response.
package persist

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/umsafe/umsafe/internal/store"
	"github.com/umsafe/umsafe/pkg/models"
)

// writeTimeout bounds each store write performed by the worker.
const writeTimeout = 5 * time.Second

// defaultQueueSize is the job buffer used when the caller passes 0.
const defaultQueueSize = 256

type job func(ctx context.Context) error

// Sink queues store writes and applies them on a background worker.
// All Save methods are non-blocking: when the queue is full the job runs
// on its own goroutine rather than stalling the caller or being dropped.
type Sink struct {
	store store.Store
	jobs  chan job

	mu     sync.Mutex
	closed bool
	done   chan struct{}

	overflow sync.WaitGroup
}

// NewSink starts a sink with one worker goroutine.
func NewSink(s store.Store, queueSize int) *Sink {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	sink := &Sink{
		store: s,
		jobs:  make(chan job, queueSize),
		done:  make(chan struct{}),
	}
	go sink.run()
	return sink
}

func (s *Sink) run() {
	defer close(s.done)
	for j := range s.jobs {
		s.apply(j)
	}
}

func (s *Sink) apply(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j(ctx); err != nil {
		log.Warn().Err(err).Msg("persist: background write failed")
	}
}

func (s *Sink) enqueue(j job) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		log.Warn().Msg("persist: write submitted after close, running inline")
		s.apply(j)
		return
	}

	select {
	case s.jobs <- j:
		s.mu.Unlock()
	default:
		// Queue is full. Spill onto a goroutine so the chat path
		// never blocks and the write is not lost.
		s.overflow.Add(1)
		s.mu.Unlock()
		go func() {
			defer s.overflow.Done()
			s.apply(j)
		}()
	}
}

// SaveMessages persists a group of chat messages in order as one job, so
// a user/assistant pair keeps its relative ordering.
func (s *Sink) SaveMessages(msgs ...models.ChatMessage) {
	if len(msgs) == 0 {
		return
	}
	s.enqueue(func(ctx context.Context) error {
		for i := range msgs {
			if err := s.store.CreateMessage(ctx, &msgs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveIncident persists one incident report.
func (s *Sink) SaveIncident(incident models.IncidentReport) {
	s.enqueue(func(ctx context.Context) error {
		if err := s.store.CreateIncident(ctx, &incident); err != nil {
			return err
		}
		log.Info().
			Str("incident_type", string(incident.IncidentType)).
			Str("severity", string(incident.Severity)).
			Msg("incident logged")
		return nil
	})
}

// Close stops accepting work and waits for queued and overflow jobs to
// finish, or for ctx to expire.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		<-s.done
		s.overflow.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

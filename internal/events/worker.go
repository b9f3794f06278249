// Package events drains the mutation-event queue and turns upstream data
// changes into cache invalidations, keeping forge TTLs honest between
// refreshes.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgefit/brain/internal/cache"
	"github.com/forgefit/brain/internal/knowledge"
	"github.com/forgefit/brain/internal/storage"
)

// EventStore abstracts the mutation-event queue operations.
// Implemented by storage.Store.
type EventStore interface {
	ClaimNextMutationEvent() (*storage.MutationEvent, error)
	CompleteMutationEvent(id string) error
	FailMutationEvent(id string, errMsg string) error
}

// Invalidator is the slice of the cache manager the worker uses. Eviction
// is scoped to the event's user: another user's cached knowledge says
// nothing about this one's meal log.
type Invalidator interface {
	InvalidateUserForge(userID string, forge knowledge.Forge) int
	InvalidateSnapshot(userID string)
}

// Worker polls for mutation events and applies the invalidation rules.
type Worker struct {
	store  EventStore
	cache  Invalidator
	poll   time.Duration
	logger *slog.Logger
}

// NewWorker creates a Worker. pollInterval <= 0 defaults to 500ms.
func NewWorker(store EventStore, cache Invalidator, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		cache:  cache,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls for events until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce()
		if err != nil {
			w.logger.Error("event worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single mutation event. Returns true when
// an event completed and the next claim should happen immediately; a
// failed event reports false so its retry waits out one poll interval.
func (w *Worker) RunOnce() (bool, error) {
	event, err := w.store.ClaimNextMutationEvent()
	if err != nil {
		return false, fmt.Errorf("claiming event: %w", err)
	}
	if event == nil {
		return false, nil
	}

	if err := w.processEvent(event); err != nil {
		w.logger.Warn("event failed", "event_id", event.ID, "name", event.Name, "error", err)
		if failErr := w.store.FailMutationEvent(event.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark event as failed", "event_id", event.ID, "error", failErr)
		}
		return false, nil
	}

	if err := w.store.CompleteMutationEvent(event.ID); err != nil {
		w.logger.Error("failed to mark event as completed", "event_id", event.ID, "error", err)
	}
	return true, nil
}

func (w *Worker) processEvent(event *storage.MutationEvent) error {
	forges := cache.ForgesTriggeredBy(event.Name)
	if len(forges) == 0 {
		// Unknown events are completed, not retried; the rule table is the
		// single source of truth for what we care about.
		w.logger.Debug("no rule for event", "name", event.Name)
		return nil
	}
	if event.UserID == "" {
		return fmt.Errorf("event %s carries no user id", event.Name)
	}

	evicted := 0
	for _, f := range forges {
		evicted += w.cache.InvalidateUserForge(event.UserID, f)
	}
	// The snapshot embeds every forge, so it is stale the moment any
	// mapped forge changes underneath it.
	w.cache.InvalidateSnapshot(event.UserID)
	w.logger.Debug("applied invalidation event",
		"name", event.Name, "user_id", event.UserID, "forges", len(forges), "evicted", evicted)
	return nil
}

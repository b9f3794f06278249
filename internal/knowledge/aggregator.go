package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/forgefit/brain/internal/storage"
)

// ErrNotLoaded is returned by GetUserKnowledge when no snapshot has been
// loaded for the user yet. Calling it before LoadUserKnowledge is a
// programmer error and fails fast instead of returning an empty snapshot.
var ErrNotLoaded = errors.New("knowledge not loaded: call LoadUserKnowledge first")

const defaultCollectorTimeout = 3 * time.Second

// ProfileStore defines the identity reads the aggregator needs. Unlike
// forge data, a missing profile cannot be defaulted.
type ProfileStore interface {
	GetProfile(userID string) (storage.Profile, error)
	ActiveGoals(userID string, limit int) ([]storage.Goal, error)
}

// SnapshotCache is the slice of the cache manager the aggregator uses.
// Snapshots live under a flat TTL; per-forge entries carry each forge's
// own TTL, so a rebuild after snapshot expiry only re-runs the collectors
// whose data actually went stale.
type SnapshotCache interface {
	GetSnapshot(userID string) (*UserKnowledge, bool)
	SetSnapshot(userID string, snap *UserKnowledge)
	GetForgeData(userID string, forge Forge) (ForgeData, time.Time, bool)
	SetForgeData(userID string, forge Forge, data ForgeData, collectedAt time.Time)
	InvalidateUserForge(userID string, forge Forge) int
}

// Aggregator orchestrates the collector fan-out, owns the cache read/write
// path, and retains the latest snapshot per user. There is deliberately no
// process-wide snapshot: callers hold an Aggregator instance.
type Aggregator struct {
	profiles   ProfileStore
	collectors []Collector
	cache      SnapshotCache
	clock      Clock
	timeout    time.Duration
	logger     *slog.Logger

	flight singleflight.Group

	mu      sync.RWMutex
	current map[string]*UserKnowledge
}

// NewAggregator wires an Aggregator with the default per-collector timeout.
func NewAggregator(profiles ProfileStore, collectors []Collector, cache SnapshotCache) *Aggregator {
	return NewAggregatorWithClock(profiles, collectors, cache, realClock{}, defaultCollectorTimeout)
}

// NewAggregatorWithClock creates an Aggregator with a custom clock and
// per-collector timeout (for testing).
func NewAggregatorWithClock(profiles ProfileStore, collectors []Collector, cache SnapshotCache, clock Clock, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = defaultCollectorTimeout
	}
	return &Aggregator{
		profiles:   profiles,
		collectors: collectors,
		cache:      cache,
		clock:      clock,
		timeout:    timeout,
		logger:     slog.Default(),
		current:    make(map[string]*UserKnowledge),
	}
}

// LoadUserKnowledge returns the full snapshot for a user: cache fast path,
// then a concurrent settle-all fan-out across every collector. Concurrent
// cold loads for the same user are collapsed into one fan-out; every
// caller receives the same snapshot.
//
// A failing or timed-out collector never fails the call; its forge gets
// the documented default value and a warning log. The one hard failure is
// a missing profile, since building knowledge for an unknown user is
// meaningless.
func (a *Aggregator) LoadUserKnowledge(ctx context.Context, userID string) (*UserKnowledge, error) {
	if snap, ok := a.cache.GetSnapshot(userID); ok {
		a.retain(snap)
		return snap, nil
	}

	v, err, _ := a.flight.Do(userID, func() (any, error) {
		// Re-check: a concurrent load may have filled the cache while
		// this caller waited on the flight group.
		if snap, ok := a.cache.GetSnapshot(userID); ok {
			return snap, nil
		}
		// The flight result is shared with callers that did not cancel,
		// and the snapshot it produces is cached. Detach from the leader's
		// context so an aborted request cannot seed the cache with an
		// all-default snapshot; the per-collector timeout still bounds
		// the fan-out.
		return a.build(context.WithoutCancel(ctx), userID)
	})
	if err != nil {
		return nil, err
	}
	snap := v.(*UserKnowledge)
	a.retain(snap)
	return snap, nil
}

// GetUserKnowledge returns the most recently loaded snapshot for a user,
// without touching collectors or cache.
func (a *Aggregator) GetUserKnowledge(userID string) (*UserKnowledge, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.current[userID]
	if !ok {
		return nil, fmt.Errorf("%w (user %s)", ErrNotLoaded, userID)
	}
	return snap, nil
}

// RefreshForge re-collects exactly one forge, leaving every sibling
// forge's data, timestamp, and completeness untouched, then evicts the
// forge-tagged cache entries. With no snapshot retained it degrades to a
// full load.
func (a *Aggregator) RefreshForge(ctx context.Context, userID string, forge Forge) error {
	if !Valid(forge) {
		return fmt.Errorf("unknown forge %q", forge)
	}

	a.mu.RLock()
	cur := a.current[userID]
	a.mu.RUnlock()
	if cur == nil {
		_, err := a.LoadUserKnowledge(ctx, userID)
		return err
	}

	collector := a.collectorFor(forge)
	if collector == nil {
		return fmt.Errorf("no collector registered for forge %q", forge)
	}

	now := a.clock.Now()
	data, err := a.collect(ctx, collector, userID)
	failed := err != nil || data == nil
	if failed {
		a.logger.Warn("forge refresh failed, substituting default",
			"forge", forge, "user_id", userID, "error", err)
		data = defaultFor(forge)
	}

	next := cur.Clone()
	if err := next.setForge(forge, data); err != nil {
		return err
	}
	next.Completeness[forge] = Score(data)
	next.LastUpdated[forge] = now

	a.mu.Lock()
	a.current[userID] = next
	a.mu.Unlock()

	a.cache.InvalidateUserForge(userID, forge)
	if !failed {
		a.cache.SetForgeData(userID, forge, data, now)
	}
	a.cache.SetSnapshot(userID, next)
	return nil
}

// GetRawProfile is a passthrough for downstream adapters. Returns nil
// (without error) when the user has no profile record.
func (a *Aggregator) GetRawProfile(userID string) (*storage.Profile, error) {
	p, err := a.profiles.GetProfile(userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading raw profile: %w", err)
	}
	return &p, nil
}

// build runs the full fan-out and merge for one user.
func (a *Aggregator) build(ctx context.Context, userID string) (*UserKnowledge, error) {
	profile, err := a.loadProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile for %s: %w", userID, err)
	}

	type forgeResult struct {
		forge  Forge
		data   ForgeData
		at     time.Time
		cached bool
		err    error
	}
	results := make([]forgeResult, len(a.collectors))

	// Settle-all join: collector errors land in the result slot, never in
	// the group, so one failure cannot cancel its siblings. A forge whose
	// cached slice is still inside its own TTL skips its collector.
	var g errgroup.Group
	for i, c := range a.collectors {
		g.Go(func() error {
			forge := c.Forge()
			if data, at, ok := a.cache.GetForgeData(userID, forge); ok {
				results[i] = forgeResult{forge: forge, data: data, at: at, cached: true}
				return nil
			}
			data, err := a.collect(ctx, c, userID)
			results[i] = forgeResult{forge: forge, data: data, at: a.clock.Now(), err: err}
			return nil
		})
	}
	g.Wait()

	snap := &UserKnowledge{
		UserID:       userID,
		Profile:      profile,
		LastUpdated:  make(map[Forge]time.Time, len(results)),
		Completeness: make(map[Forge]int, len(results)),
	}
	for _, r := range results {
		data := r.data
		if r.err != nil || data == nil {
			a.logger.Warn("collector failed, substituting default",
				"forge", r.forge, "user_id", userID, "error", r.err)
			// Defaults are never cached, so the next load retries.
			data = defaultFor(r.forge)
		} else if !r.cached {
			a.cache.SetForgeData(userID, r.forge, data, r.at)
		}
		if err := snap.setForge(r.forge, data); err != nil {
			return nil, err
		}
		snap.Completeness[r.forge] = Score(data)
		snap.LastUpdated[r.forge] = r.at
	}

	a.cache.SetSnapshot(userID, snap)
	return snap, nil
}

// collect runs one collector under the per-collector deadline. A timeout
// is indistinguishable from any other collector failure.
func (a *Aggregator) collect(ctx context.Context, c Collector, userID string) (ForgeData, error) {
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return c.Collect(cctx, userID)
}

func (a *Aggregator) loadProfile(userID string) (ProfileKnowledge, error) {
	p, err := a.profiles.GetProfile(userID)
	if err != nil {
		return ProfileKnowledge{}, err
	}
	pk := ProfileKnowledge{
		UserID:          p.UserID,
		Name:            p.Name,
		Age:             p.Age,
		Sex:             p.Sex,
		HeightCM:        p.HeightCM,
		WeightKG:        p.WeightKG,
		Objective:       p.Objective,
		ActivityLevel:   p.ActivityLevel,
		PerinatalStatus: p.PerinatalStatus,
	}
	goals, err := a.profiles.ActiveGoals(userID, 10)
	if err != nil {
		// Goals enrich the profile but are not identity; degrade quietly.
		a.logger.Warn("loading goals failed", "user_id", userID, "error", err)
		return pk, nil
	}
	for _, g := range goals {
		pk.Goals = append(pk.Goals, g.Name)
	}
	return pk, nil
}

func (a *Aggregator) collectorFor(forge Forge) Collector {
	for _, c := range a.collectors {
		if c.Forge() == forge {
			return c
		}
	}
	return nil
}

func (a *Aggregator) retain(snap *UserKnowledge) {
	a.mu.Lock()
	a.current[snap.UserID] = snap
	a.mu.Unlock()
}

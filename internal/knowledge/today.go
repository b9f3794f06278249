package knowledge

import (
	"context"
	"time"

	"github.com/forgefit/brain/internal/storage"
)

// TodayStore defines the reads the since-midnight collector needs.
type TodayStore interface {
	TrainingSessionsSince(userID string, since time.Time, limit int) ([]storage.TrainingSession, error)
	MealsSince(userID string, since time.Time, limit int) ([]storage.Meal, error)
	FastingSessionsSince(userID string, since time.Time, limit int) ([]storage.FastingSession, error)
}

// TodayCollector assembles the since-local-midnight activity slice. It is
// the most volatile forge and carries the shortest TTL.
type TodayCollector struct {
	store TodayStore
	clock Clock
}

func NewTodayCollector(store TodayStore, clock Clock) *TodayCollector {
	return &TodayCollector{store: store, clock: clock}
}

func (c *TodayCollector) Forge() Forge { return ForgeToday }

func (c *TodayCollector) Collect(ctx context.Context, userID string) (ForgeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := c.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var k TodayKnowledge

	sessions, err := c.store.TrainingSessionsSince(userID, midnight, todayLimit)
	if err != nil {
		return nil, err
	}
	k.SessionsToday = len(sessions)

	meals, err := c.store.MealsSince(userID, midnight, todayLimit)
	if err != nil {
		return nil, err
	}
	k.MealsLogged = len(meals)
	for _, m := range meals {
		k.KcalSoFar += m.Kcal
		k.ProteinSoFar += m.ProteinG
	}

	// An open fast may have started before midnight; look back a full window.
	fasts, err := c.store.FastingSessionsSince(userID, now.Add(-fastingWindow), fastingLimit)
	if err != nil {
		return nil, err
	}
	for _, f := range fasts {
		if f.EndedAt.IsZero() {
			k.FastingActive = true
			k.FastingElapsedHours = now.Sub(f.StartedAt).Hours()
			break
		}
	}
	return k, nil
}

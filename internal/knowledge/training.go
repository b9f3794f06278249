package knowledge

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/forgefit/brain/internal/storage"
)

// TrainingStore defines the reads the training-side collectors need.
// Implemented by storage.Store.
type TrainingStore interface {
	TrainingSessionsSince(userID string, since time.Time, limit int) ([]storage.TrainingSession, error)
}

// TrainingCollector summarizes the last 60 days of sessions.
type TrainingCollector struct {
	store TrainingStore
	clock Clock
}

func NewTrainingCollector(store TrainingStore, clock Clock) *TrainingCollector {
	return &TrainingCollector{store: store, clock: clock}
}

func (c *TrainingCollector) Forge() Forge { return ForgeTraining }

func (c *TrainingCollector) Collect(ctx context.Context, userID string) (ForgeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	since := c.clock.Now().Add(-trainingWindow)
	sessions, err := c.store.TrainingSessionsSince(userID, since, trainingLimit)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return TrainingKnowledge{}, nil
	}

	var k TrainingKnowledge
	k.SessionCount = len(sessions)
	k.SessionsPerWeek = float64(len(sessions)) / (trainingWindow.Hours() / 24 / 7)
	k.LastSessionAt = sessions[0].StartedAt

	var rpeSum float64
	var rpeCount int
	var durSum float64
	moveFreq := make(map[string]int)
	for _, s := range sessions {
		if s.RPE > 0 {
			rpeSum += s.RPE
			rpeCount++
		}
		durSum += float64(s.DurationMin)
		for _, m := range parseMovements(s.Movements) {
			moveFreq[m]++
		}
	}
	if rpeCount > 0 {
		k.AvgRPE = rpeSum / float64(rpeCount)
	}
	k.AvgDurationMin = durSum / float64(len(sessions))
	k.FrequentMovements = topKeys(moveFreq, 5)
	return k, nil
}

// parseMovements decodes the JSON array column; a malformed row yields nil
// rather than an error, since one bad row should not sink the summary.
func parseMovements(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var moves []string
	if err := json.Unmarshal([]byte(raw), &moves); err != nil {
		return nil
	}
	return moves
}

// topKeys returns up to n keys sorted by descending count, ties broken by
// name for determinism.
func topKeys(freq map[string]int, n int) []string {
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

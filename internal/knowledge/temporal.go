package knowledge

import (
	"context"
	"strconv"
)

// TemporalCollector derives when the user habitually trains from 90 days
// of session timestamps. It shares TrainingStore with the training
// collector but reads a wider window.
type TemporalCollector struct {
	store TrainingStore
	clock Clock
}

func NewTemporalCollector(store TrainingStore, clock Clock) *TemporalCollector {
	return &TemporalCollector{store: store, clock: clock}
}

func (c *TemporalCollector) Forge() Forge { return ForgeTemporal }

func (c *TemporalCollector) Collect(ctx context.Context, userID string) (ForgeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := c.clock.Now()
	sessions, err := c.store.TrainingSessionsSince(userID, now.Add(-temporalWindow), temporalLimit)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return TemporalKnowledge{}, nil
	}

	hourFreq := make(map[string]int)
	dayFreq := make(map[string]int)
	weeks := make(map[int]bool)
	for _, s := range sessions {
		hourFreq[strconv.Itoa(s.StartedAt.Hour())]++
		dayFreq[s.StartedAt.Weekday().String()]++
		_, wk := s.StartedAt.ISOWeek()
		weeks[wk] = true
	}

	var k TemporalKnowledge
	k.SampleSize = len(sessions)
	for _, h := range topKeys(hourFreq, 3) {
		hour, _ := strconv.Atoi(h)
		k.PreferredHours = append(k.PreferredHours, hour)
	}
	k.PreferredDays = topKeys(dayFreq, 3)

	totalWeeks := int(temporalWindow.Hours() / 24 / 7)
	if totalWeeks > 0 {
		k.ConsistencyScore = float64(len(weeks)) / float64(totalWeeks)
		if k.ConsistencyScore > 1 {
			k.ConsistencyScore = 1
		}
	}
	return k, nil
}

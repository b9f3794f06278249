package knowledge

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/forgefit/brain/internal/storage"
)

// FastingStore defines the reads the fasting collector needs.
type FastingStore interface {
	FastingSessionsSince(userID string, since time.Time, limit int) ([]storage.FastingSession, error)
}

// FastingCollector summarizes the last 30 days of fasting windows.
type FastingCollector struct {
	store FastingStore
	clock Clock
}

func NewFastingCollector(store FastingStore, clock Clock) *FastingCollector {
	return &FastingCollector{store: store, clock: clock}
}

func (c *FastingCollector) Forge() Forge { return ForgeFasting }

func (c *FastingCollector) Collect(ctx context.Context, userID string) (ForgeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	since := c.clock.Now().Add(-fastingWindow)
	sessions, err := c.store.FastingSessionsSince(userID, since, fastingLimit)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return FastingKnowledge{}, nil
	}

	var k FastingKnowledge
	k.SessionCount = len(sessions)
	k.LastFastAt = sessions[0].StartedAt

	var hoursSum float64
	var closed, completed int
	var targetSum float64
	for _, s := range sessions {
		if !s.EndedAt.IsZero() {
			hoursSum += s.EndedAt.Sub(s.StartedAt).Hours()
			closed++
		}
		if s.Completed {
			completed++
		}
		targetSum += s.TargetHours
	}
	if closed > 0 {
		k.AvgWindowHours = hoursSum / float64(closed)
	}
	k.CompletionRate = float64(completed) / float64(len(sessions))
	k.Protocol = protocolName(targetSum / float64(len(sessions)))
	return k, nil
}

// protocolName maps an average target window to the common protocol label.
func protocolName(targetHours float64) string {
	if targetHours <= 0 {
		return ""
	}
	rounded := int(math.Round(targetHours))
	switch rounded {
	case 16:
		return "16:8"
	case 18:
		return "18:6"
	case 20:
		return "20:4"
	case 14:
		return "14:10"
	default:
		return fmt.Sprintf("%dh window", rounded)
	}
}

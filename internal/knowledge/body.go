package knowledge

import (
	"context"
	"time"

	"github.com/forgefit/brain/internal/storage"
)

// BodyStore defines the reads the body-composition collector needs.
type BodyStore interface {
	BodyScansSince(userID string, since time.Time, limit int) ([]storage.BodyScan, error)
}

// BodyCollector summarizes body scans over the last 90 days.
type BodyCollector struct {
	store BodyStore
	clock Clock
}

func NewBodyCollector(store BodyStore, clock Clock) *BodyCollector {
	return &BodyCollector{store: store, clock: clock}
}

func (c *BodyCollector) Forge() Forge { return ForgeBody }

func (c *BodyCollector) Collect(ctx context.Context, userID string) (ForgeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	since := c.clock.Now().Add(-bodyWindow)
	scans, err := c.store.BodyScansSince(userID, since, bodyLimit)
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return BodyKnowledge{}, nil
	}

	// Scans come back newest first.
	latest := scans[0]
	oldest := scans[len(scans)-1]

	return BodyKnowledge{
		ScanCount:        len(scans),
		LatestWeightKG:   latest.WeightKG,
		LatestBodyFatPct: latest.BodyFatPct,
		LatestMuscleKG:   latest.MuscleKG,
		WeightDeltaKG:    latest.WeightKG - oldest.WeightKG,
		LastScanAt:       latest.TakenAt,
	}, nil
}

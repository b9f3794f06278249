package knowledge

import (
	"context"
	"time"

	"github.com/forgefit/brain/internal/storage"
)

// EnergyStore defines the reads the energy collector needs.
type EnergyStore interface {
	EnergyRecordsSince(userID string, since time.Time, limit int) ([]storage.EnergyRecord, error)
}

// EnergyCollector averages sleep and biometric self-reports over 30 days.
type EnergyCollector struct {
	store EnergyStore
	clock Clock
}

func NewEnergyCollector(store EnergyStore, clock Clock) *EnergyCollector {
	return &EnergyCollector{store: store, clock: clock}
}

func (c *EnergyCollector) Forge() Forge { return ForgeEnergy }

func (c *EnergyCollector) Collect(ctx context.Context, userID string) (ForgeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	since := c.clock.Now().Add(-energyWindow)
	records, err := c.store.EnergyRecordsSince(userID, since, energyLimit)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return EnergyKnowledge{}, nil
	}

	var sleep, level, hr float64
	var sleepN, levelN, hrN int
	for _, r := range records {
		if r.SleepHours > 0 {
			sleep += r.SleepHours
			sleepN++
		}
		if r.EnergyLevel > 0 {
			level += r.EnergyLevel
			levelN++
		}
		if r.RestingHR > 0 {
			hr += r.RestingHR
			hrN++
		}
	}

	k := EnergyKnowledge{RecordCount: len(records)}
	if sleepN > 0 {
		k.AvgSleepHours = sleep / float64(sleepN)
	}
	if levelN > 0 {
		k.AvgEnergyLevel = level / float64(levelN)
	}
	if hrN > 0 {
		k.AvgRestingHR = hr / float64(hrN)
	}
	return k, nil
}

package knowledge

import (
	"context"
	"time"
)

// Collector fetches and normalizes one forge's data for one user. A
// collector may fail; the Aggregator is the only layer that catches the
// failure and substitutes the forge's default value.
type Collector interface {
	Forge() Forge
	Collect(ctx context.Context, userID string) (ForgeData, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock used in production wiring.
func RealClock() Clock { return realClock{} }

// Lookback windows and row caps. Bounded per forge so a single collect
// never produces an unbounded result set.
const (
	trainingWindow = 60 * 24 * time.Hour
	trainingLimit  = 100

	nutritionWindow = 30 * 24 * time.Hour
	nutritionLimit  = 200

	fastingWindow = 30 * 24 * time.Hour
	fastingLimit  = 60

	bodyWindow = 90 * 24 * time.Hour
	bodyLimit  = 30

	equipmentLimit = 50

	energyWindow = 30 * 24 * time.Hour
	energyLimit  = 90

	temporalWindow = 90 * 24 * time.Hour
	temporalLimit  = 200

	todayLimit = 50
)

package knowledge

import (
	"context"

	"github.com/forgefit/brain/internal/storage"
)

// PerinatalStore defines the reads the perinatal collector needs.
type PerinatalStore interface {
	GetProfile(userID string) (storage.Profile, error)
}

// PerinatalCollector gates on the profile's perinatal status. For users
// with no declared status it returns the empty slice without error, so the
// forge simply scores 0 and never renders.
type PerinatalCollector struct {
	store PerinatalStore
}

func NewPerinatalCollector(store PerinatalStore) *PerinatalCollector {
	return &PerinatalCollector{store: store}
}

func (c *PerinatalCollector) Forge() Forge { return ForgePerinatal }

func (c *PerinatalCollector) Collect(ctx context.Context, userID string) (ForgeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := c.store.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	switch p.PerinatalStatus {
	case "pregnant":
		return PerinatalKnowledge{
			Status:       "pregnant",
			Stage:        "pregnancy",
			KeyNutrients: []string{"folate", "iron", "calcium", "choline", "omega-3"},
			KcalAdjust:   300,
			Cautions: []string{
				"avoid supine core work after the first trimester",
				"keep RPE at or below 7",
				"no alcohol, limit caffeine to 200mg/day",
			},
		}, nil
	case "postpartum":
		return PerinatalKnowledge{
			Status:       "postpartum",
			Stage:        "recovery",
			KeyNutrients: []string{"protein", "iron", "vitamin D", "omega-3"},
			KcalAdjust:   400,
			Cautions: []string{
				"rebuild pelvic floor and core before heavy loading",
				"progress impact work gradually",
			},
		}, nil
	default:
		return PerinatalKnowledge{}, nil
	}
}

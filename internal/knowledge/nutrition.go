package knowledge

import (
	"context"
	"time"

	"github.com/forgefit/brain/internal/storage"
)

// NutritionStore defines the reads the nutrition collector needs.
type NutritionStore interface {
	MealsSince(userID string, since time.Time, limit int) ([]storage.Meal, error)
}

// NutritionCollector summarizes the last 30 days of logged meals.
type NutritionCollector struct {
	store NutritionStore
	clock Clock
}

func NewNutritionCollector(store NutritionStore, clock Clock) *NutritionCollector {
	return &NutritionCollector{store: store, clock: clock}
}

func (c *NutritionCollector) Forge() Forge { return ForgeNutrition }

func (c *NutritionCollector) Collect(ctx context.Context, userID string) (ForgeData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	since := c.clock.Now().Add(-nutritionWindow)
	meals, err := c.store.MealsSince(userID, since, nutritionLimit)
	if err != nil {
		return nil, err
	}
	if len(meals) == 0 {
		return NutritionKnowledge{}, nil
	}

	var k NutritionKnowledge
	k.MealCount = len(meals)

	days := make(map[string]bool)
	foodFreq := make(map[string]int)
	var kcal, protein, carbs, fat float64
	for _, m := range meals {
		days[m.EatenAt.Format("2006-01-02")] = true
		if m.Name != "" {
			foodFreq[m.Name]++
		}
		kcal += m.Kcal
		protein += m.ProteinG
		carbs += m.CarbsG
		fat += m.FatG
	}
	k.TrackedDays = len(days)
	// Daily averages over tracked days only; untracked days say nothing.
	d := float64(k.TrackedDays)
	k.AvgDailyKcal = kcal / d
	k.AvgProteinG = protein / d
	k.AvgCarbsG = carbs / d
	k.AvgFatG = fat / d
	k.CommonFoods = topKeys(foodFreq, 5)
	return k, nil
}

package cache

import (
	"time"

	"github.com/forgefit/brain/internal/knowledge"
)

// SnapshotTTL is the domain-agnostic TTL for whole-knowledge snapshots.
const SnapshotTTL = 5 * time.Minute

// InvalidationRule binds one forge to its default TTL and the upstream
// mutation events that should evict its entries. TTLs follow how fast the
// underlying data actually changes: equipment moves rarely, a live
// training day changes by the minute.
type InvalidationRule struct {
	Forge         knowledge.Forge
	TTL           time.Duration
	TriggerEvents map[string]struct{}
}

var rules = map[knowledge.Forge]InvalidationRule{
	knowledge.ForgeTraining: {
		Forge: knowledge.ForgeTraining,
		TTL:   5 * time.Minute,
		TriggerEvents: events(
			"training.session.completed",
			"training.session.deleted",
			"training.pr.recorded",
		),
	},
	knowledge.ForgeEquipment: {
		Forge:         knowledge.ForgeEquipment,
		TTL:           30 * time.Minute,
		TriggerEvents: events("equipment.updated"),
	},
	knowledge.ForgeNutrition: {
		Forge: knowledge.ForgeNutrition,
		TTL:   10 * time.Minute,
		TriggerEvents: events(
			"nutrition.meal.logged",
			"nutrition.meal.deleted",
		),
	},
	knowledge.ForgeFasting: {
		Forge: knowledge.ForgeFasting,
		TTL:   10 * time.Minute,
		TriggerEvents: events(
			"fasting.session.started",
			"fasting.session.ended",
		),
	},
	knowledge.ForgeBody: {
		Forge:         knowledge.ForgeBody,
		TTL:           60 * time.Minute,
		TriggerEvents: events("body.scan.recorded"),
	},
	knowledge.ForgeEnergy: {
		Forge:         knowledge.ForgeEnergy,
		TTL:           10 * time.Minute,
		TriggerEvents: events("energy.record.logged"),
	},
	knowledge.ForgeTemporal: {
		Forge:         knowledge.ForgeTemporal,
		TTL:           60 * time.Minute,
		TriggerEvents: events("training.session.completed"),
	},
	knowledge.ForgeToday: {
		Forge: knowledge.ForgeToday,
		TTL:   2 * time.Minute,
		TriggerEvents: events(
			"training.session.completed",
			"nutrition.meal.logged",
			"fasting.session.started",
			"fasting.session.ended",
		),
	},
	knowledge.ForgePerinatal: {
		Forge:         knowledge.ForgePerinatal,
		TTL:           60 * time.Minute,
		TriggerEvents: events("profile.updated"),
	},
}

// RuleFor returns the invalidation rule for one forge. Unknown forges get
// the snapshot TTL and no trigger events.
func RuleFor(forge knowledge.Forge) InvalidationRule {
	if r, ok := rules[forge]; ok {
		return r
	}
	return InvalidationRule{Forge: forge, TTL: SnapshotTTL}
}

// ForgesTriggeredBy returns every forge whose rule names the given
// mutation event.
func ForgesTriggeredBy(event string) []knowledge.Forge {
	var out []knowledge.Forge
	for _, f := range knowledge.Forges {
		r := rules[f]
		if _, ok := r.TriggerEvents[event]; ok {
			out = append(out, f)
		}
	}
	return out
}

func events(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// Package gaps inspects a knowledge snapshot for missing or stale forges
// and turns them into ranked proactive suggestions for the coach.
package gaps

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/forgefit/brain/internal/knowledge"
)

// Priority buckets for a whole report.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Timing is the slot a suggestion should surface in.
type Timing string

const (
	TimingNow           Timing = "now"
	TimingAfterActivity Timing = "after-activity"
	TimingMorning       Timing = "morning"
	TimingEvening       Timing = "evening"
	TimingWeekly        Timing = "weekly"
)

// Suggestion is one proactive ask, e.g. "log a meal so I can coach your
// nutrition".
type Suggestion struct {
	ID            string          `json:"id"`
	Forge         knowledge.Forge `json:"forge"`
	Action        string          `json:"action"`
	Message       string          `json:"message"`
	PriorityScore float64         `json:"priority_score"`
	Reason        string          `json:"reason"`
	Timing        Timing          `json:"timing"`
}

// Report is the full missing-data analysis for one snapshot.
type Report struct {
	HasIncompleteProfile bool              `json:"has_incomplete_profile"`
	MissingForges        []knowledge.Forge `json:"missing_forges"`
	Suggestions          []Suggestion      `json:"suggestions"`
	Priority             Priority          `json:"priority"`
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const defaultThreshold = 30

// Detector flags forges whose completeness falls below a threshold.
type Detector struct {
	threshold int
	clock     Clock
}

// NewDetector creates a Detector with the default 30% threshold.
func NewDetector() *Detector {
	return NewDetectorWithClock(defaultThreshold, realClock{})
}

// NewDetectorWithClock creates a Detector with a custom threshold and
// clock (for testing). threshold <= 0 falls back to the default.
func NewDetectorWithClock(threshold int, clock Clock) *Detector {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Detector{threshold: threshold, clock: clock}
}

// Analyze builds the missing-data report for a snapshot. Suggestions are
// sorted by descending priority score; ties go to the most incomplete
// forge first.
func (d *Detector) Analyze(snap *knowledge.UserKnowledge) Report {
	var r Report
	if snap == nil {
		r.HasIncompleteProfile = true
		r.Priority = PriorityHigh
		return r
	}

	r.HasIncompleteProfile = snap.Profile.Age == 0 || snap.Profile.Objective == ""

	now := d.clock.Now()
	for _, forge := range knowledge.Forges {
		// The perinatal forge is profile-gated; an empty slice for a user
		// with no declared status is not a gap.
		if forge == knowledge.ForgePerinatal && snap.Profile.PerinatalStatus == "" {
			continue
		}
		completeness := snap.Completeness[forge]
		if completeness >= d.threshold {
			continue
		}
		r.MissingForges = append(r.MissingForges, forge)
		r.Suggestions = append(r.Suggestions, d.suggestionFor(snap, forge, completeness, now))
	}

	sort.SliceStable(r.Suggestions, func(i, j int) bool {
		a, b := r.Suggestions[i], r.Suggestions[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		return snap.Completeness[a.Forge] < snap.Completeness[b.Forge]
	})

	r.Priority = overallPriority(r)
	return r
}

func (d *Detector) suggestionFor(snap *knowledge.UserKnowledge, forge knowledge.Forge, completeness int, now time.Time) Suggestion {
	score := centrality(forge, snap.Profile.Objective)*60 + staleness(snap.LastUpdated[forge], now)*40
	action, message, timing := suggestionText(forge)
	return Suggestion{
		ID:            uuid.NewString(),
		Forge:         forge,
		Action:        action,
		Message:       message,
		PriorityScore: score,
		Reason:        reasonFor(forge, completeness),
		Timing:        timing,
	}
}

// centrality weights a forge by how much the user's active objective
// depends on it, 0..1.
func centrality(forge knowledge.Forge, objective string) float64 {
	base := map[knowledge.Forge]float64{
		knowledge.ForgeTraining:  0.9,
		knowledge.ForgeNutrition: 0.8,
		knowledge.ForgeToday:     0.6,
		knowledge.ForgeBody:      0.5,
		knowledge.ForgeEnergy:    0.5,
		knowledge.ForgeFasting:   0.4,
		knowledge.ForgeEquipment: 0.4,
		knowledge.ForgeTemporal:  0.3,
		knowledge.ForgePerinatal: 0.9,
	}
	w := base[forge]
	switch objective {
	case "fat-loss":
		if forge == knowledge.ForgeNutrition || forge == knowledge.ForgeFasting || forge == knowledge.ForgeBody {
			w += 0.1
		}
	case "hypertrophy", "strength":
		if forge == knowledge.ForgeTraining || forge == knowledge.ForgeEquipment {
			w += 0.1
		}
	case "endurance":
		if forge == knowledge.ForgeTraining || forge == knowledge.ForgeEnergy {
			w += 0.1
		}
	}
	if w > 1 {
		w = 1
	}
	return w
}

// staleness grows from 0 (just updated) to 1 (a week or more old).
func staleness(lastUpdated time.Time, now time.Time) float64 {
	if lastUpdated.IsZero() {
		return 1
	}
	age := now.Sub(lastUpdated)
	s := age.Hours() / (7 * 24)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func overallPriority(r Report) Priority {
	if r.HasIncompleteProfile {
		return PriorityHigh
	}
	if len(r.Suggestions) == 0 {
		return PriorityLow
	}
	top := r.Suggestions[0].PriorityScore
	switch {
	case top >= 60:
		return PriorityHigh
	case top >= 30:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func suggestionText(forge knowledge.Forge) (action, message string, timing Timing) {
	switch forge {
	case knowledge.ForgeTraining:
		return "log_training", "Log your next workout so I can tailor your programming.", TimingAfterActivity
	case knowledge.ForgeNutrition:
		return "log_meal", "Log a few meals so I can coach your nutrition, not guess at it.", TimingNow
	case knowledge.ForgeFasting:
		return "log_fast", "Start tracking your fasting windows if you fast; timing matters.", TimingEvening
	case knowledge.ForgeBody:
		return "record_scan", "Record a body scan or weigh-in so we can track trend, not noise.", TimingMorning
	case knowledge.ForgeEquipment:
		return "set_equipment", "Tell me what equipment you have access to.", TimingWeekly
	case knowledge.ForgeEnergy:
		return "log_energy", "Log sleep and energy for a few days; recovery drives results.", TimingMorning
	case knowledge.ForgeTemporal:
		return "keep_training", "Keep logging sessions and I'll learn your schedule.", TimingWeekly
	case knowledge.ForgeToday:
		return "log_today", "Nothing logged today yet; a quick entry keeps me current.", TimingNow
	case knowledge.ForgePerinatal:
		return "update_profile", "Update your perinatal details so I can adjust guidance safely.", TimingNow
	default:
		return "update_profile", "Complete your profile for better coaching.", TimingNow
	}
}

func reasonFor(forge knowledge.Forge, completeness int) string {
	if completeness == 0 {
		return "no " + string(forge) + " data collected"
	}
	return string(forge) + " data is sparse"
}

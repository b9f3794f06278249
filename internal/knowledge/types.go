package knowledge

import (
	"fmt"
	"time"
)

// ForgeData is implemented by every per-forge knowledge value. The field
// manifest drives the generic completeness score without reflection.
type ForgeData interface {
	completenessFields() []field
}

// field is one manifest entry: a named value and whether it is present.
type field struct {
	name    string
	present bool
}

// ProfileKnowledge is the user's identity slice. Unlike the forges it has
// no default: a missing profile fails the whole load.
type ProfileKnowledge struct {
	UserID          string   `json:"user_id"`
	Name            string   `json:"name,omitempty"`
	Age             int      `json:"age,omitempty"`
	Sex             string   `json:"sex,omitempty"`
	HeightCM        float64  `json:"height_cm,omitempty"`
	WeightKG        float64  `json:"weight_kg,omitempty"`
	Objective       string   `json:"objective,omitempty"`
	ActivityLevel   string   `json:"activity_level,omitempty"`
	PerinatalStatus string   `json:"perinatal_status,omitempty"`
	Goals           []string `json:"goals,omitempty"`
}

// TrainingKnowledge summarizes the last 60 days of training.
// Zero value = "no training data" (0 sessions, 0 AvgRPE).
type TrainingKnowledge struct {
	SessionCount      int       `json:"session_count"`
	SessionsPerWeek   float64   `json:"sessions_per_week"`
	AvgRPE            float64   `json:"avg_rpe"`
	AvgDurationMin    float64   `json:"avg_duration_min"`
	FrequentMovements []string  `json:"frequent_movements,omitempty"`
	LastSessionAt     time.Time `json:"last_session_at,omitzero"`
}

func (k TrainingKnowledge) completenessFields() []field {
	return []field{
		{"session_count", k.SessionCount > 0},
		{"sessions_per_week", k.SessionsPerWeek > 0},
		{"avg_rpe", k.AvgRPE > 0},
		{"avg_duration_min", k.AvgDurationMin > 0},
		{"frequent_movements", len(k.FrequentMovements) > 0},
		{"last_session_at", !k.LastSessionAt.IsZero()},
	}
}

// EquipmentKnowledge lists where and with what the user can train.
type EquipmentKnowledge struct {
	Locations []string `json:"locations,omitempty"`
	Items     []string `json:"items,omitempty"`
}

func (k EquipmentKnowledge) completenessFields() []field {
	return []field{
		{"locations", len(k.Locations) > 0},
		{"items", len(k.Items) > 0},
	}
}

// NutritionKnowledge summarizes the last 30 days of logged meals.
type NutritionKnowledge struct {
	MealCount    int      `json:"meal_count"`
	TrackedDays  int      `json:"tracked_days"`
	AvgDailyKcal float64  `json:"avg_daily_kcal"`
	AvgProteinG  float64  `json:"avg_protein_g"`
	AvgCarbsG    float64  `json:"avg_carbs_g"`
	AvgFatG      float64  `json:"avg_fat_g"`
	CommonFoods  []string `json:"common_foods,omitempty"`
}

func (k NutritionKnowledge) completenessFields() []field {
	return []field{
		{"meal_count", k.MealCount > 0},
		{"tracked_days", k.TrackedDays > 0},
		{"avg_daily_kcal", k.AvgDailyKcal > 0},
		{"avg_protein_g", k.AvgProteinG > 0},
		{"avg_carbs_g", k.AvgCarbsG > 0},
		{"avg_fat_g", k.AvgFatG > 0},
		{"common_foods", len(k.CommonFoods) > 0},
	}
}

// FastingKnowledge summarizes the last 30 days of fasting windows.
type FastingKnowledge struct {
	SessionCount   int       `json:"session_count"`
	AvgWindowHours float64   `json:"avg_window_hours"`
	CompletionRate float64   `json:"completion_rate"`
	Protocol       string    `json:"protocol,omitempty"`
	LastFastAt     time.Time `json:"last_fast_at,omitzero"`
}

func (k FastingKnowledge) completenessFields() []field {
	return []field{
		{"session_count", k.SessionCount > 0},
		{"avg_window_hours", k.AvgWindowHours > 0},
		{"completion_rate", k.CompletionRate > 0},
		{"protocol", k.Protocol != ""},
		{"last_fast_at", !k.LastFastAt.IsZero()},
	}
}

// BodyKnowledge summarizes body-composition scans over the last 90 days.
type BodyKnowledge struct {
	ScanCount        int       `json:"scan_count"`
	LatestWeightKG   float64   `json:"latest_weight_kg"`
	LatestBodyFatPct float64   `json:"latest_body_fat_pct"`
	LatestMuscleKG   float64   `json:"latest_muscle_kg"`
	WeightDeltaKG    float64   `json:"weight_delta_kg"`
	LastScanAt       time.Time `json:"last_scan_at,omitzero"`
}

func (k BodyKnowledge) completenessFields() []field {
	return []field{
		{"scan_count", k.ScanCount > 0},
		{"latest_weight_kg", k.LatestWeightKG > 0},
		{"latest_body_fat_pct", k.LatestBodyFatPct > 0},
		{"latest_muscle_kg", k.LatestMuscleKG > 0},
		{"weight_delta_kg", k.WeightDeltaKG != 0},
		{"last_scan_at", !k.LastScanAt.IsZero()},
	}
}

// EnergyKnowledge summarizes sleep and biometric self-reports.
type EnergyKnowledge struct {
	RecordCount    int     `json:"record_count"`
	AvgSleepHours  float64 `json:"avg_sleep_hours"`
	AvgEnergyLevel float64 `json:"avg_energy_level"`
	AvgRestingHR   float64 `json:"avg_resting_hr"`
}

func (k EnergyKnowledge) completenessFields() []field {
	return []field{
		{"record_count", k.RecordCount > 0},
		{"avg_sleep_hours", k.AvgSleepHours > 0},
		{"avg_energy_level", k.AvgEnergyLevel > 0},
		{"avg_resting_hr", k.AvgRestingHR > 0},
	}
}

// TemporalKnowledge captures when the user habitually trains, derived from
// 90 days of session timestamps.
type TemporalKnowledge struct {
	PreferredHours   []int    `json:"preferred_hours,omitempty"` // 24h clock, most frequent first
	PreferredDays    []string `json:"preferred_days,omitempty"`  // weekday names, most frequent first
	ConsistencyScore float64  `json:"consistency_score"`         // 0..1, share of weeks with a session
	SampleSize       int      `json:"sample_size"`
}

func (k TemporalKnowledge) completenessFields() []field {
	return []field{
		{"preferred_hours", len(k.PreferredHours) > 0},
		{"preferred_days", len(k.PreferredDays) > 0},
		{"consistency_score", k.ConsistencyScore > 0},
		{"sample_size", k.SampleSize > 0},
	}
}

// TodayKnowledge is the since-midnight activity slice.
type TodayKnowledge struct {
	SessionsToday       int     `json:"sessions_today"`
	MealsLogged         int     `json:"meals_logged"`
	KcalSoFar           float64 `json:"kcal_so_far"`
	ProteinSoFar        float64 `json:"protein_so_far"`
	FastingActive       bool    `json:"fasting_active"`
	FastingElapsedHours float64 `json:"fasting_elapsed_hours"`
}

func (k TodayKnowledge) completenessFields() []field {
	return []field{
		{"sessions_today", k.SessionsToday > 0},
		{"meals_logged", k.MealsLogged > 0},
		{"kcal_so_far", k.KcalSoFar > 0},
		{"protein_so_far", k.ProteinSoFar > 0},
		{"fasting", k.FastingActive},
	}
}

// PerinatalKnowledge is populated only when the profile declares a
// pregnancy or post-partum status; otherwise it stays at its default.
type PerinatalKnowledge struct {
	Status       string   `json:"status,omitempty"` // "pregnant", "postpartum"
	Stage        string   `json:"stage,omitempty"`
	KeyNutrients []string `json:"key_nutrients,omitempty"`
	KcalAdjust   float64  `json:"kcal_adjust,omitempty"`
	Cautions     []string `json:"cautions,omitempty"`
}

func (k PerinatalKnowledge) completenessFields() []field {
	return []field{
		{"status", k.Status != ""},
		{"stage", k.Stage != ""},
		{"key_nutrients", len(k.KeyNutrients) > 0},
		{"kcal_adjust", k.KcalAdjust != 0},
		{"cautions", len(k.Cautions) > 0},
	}
}

// UserKnowledge is the merged point-in-time snapshot across all forges.
// Treat a snapshot as immutable once returned; refreshes produce a new one.
type UserKnowledge struct {
	UserID    string             `json:"user_id"`
	Profile   ProfileKnowledge   `json:"profile"`
	Training  TrainingKnowledge  `json:"training"`
	Equipment EquipmentKnowledge `json:"equipment"`
	Nutrition NutritionKnowledge `json:"nutrition"`
	Fasting   FastingKnowledge   `json:"fasting"`
	Body      BodyKnowledge      `json:"body"`
	Energy    EnergyKnowledge    `json:"energy"`
	Temporal  TemporalKnowledge  `json:"temporal"`
	Today     TodayKnowledge     `json:"today"`
	Perinatal PerinatalKnowledge `json:"perinatal"`

	LastUpdated  map[Forge]time.Time `json:"last_updated"`
	Completeness map[Forge]int       `json:"completeness"`
}

// Clone returns a deep copy, so a single-forge refresh can replace one
// slice without mutating snapshots already handed to callers.
func (k *UserKnowledge) Clone() *UserKnowledge {
	cp := *k
	cp.LastUpdated = make(map[Forge]time.Time, len(k.LastUpdated))
	for f, t := range k.LastUpdated {
		cp.LastUpdated[f] = t
	}
	cp.Completeness = make(map[Forge]int, len(k.Completeness))
	for f, c := range k.Completeness {
		cp.Completeness[f] = c
	}
	cp.Profile.Goals = append([]string(nil), k.Profile.Goals...)
	cp.Training.FrequentMovements = append([]string(nil), k.Training.FrequentMovements...)
	cp.Equipment.Locations = append([]string(nil), k.Equipment.Locations...)
	cp.Equipment.Items = append([]string(nil), k.Equipment.Items...)
	cp.Nutrition.CommonFoods = append([]string(nil), k.Nutrition.CommonFoods...)
	cp.Temporal.PreferredHours = append([]int(nil), k.Temporal.PreferredHours...)
	cp.Temporal.PreferredDays = append([]string(nil), k.Temporal.PreferredDays...)
	cp.Perinatal.KeyNutrients = append([]string(nil), k.Perinatal.KeyNutrients...)
	cp.Perinatal.Cautions = append([]string(nil), k.Perinatal.Cautions...)
	return &cp
}

// dataFor returns the slice for one forge.
func (k *UserKnowledge) dataFor(f Forge) ForgeData {
	switch f {
	case ForgeTraining:
		return k.Training
	case ForgeEquipment:
		return k.Equipment
	case ForgeNutrition:
		return k.Nutrition
	case ForgeFasting:
		return k.Fasting
	case ForgeBody:
		return k.Body
	case ForgeEnergy:
		return k.Energy
	case ForgeTemporal:
		return k.Temporal
	case ForgeToday:
		return k.Today
	case ForgePerinatal:
		return k.Perinatal
	}
	return nil
}

// setForge replaces the slice for one forge. The type switch is the write
// half of dataFor; a mismatched pair is a programming error.
func (k *UserKnowledge) setForge(f Forge, data ForgeData) error {
	switch d := data.(type) {
	case TrainingKnowledge:
		k.Training = d
	case EquipmentKnowledge:
		k.Equipment = d
	case NutritionKnowledge:
		k.Nutrition = d
	case FastingKnowledge:
		k.Fasting = d
	case BodyKnowledge:
		k.Body = d
	case EnergyKnowledge:
		k.Energy = d
	case TemporalKnowledge:
		k.Temporal = d
	case TodayKnowledge:
		k.Today = d
	case PerinatalKnowledge:
		k.Perinatal = d
	default:
		return fmt.Errorf("unknown forge data %T for %q", data, f)
	}
	return nil
}

// defaultFor returns the documented empty value substituted when a forge's
// collector fails or times out.
func defaultFor(f Forge) ForgeData {
	switch f {
	case ForgeTraining:
		return TrainingKnowledge{}
	case ForgeEquipment:
		return EquipmentKnowledge{}
	case ForgeNutrition:
		return NutritionKnowledge{}
	case ForgeFasting:
		return FastingKnowledge{}
	case ForgeBody:
		return BodyKnowledge{}
	case ForgeEnergy:
		return EnergyKnowledge{}
	case ForgeTemporal:
		return TemporalKnowledge{}
	case ForgeToday:
		return TodayKnowledge{}
	case ForgePerinatal:
		return PerinatalKnowledge{}
	}
	return nil
}

// Package knowledge aggregates per-forge user data into a single cached
// snapshot. A "forge" is one bounded category of user data (training,
// nutrition, fasting, ...); each forge has its own collector, TTL, and
// completeness score.
package knowledge

// Forge identifies one category of user data.
type Forge string

const (
	ForgeTraining  Forge = "training"
	ForgeEquipment Forge = "equipment"
	ForgeNutrition Forge = "nutrition"
	ForgeFasting   Forge = "fasting"
	ForgeBody      Forge = "body"
	ForgeEnergy    Forge = "energy"
	ForgeTemporal  Forge = "temporal"
	ForgeToday     Forge = "today"
	ForgePerinatal Forge = "perinatal"

	// ForgeAll tags whole-snapshot cache entries.
	ForgeAll Forge = "all"
)

// Forges lists every collectable forge in merge order.
var Forges = []Forge{
	ForgeTraining,
	ForgeEquipment,
	ForgeNutrition,
	ForgeFasting,
	ForgeBody,
	ForgeEnergy,
	ForgeTemporal,
	ForgeToday,
	ForgePerinatal,
}

// Valid reports whether f names a collectable forge.
func Valid(f Forge) bool {
	for _, known := range Forges {
		if f == known {
			return true
		}
	}
	return false
}

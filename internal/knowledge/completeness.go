package knowledge

import "math"

// Score computes the 0-100 completeness of a forge slice: the rounded
// share of manifest fields that are present. An all-default value scores 0
// on purpose, since defaults double as "no data" sentinels.
func Score(data ForgeData) int {
	if data == nil {
		return 0
	}
	fields := data.completenessFields()
	if len(fields) == 0 {
		return 0
	}
	present := 0
	for _, f := range fields {
		if f.present {
			present++
		}
	}
	return int(math.Round(100 * float64(present) / float64(len(fields))))
}

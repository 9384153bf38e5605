package model

// Score band thresholds shared by every scoring stage.
const (
	BandHighThreshold   = 75
	BandMediumThreshold = 45
)

// ClampScore bounds a model-produced score to [0,100].
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// BandFor derives the categorical band for a 0-100 score.
func BandFor(score float64) string {
	switch {
	case score >= BandHighThreshold:
		return "high"
	case score >= BandMediumThreshold:
		return "medium"
	default:
		return "low"
	}
}

package analysis

// ─── CONSTANTS ────────────────────────────────────────────────────────────────

// Classifier thresholds. Every comparison is strict.
const (
	criticalCrisisThreshold = 0.3  // crisis score above this → critical
	highCompoundThreshold   = -0.5 // compound below this...
	highConcernThreshold    = 2    // ...and more concerns than this → high
	moderateCompound        = -0.2 // compound below this → moderate
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// RiskLevel is the four-bucket message risk. It is unrelated to the
// questionnaire risk in package assessment and is never converted to it.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// WantsFollowUp reports whether a response at this level should offer a
// follow-up conversation.
func (r RiskLevel) WantsFollowUp() bool {
	return r == RiskModerate || r == RiskHigh
}

// ─── CLASSIFIER ───────────────────────────────────────────────────────────────

// IsCrisis reports whether a crisis score alone is enough to treat a message
// as a crisis.
func IsCrisis(crisisScore float64) bool {
	return crisisScore > criticalCrisisThreshold
}

// Classify maps the three analysis signals onto a RiskLevel. Rules are
// evaluated in order and the first match wins:
//
//	critical — crisisScore > 0.3
//	high     — compound < -0.5 AND concernCount > 2
//	moderate — compound < -0.2 OR  concernCount > 0
//	low      — otherwise
func Classify(crisisScore, compound float64, concernCount int) RiskLevel {
	switch {
	case IsCrisis(crisisScore):
		return RiskCritical
	case compound < highCompoundThreshold && concernCount > highConcernThreshold:
		return RiskHigh
	case compound < moderateCompound || concernCount > 0:
		return RiskModerate
	default:
		return RiskLow
	}
}

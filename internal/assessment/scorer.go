// Package assessment scores standardised self-report questionnaires (PHQ-9 for
// depression, GAD-7 for anxiety). It is independent of message analysis and
// has its own three-level risk scale.
package assessment

import "errors"

// ─── CONSTANTS ────────────────────────────────────────────────────────────────

// Total-score thresholds, inclusive.
const (
	highTotalThreshold     = 20
	moderateTotalThreshold = 10

	// A sub-score at or above this earns the instrument's recommendation.
	recommendationThreshold = 10
)

// ErrNoResponses is returned when the responses map is empty.
var ErrNoResponses = errors.New("assessment: responses are required")

// ─── TYPES ────────────────────────────────────────────────────────────────────

// RiskLevel is the questionnaire risk scale. It is deliberately a separate
// type from analysis.RiskLevel: the two scales are not comparable.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Result is the outcome of one assessment. Scores holds a sub-score per
// recognised instrument that was present, keyed by category name.
type Result struct {
	Scores          map[string]int `json:"scores"`
	TotalScore      int            `json:"total_score"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	Recommendations []string       `json:"recommendations"`
}

// ─── CORE FUNCTIONS ───────────────────────────────────────────────────────────

// GetRiskLevel buckets a total score.
func GetRiskLevel(total int) RiskLevel {
	switch {
	case total >= highTotalThreshold:
		return RiskHigh
	case total >= moderateTotalThreshold:
		return RiskModerate
	default:
		return RiskLow
	}
}

// Score sums each recognised instrument's item values and derives the overall
// risk and recommendations. Unknown instrument keys are ignored; a map with
// only unknown keys scores zero.
func Score(responses map[string]map[string]int) (Result, error) {
	if len(responses) == 0 {
		return Result{}, ErrNoResponses
	}

	out := Result{
		Scores:          make(map[string]int, len(instruments)),
		Recommendations: []string{},
	}

	for _, in := range instruments {
		items, ok := responses[in.key]
		if !ok {
			continue
		}
		sub := sumItems(items)
		out.Scores[in.category] = sub
		out.TotalScore += sub
	}

	out.RiskLevel = GetRiskLevel(out.TotalScore)

	for _, in := range instruments {
		if out.Scores[in.category] >= recommendationThreshold {
			out.Recommendations = append(out.Recommendations, in.recommendation)
		}
	}
	if out.RiskLevel == RiskHigh {
		out.Recommendations = append(out.Recommendations, immediateSupport)
	}

	return out, nil
}

func sumItems(items map[string]int) int {
	total := 0
	for _, v := range items {
		total += v
	}
	return total
}

package analysis

import (
	"sort"
	"strings"

	"github.com/nyashahama/mshauri-counselor-backend/internal/lexicon"
)

// Detector scans message text for crisis keywords and concern categories.
type Detector struct {
	lex *lexicon.Lexicon
}

// NewDetector returns a Detector reading from lex. lex must already be
// validated and must not be modified afterwards.
func NewDetector(lex *lexicon.Lexicon) *Detector {
	return &Detector{lex: lex}
}

// Detect lowercases text once and tests every keyword with plain substring
// containment. Matching is not token-aware, so "die" also matches "diet".
//
// crisisScore is the share of distinct crisis keywords present, clamped to
// [0, 1]. concerns holds each matched category once, in lexicon priority
// order; it is nil when nothing matched.
func (d *Detector) Detect(text string) (crisisScore float64, concerns []string) {
	lower := strings.ToLower(text)
	return d.crisisScore(lower), d.concerns(lower)
}

func (d *Detector) crisisScore(lower string) float64 {
	total := len(d.lex.CrisisKeywords)
	if total == 0 {
		return 0
	}
	seen := make(map[string]struct{}, total)
	for _, kw := range d.lex.CrisisKeywords {
		if strings.Contains(lower, kw) {
			seen[kw] = struct{}{}
		}
	}
	return min(float64(len(seen))/float64(total), 1.0)
}

func (d *Detector) concerns(lower string) []string {
	var found []string
	for _, c := range d.lex.Categories {
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				found = append(found, c.Name)
				break
			}
		}
	}
	// Categories are walked in declaration order already; the sort keeps the
	// result stable if a caller hands us a lexicon built some other way.
	sort.SliceStable(found, func(a, b int) bool {
		return d.lex.Priority(found[a]) < d.lex.Priority(found[b])
	})
	return found
}

// Package response selects the scripted reply for an analysed message: one
// template message plus an ordered list of suggestions, drawn from the
// lexicon according to risk level and primary concern.
package response

import (
	"encoding/json"

	"github.com/nyashahama/mshauri-counselor-backend/internal/analysis"
	"github.com/nyashahama/mshauri-counselor-backend/internal/lexicon"
)

// Category names with dedicated coping-strategy rules.
const (
	concernAnxiety    = "anxiety"
	concernDepression = "depression"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Result is the reply shown to the user. SessionID and UserID are opaque
// caller values echoed verbatim; nil renders as JSON null.
type Result struct {
	Message          string          `json:"message"`
	Suggestions      []string        `json:"suggestions"`
	Resources        []any           `json:"resources"`
	EmergencyContact bool            `json:"emergency_contact"`
	FollowUp         bool            `json:"follow_up"`
	SessionID        json.RawMessage `json:"session_id"`
	UserID           json.RawMessage `json:"user_id"`
}

// Composer builds Results from a read-only lexicon.
type Composer struct {
	lex *lexicon.Lexicon
	rnd Rand
}

// NewComposer returns a Composer. A nil rnd uses DefaultRand.
func NewComposer(lex *lexicon.Lexicon, rnd Rand) *Composer {
	if rnd == nil {
		rnd = DefaultRand()
	}
	return &Composer{lex: lex, rnd: rnd}
}

// ─── COMPOSE ──────────────────────────────────────────────────────────────────

// Compose picks a message and suggestions. Rules, in order:
//
//   - crisis (risk critical or crisisScore above the crisis threshold): a
//     crisis template, emergency_contact set, the four fixed emergency
//     suggestions. Concerns are ignored.
//   - any concern: the primary concern's template (general support when it
//     has none) plus coping strategies chosen by that concern.
//   - otherwise: a general support template and the generic suggestions.
//
// Moderate and high risk additionally get the follow-up suggestion. text is
// accepted for parity with the analysis call but no rule reads it.
func (c *Composer) Compose(risk analysis.RiskLevel, concerns []string, crisisScore float64, text string) Result {
	res := Result{
		Suggestions: []string{},
		Resources:   []any{},
	}

	switch {
	case risk == analysis.RiskCritical || analysis.IsCrisis(crisisScore):
		res.Message = c.pick(c.lex.Templates[lexicon.TemplateCrisis])
		res.EmergencyContact = true
		res.Suggestions = append(res.Suggestions, c.lex.Suggestions.Crisis...)

	case len(concerns) > 0:
		primary := c.primary(concerns)
		templates, ok := c.lex.Template(primary)
		if !ok {
			templates = c.lex.Templates[lexicon.TemplateGeneralSupport]
		}
		res.Message = c.pick(templates)
		res.Suggestions = append(res.Suggestions, c.strategiesFor(primary)...)

	default:
		res.Message = c.pick(c.lex.Templates[lexicon.TemplateGeneralSupport])
		res.Suggestions = append(res.Suggestions, c.lex.Suggestions.General...)
	}

	if risk.WantsFollowUp() {
		res.FollowUp = true
		res.Suggestions = append(res.Suggestions, c.lex.Suggestions.FollowUp)
	}
	return res
}

// EmergencyResources returns the static emergency directory.
func (c *Composer) EmergencyResources() lexicon.Resources {
	return c.lex.Resources
}

// primary returns the concern with the best lexicon priority. Ties cannot
// occur because category names are unique.
func (c *Composer) primary(concerns []string) string {
	best := concerns[0]
	for _, name := range concerns[1:] {
		if c.lex.Priority(name) < c.lex.Priority(best) {
			best = name
		}
	}
	return best
}

func (c *Composer) strategiesFor(primary string) []string {
	switch primary {
	case concernAnxiety:
		out := c.sample(c.lex.Strategy(lexicon.StrategyBreathing), 2)
		return append(out, c.sample(c.lex.Strategy(lexicon.StrategyGrounding), 1)...)
	case concernDepression:
		out := c.sample(c.lex.Strategy(lexicon.StrategyMindfulness), 2)
		return append(out, c.lex.Suggestions.ProfessionalReferral)
	default:
		out := c.sample(c.lex.Strategy(lexicon.StrategyBreathing), 1)
		return append(out, c.sample(c.lex.Strategy(lexicon.StrategyGrounding), 1)...)
	}
}

// ─── RANDOM SELECTION ─────────────────────────────────────────────────────────

func (c *Composer) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[c.rnd.IntN(len(options))]
}

// sample draws k distinct elements with a partial Fisher-Yates shuffle over a
// copy, so the lexicon slice is never reordered. k is capped at len(pool).
func (c *Composer) sample(pool []string, k int) []string {
	k = min(k, len(pool))
	buf := append([]string(nil), pool...)
	for i := 0; i < k; i++ {
		j := i + c.rnd.IntN(len(buf)-i)
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf[:k]
}

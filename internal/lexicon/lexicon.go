// Package lexicon holds the static tables the counselor engine reads: concern
// categories and their trigger keywords, crisis keywords, response templates,
// coping strategies, fixed suggestion lines and the emergency resource
// directory.
//
// A Lexicon is loaded once at startup (embedded default or a YAML file named by
// LEXICON_PATH), validated, and then shared read-only by every request. Nothing
// in the engine mutates it after Load returns.
package lexicon

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultYAML []byte

// Template and strategy keys that the response composer depends on.
const (
	TemplateCrisis         = "crisis"
	TemplateGeneralSupport = "general_support"

	StrategyBreathing   = "breathing"
	StrategyGrounding   = "grounding"
	StrategyMindfulness = "mindfulness"
)

// CrisisSuggestionCount is the fixed size of the emergency-action list attached
// to every crisis response.
const CrisisSuggestionCount = 4

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Category is a named concern (e.g. "depression") and the substrings that
// trigger it.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Suggestions are the fixed (non-sampled) suggestion lines.
type Suggestions struct {
	Crisis               []string `yaml:"crisis"`
	General              []string `yaml:"general"`
	ProfessionalReferral string   `yaml:"professional_referral"`
	FollowUp             string   `yaml:"follow_up"`
}

// EmergencyServices lists the national emergency numbers.
type EmergencyServices struct {
	Police      string `yaml:"police" json:"police"`
	Medical     string `yaml:"medical" json:"medical"`
	Description string `yaml:"description" json:"description"`
}

// Helpline is a phone line staffed for mental-health support.
type Helpline struct {
	Name      string `yaml:"name" json:"name"`
	Phone     string `yaml:"phone" json:"phone"`
	Available string `yaml:"available" json:"available"`
}

// OnlineResource is a link to self-help material.
type OnlineResource struct {
	Name        string `yaml:"name" json:"name"`
	URL         string `yaml:"url" json:"url"`
	Description string `yaml:"description" json:"description"`
}

// Resources is the static emergency directory returned by the emergency
// endpoint. It does not depend on any analysis.
type Resources struct {
	EmergencyServices EmergencyServices `yaml:"emergency_services" json:"emergency_services"`
	Helplines         []Helpline        `yaml:"mental_health_helplines" json:"mental_health_helplines"`
	OnlineResources   []OnlineResource  `yaml:"online_resources" json:"online_resources"`
}

// Lexicon is the full set of read-only tables. Categories are kept as a slice
// because their order is the primary-concern priority order.
type Lexicon struct {
	Categories     []Category          `yaml:"categories"`
	CrisisKeywords []string            `yaml:"crisis_keywords"`
	Templates      map[string][]string `yaml:"templates"`
	Strategies     map[string][]string `yaml:"strategies"`
	Suggestions    Suggestions         `yaml:"suggestions"`
	Resources      Resources           `yaml:"resources"`

	priority map[string]int
}

// ─── LOADING ──────────────────────────────────────────────────────────────────

// Default returns the embedded lexicon.
func Default() (*Lexicon, error) {
	return Parse(defaultYAML)
}

// Load reads a lexicon from path, or returns the embedded default when path is
// empty.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: read %s: %w", path, err)
	}
	lex, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("lexicon: %s: %w", path, err)
	}
	return lex, nil
}

// Parse decodes a YAML lexicon, lowercases every keyword (matching is done on
// lowercased text) and validates the result. Unknown YAML fields are rejected
// so that a typo in an override file fails at startup rather than silently
// dropping a table.
func Parse(raw []byte) (*Lexicon, error) {
	var lex Lexicon
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&lex); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("lexicon: empty document")
		}
		return nil, fmt.Errorf("lexicon: decode: %w", err)
	}

	lex.normalize()
	if err := lex.Validate(); err != nil {
		return nil, err
	}

	lex.priority = make(map[string]int, len(lex.Categories))
	for i, c := range lex.Categories {
		lex.priority[c.Name] = i
	}
	return &lex, nil
}

func (l *Lexicon) normalize() {
	for i := range l.Categories {
		l.Categories[i].Name = strings.TrimSpace(l.Categories[i].Name)
		l.Categories[i].Keywords = lowerAll(l.Categories[i].Keywords)
	}
	l.CrisisKeywords = lowerAll(l.CrisisKeywords)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}

// Validate checks every invariant the engine relies on. Call it once at load
// time, not per request.
func (l *Lexicon) Validate() error {
	var errs []error

	if len(l.Categories) == 0 {
		errs = append(errs, errors.New("lexicon: at least one category is required"))
	}
	seen := make(map[string]bool, len(l.Categories))
	for i, c := range l.Categories {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("lexicon: categories[%d] has no name", i))
			continue
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("lexicon: duplicate category %q", c.Name))
		}
		seen[c.Name] = true
		if len(c.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("lexicon: category %q has no keywords", c.Name))
		}
		for j, kw := range c.Keywords {
			if strings.TrimSpace(kw) == "" {
				errs = append(errs, fmt.Errorf("lexicon: category %q keyword[%d] is blank", c.Name, j))
			}
		}
	}

	if len(l.CrisisKeywords) == 0 {
		errs = append(errs, errors.New("lexicon: at least one crisis keyword is required"))
	}
	for i, kw := range l.CrisisKeywords {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, fmt.Errorf("lexicon: crisis_keywords[%d] is blank", i))
		}
	}

	for _, key := range []string{TemplateCrisis, TemplateGeneralSupport} {
		if len(l.Templates[key]) == 0 {
			errs = append(errs, fmt.Errorf("lexicon: templates.%s must not be empty", key))
		}
	}

	// Minimum sizes follow from the sample counts the composer draws.
	for key, want := range map[string]int{
		StrategyBreathing:   2,
		StrategyGrounding:   1,
		StrategyMindfulness: 2,
	} {
		if n := len(l.Strategies[key]); n < want {
			errs = append(errs, fmt.Errorf("lexicon: strategies.%s needs at least %d entries, got %d", key, want, n))
		}
	}

	if n := len(l.Suggestions.Crisis); n != CrisisSuggestionCount {
		errs = append(errs, fmt.Errorf("lexicon: suggestions.crisis must have exactly %d entries, got %d", CrisisSuggestionCount, n))
	}
	if len(l.Suggestions.General) == 0 {
		errs = append(errs, errors.New("lexicon: suggestions.general must not be empty"))
	}
	if strings.TrimSpace(l.Suggestions.ProfessionalReferral) == "" {
		errs = append(errs, errors.New("lexicon: suggestions.professional_referral is required"))
	}
	if strings.TrimSpace(l.Suggestions.FollowUp) == "" {
		errs = append(errs, errors.New("lexicon: suggestions.follow_up is required"))
	}

	return errors.Join(errs...)
}

// ─── ACCESSORS ────────────────────────────────────────────────────────────────

// Priority returns the position of a category in the lexicon, lower meaning
// more important. Unknown names sort after every known category.
func (l *Lexicon) Priority(name string) int {
	if p, ok := l.priority[name]; ok {
		return p
	}
	return len(l.Categories)
}

// Template returns the message templates for key. ok is false when the key has
// no templates (most concern categories fall back to general support).
func (l *Lexicon) Template(key string) (templates []string, ok bool) {
	templates = l.Templates[key]
	return templates, len(templates) > 0
}

// Strategy returns the coping strategies for key.
func (l *Lexicon) Strategy(key string) []string {
	return l.Strategies[key]
}

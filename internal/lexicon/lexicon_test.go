package lexicon_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nyashahama/mshauri-counselor-backend/internal/lexicon"
)

// minimalYAML is the smallest document that passes Validate.
const minimalYAML = `
categories:
  - name: anxiety
    keywords: [Anxious, PANIC]
crisis_keywords: [Suicide]
templates:
  crisis: ["c"]
  general_support: ["g"]
strategies:
  breathing: ["b1", "b2"]
  grounding: ["g1"]
  mindfulness: ["m1", "m2"]
suggestions:
  crisis: ["a", "b", "c", "d"]
  general: ["x"]
  professional_referral: "r"
  follow_up: "f"
`

func TestDefault_LoadsAndValidates(t *testing.T) {
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	wantOrder := []string{"depression", "anxiety", "stress", "trauma", "substance", "eating", "sleep", "relationships"}
	if len(lex.Categories) != len(wantOrder) {
		t.Fatalf("expected %d categories, got %d", len(wantOrder), len(lex.Categories))
	}
	for i, name := range wantOrder {
		if lex.Categories[i].Name != name {
			t.Errorf("category %d: got %q, want %q", i, lex.Categories[i].Name, name)
		}
		if lex.Priority(name) != i {
			t.Errorf("Priority(%q) = %d, want %d", name, lex.Priority(name), i)
		}
	}

	if len(lex.CrisisKeywords) != 8 {
		t.Errorf("expected 8 crisis keywords, got %d", len(lex.CrisisKeywords))
	}
	if len(lex.Suggestions.Crisis) != lexicon.CrisisSuggestionCount {
		t.Errorf("expected %d crisis suggestions, got %d", lexicon.CrisisSuggestionCount, len(lex.Suggestions.Crisis))
	}
	if lex.Resources.EmergencyServices.Police != "112" || lex.Resources.EmergencyServices.Medical != "114" {
		t.Errorf("unexpected emergency services: %+v", lex.Resources.EmergencyServices)
	}
	if len(lex.Resources.Helplines) != 2 {
		t.Errorf("expected 2 helplines, got %d", len(lex.Resources.Helplines))
	}
}

func TestDefault_KeywordListsMayOverlap(t *testing.T) {
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	owners := map[string][]string{}
	for _, c := range lex.Categories {
		for _, kw := range c.Keywords {
			owners[kw] = append(owners[kw], c.Name)
		}
	}
	if got := owners["overwhelmed"]; len(got) != 2 {
		t.Errorf("expected 'overwhelmed' in anxiety and stress, got %v", got)
	}
	if got := owners["nightmare"]; len(got) != 2 {
		t.Errorf("expected 'nightmare' in trauma and sleep, got %v", got)
	}
}

func TestParse_LowercasesKeywords(t *testing.T) {
	lex, err := lexicon.Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := lex.Categories[0].Keywords; got[0] != "anxious" || got[1] != "panic" {
		t.Errorf("keywords not lowercased: %v", got)
	}
	if lex.CrisisKeywords[0] != "suicide" {
		t.Errorf("crisis keyword not lowercased: %q", lex.CrisisKeywords[0])
	}
}

func TestParse_PriorityOfUnknownCategorySortsLast(t *testing.T) {
	lex, err := lexicon.Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := lex.Priority("nope"); got != len(lex.Categories) {
		t.Errorf("Priority(unknown) = %d, want %d", got, len(lex.Categories))
	}
}

func TestTemplate(t *testing.T) {
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if _, ok := lex.Template("depression"); !ok {
		t.Error("expected depression templates")
	}
	if _, ok := lex.Template("sleep"); ok {
		t.Error("sleep has no templates and should fall back")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{"empty document", func(string) string { return "" }, "empty document"},
		{"malformed", func(string) string { return "categories: [" }, "decode"},
		{"unknown field", func(s string) string { return s + "extra: 1\n" }, "decode"},
		{"no crisis keywords", func(s string) string {
			return strings.Replace(s, "crisis_keywords: [Suicide]", "crisis_keywords: []", 1)
		}, "crisis keyword"},
		{"three crisis suggestions", func(s string) string {
			return strings.Replace(s, `crisis: ["a", "b", "c", "d"]`, `crisis: ["a", "b", "c"]`, 1)
		}, "exactly 4"},
		{"one breathing strategy", func(s string) string {
			return strings.Replace(s, `breathing: ["b1", "b2"]`, `breathing: ["b1"]`, 1)
		}, "strategies.breathing"},
		{"missing general support", func(s string) string {
			return strings.Replace(s, `general_support: ["g"]`, `general_support: []`, 1)
		}, "templates.general_support"},
		{"duplicate category", func(s string) string {
			return strings.Replace(s, "crisis_keywords:", "  - name: anxiety\n    keywords: [x]\ncrisis_keywords:", 1)
		}, "duplicate category"},
		{"blank follow up", func(s string) string {
			return strings.Replace(s, `follow_up: "f"`, `follow_up: ""`, 1)
		}, "follow_up"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lexicon.Parse([]byte(tt.mutate(minimalYAML)))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	lex, err := lexicon.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(lex.Categories) == 0 {
		t.Error("expected default categories")
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	lex, err := lexicon.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(lex.Categories) != 1 || lex.Categories[0].Name != "anxiety" {
		t.Errorf("unexpected categories: %+v", lex.Categories)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := lexicon.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

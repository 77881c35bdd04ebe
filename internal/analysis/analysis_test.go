package analysis_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nyashahama/mshauri-counselor-backend/internal/analysis"
	"github.com/nyashahama/mshauri-counselor-backend/internal/lexicon"
	"github.com/nyashahama/mshauri-counselor-backend/internal/sentiment"
)

// ─── helpers ──────────────────────────────────────────────────────────────────

type stubScorer struct {
	scores sentiment.Scores
	err    error
}

func (s stubScorer) Score(string) (sentiment.Scores, error) { return s.scores, s.err }

func defaultLexicon(t *testing.T) *lexicon.Lexicon {
	t.Helper()
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("lexicon.Default: %v", err)
	}
	return lex
}

// ─── Classify ─────────────────────────────────────────────────────────────────

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		crisis   float64
		compound float64
		concerns int
		want     analysis.RiskLevel
	}{
		{"crisis above threshold", 0.31, 0, 0, analysis.RiskCritical},
		{"three concerns very negative", 0, -0.6, 3, analysis.RiskHigh},
		{"mildly negative no concerns", 0, -0.3, 0, analysis.RiskModerate},
		{"neutral no concerns", 0, 0, 0, analysis.RiskLow},

		// Boundaries are strict.
		{"crisis exactly 0.3", 0.3, 0, 0, analysis.RiskLow},
		{"compound exactly -0.5", 0, -0.5, 3, analysis.RiskModerate},
		{"only two concerns", 0, -0.9, 2, analysis.RiskModerate},
		{"compound exactly -0.2", 0, -0.2, 0, analysis.RiskLow},
		{"single concern positive", 0, 0.8, 1, analysis.RiskModerate},
		{"crisis wins over everything", 1, 0.9, 0, analysis.RiskCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analysis.Classify(tt.crisis, tt.compound, tt.concerns)
			if got != tt.want {
				t.Errorf("Classify(%v, %v, %d) = %q, want %q", tt.crisis, tt.compound, tt.concerns, got, tt.want)
			}
			if again := analysis.Classify(tt.crisis, tt.compound, tt.concerns); again != got {
				t.Errorf("Classify not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestRiskLevel_WantsFollowUp(t *testing.T) {
	want := map[analysis.RiskLevel]bool{
		analysis.RiskLow:      false,
		analysis.RiskModerate: true,
		analysis.RiskHigh:     true,
		analysis.RiskCritical: false,
	}
	for level, w := range want {
		if got := level.WantsFollowUp(); got != w {
			t.Errorf("%q.WantsFollowUp() = %v, want %v", level, got, w)
		}
	}
}

// ─── Detector ─────────────────────────────────────────────────────────────────

func TestDetect_CrisisScore(t *testing.T) {
	d := analysis.NewDetector(defaultLexicon(t))

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"none", "had a nice walk today", 0},
		{"one keyword", "I want to die", 1.0 / 8},
		{"repeated keyword counts once", "die die die", 1.0 / 8},
		{"three keywords", "suicide, death, I want to hurt myself", 3.0 / 8},
		{"substring match", "starting a new diet", 1.0 / 8},
		{"all keywords", "suicide kill myself end it all not worth living harm myself hurt myself die death", 1},
		{"uppercase", "SUICIDE", 1.0 / 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := d.Detect(tt.text)
			if got != tt.want {
				t.Errorf("crisis score = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("crisis score %v outside [0,1]", got)
			}
		})
	}
}

func TestDetect_CrisisScoreIsOneOnlyWhenAllPresent(t *testing.T) {
	lex := defaultLexicon(t)
	d := analysis.NewDetector(lex)

	all := strings.Join(lex.CrisisKeywords, " ")
	if got, _ := d.Detect(all); got != 1 {
		t.Fatalf("all keywords: got %v, want 1", got)
	}
	// Dropping any keyword that is not a substring of another must bring the
	// score below 1.
	for i, kw := range lex.CrisisKeywords {
		rest := append(append([]string{}, lex.CrisisKeywords[:i]...), lex.CrisisKeywords[i+1:]...)
		text := strings.Join(rest, " | ")
		if strings.Contains(text, kw) {
			continue
		}
		if got, _ := d.Detect(text); got >= 1 {
			t.Errorf("without %q: got %v, want < 1", kw, got)
		}
	}
}

func TestDetect_Concerns(t *testing.T) {
	d := analysis.NewDetector(defaultLexicon(t))

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"nothing", "the weather is fine", nil},
		{"depression", "I feel sad", []string{"depression"}},
		{"priority order not text order", "lonely and anxious and hopeless", []string{"depression", "anxiety", "relationships"}},
		{"shared keyword hits both", "so overwhelmed", []string{"anxiety", "stress"}},
		{"category added once", "sad, depressed, hopeless, empty", []string{"depression"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := d.Detect(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("concerns = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetect_CaseInsensitive(t *testing.T) {
	d := analysis.NewDetector(defaultLexicon(t))
	_, upper := d.Detect("I feel SAD and Hopeless")
	_, lower := d.Detect("i feel sad and hopeless")
	if !reflect.DeepEqual(upper, lower) {
		t.Errorf("concerns differ by case: %v vs %v", upper, lower)
	}
	if len(upper) == 0 || upper[0] != "depression" {
		t.Errorf("expected depression, got %v", upper)
	}
}

// ─── Analyzer ─────────────────────────────────────────────────────────────────

func TestAnalyze(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := analysis.NewAnalyzer(defaultLexicon(t), stubScorer{
		scores: sentiment.Scores{Compound: -0.7, Neg: 0.6, Neu: 0.4},
	}).WithClock(func() time.Time { return fixed })

	res, err := a.Analyze("I am sad, anxious and stressed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RiskLevel != analysis.RiskHigh {
		t.Errorf("risk = %q, want high", res.RiskLevel)
	}
	if want := []string{"depression", "anxiety", "stress"}; !reflect.DeepEqual(res.Concerns, want) {
		t.Errorf("concerns = %v, want %v", res.Concerns, want)
	}
	if !res.Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", res.Timestamp, fixed)
	}
	if res.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected a non-zero analysis ID")
	}
}

func TestAnalyze_NoConcernsIsEmptySlice(t *testing.T) {
	a := analysis.NewAnalyzer(defaultLexicon(t), stubScorer{})
	res, err := a.Analyze("hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Concerns == nil || len(res.Concerns) != 0 {
		t.Errorf("expected empty non-nil concerns, got %#v", res.Concerns)
	}
	if res.RiskLevel != analysis.RiskLow {
		t.Errorf("risk = %q, want low", res.RiskLevel)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	a := analysis.NewAnalyzer(defaultLexicon(t), sentiment.NewVADER())
	const text = "I can't sleep, I feel worthless and my family is worried"

	first, err := a.Analyze(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := a.Analyze(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.CrisisScore != second.CrisisScore ||
		first.Sentiment != second.Sentiment ||
		!reflect.DeepEqual(first.Concerns, second.Concerns) ||
		first.RiskLevel != second.RiskLevel {
		t.Errorf("analysis not idempotent:\n%+v\n%+v", first, second)
	}
	if first.ID == second.ID {
		t.Error("each call should get its own ID")
	}
}

func TestAnalyze_ScorerError(t *testing.T) {
	boom := errors.New("boom")
	a := analysis.NewAnalyzer(defaultLexicon(t), stubScorer{err: boom})
	if _, err := a.Analyze("anything"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped scorer error, got %v", err)
	}
}

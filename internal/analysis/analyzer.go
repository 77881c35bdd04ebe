// Package analysis turns a raw message into crisis, sentiment and concern
// signals and classifies the result into a RiskLevel. It holds no state
// between calls.
package analysis

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/mshauri-counselor-backend/internal/lexicon"
	"github.com/nyashahama/mshauri-counselor-backend/internal/sentiment"
)

// Result is the immutable output of one Analyze call. ID only correlates logs
// and escalation records; it is not derived from the text.
type Result struct {
	ID          uuid.UUID        `json:"-"`
	CrisisScore float64          `json:"crisis_score"`
	Sentiment   sentiment.Scores `json:"sentiment"`
	Concerns    []string         `json:"concerns"`
	RiskLevel   RiskLevel        `json:"risk_level"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Analyzer combines a Detector with a sentiment.Scorer.
type Analyzer struct {
	detector *Detector
	scorer   sentiment.Scorer
	now      func() time.Time
}

// NewAnalyzer wires the detector for lex to scorer.
func NewAnalyzer(lex *lexicon.Lexicon, scorer sentiment.Scorer) *Analyzer {
	return &Analyzer{
		detector: NewDetector(lex),
		scorer:   scorer,
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source. Intended for tests.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	a.now = now
	return a
}

// Analyze runs detection and sentiment scoring over text and classifies the
// outcome. The only error source is the sentiment scorer.
func (a *Analyzer) Analyze(text string) (Result, error) {
	scores, err := a.scorer.Score(text)
	if err != nil {
		return Result{}, fmt.Errorf("analysis: score sentiment: %w", err)
	}

	crisis, concerns := a.detector.Detect(text)
	if concerns == nil {
		concerns = []string{}
	}

	return Result{
		ID:          uuid.New(),
		CrisisScore: crisis,
		Sentiment:   scores,
		Concerns:    concerns,
		RiskLevel:   Classify(crisis, scores.Compound, len(concerns)),
		Timestamp:   a.now().UTC(),
	}, nil
}

// Package sentiment scores the emotional polarity of a message with the VADER
// lexicon-and-rule model.
package sentiment

import (
	"fmt"
	"math"
	"strings"

	"github.com/jonreiter/govader"
)

// Scores is the VADER polarity breakdown for one piece of text. Compound is a
// normalised aggregate in [-1, 1]; Pos, Neu and Neg are proportions in [0, 1].
type Scores struct {
	Compound float64 `json:"compound"`
	Pos      float64 `json:"pos"`
	Neu      float64 `json:"neu"`
	Neg      float64 `json:"neg"`
}

// Scorer is implemented by anything that can turn text into Scores.
// The analysis package depends on this interface, not on VADER directly, so
// tests can supply fixed scores.
type Scorer interface {
	Score(text string) (Scores, error)
}

// VADER wraps a govader analyzer. The analyzer only reads its lexicon after
// construction, so a single VADER is safe for concurrent use.
type VADER struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVADER builds the analyzer and its lexicon. Do this once at startup.
func NewVADER() *VADER {
	return &VADER{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score runs VADER over text. The text is passed through unmodified because
// capitalisation and punctuation carry signal for VADER. Blank text scores
// zero across the board.
func (v *VADER) Score(text string) (s Scores, err error) {
	if strings.TrimSpace(text) == "" {
		return Scores{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			s = Scores{}
			err = fmt.Errorf("sentiment: analyzer panic: %v", r)
		}
	}()

	raw := v.analyzer.PolarityScores(text)
	s = Scores{
		Compound: raw.Compound,
		Pos:      raw.Positive,
		Neu:      raw.Neutral,
		Neg:      raw.Negative,
	}
	if err := s.Validate(); err != nil {
		return Scores{}, err
	}
	return s, nil
}

// Validate reports an error if any component is NaN, infinite or outside its
// documented range.
func (s Scores) Validate() error {
	for name, v := range map[string]float64{
		"compound": s.Compound,
		"pos":      s.Pos,
		"neu":      s.Neu,
		"neg":      s.Neg,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("sentiment: %s is not finite", name)
		}
	}
	if s.Compound < -1 || s.Compound > 1 {
		return fmt.Errorf("sentiment: compound %.4f out of range [-1,1]", s.Compound)
	}
	for name, v := range map[string]float64{"pos": s.Pos, "neu": s.Neu, "neg": s.Neg} {
		if v < 0 || v > 1 {
			return fmt.Errorf("sentiment: %s %.4f out of range [0,1]", name, v)
		}
	}
	return nil
}

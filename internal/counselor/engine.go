// Package counselor is the engine facade the transports call. It validates
// input, runs message analysis and response composition, scores
// questionnaires, and reduces every failure to one of two error kinds.
//
// The engine is stateless between calls and safe for concurrent use once
// constructed.
package counselor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nyashahama/mshauri-counselor-backend/internal/analysis"
	"github.com/nyashahama/mshauri-counselor-backend/internal/assessment"
	"github.com/nyashahama/mshauri-counselor-backend/internal/lexicon"
	"github.com/nyashahama/mshauri-counselor-backend/internal/response"
	"github.com/nyashahama/mshauri-counselor-backend/internal/sentiment"
)

// Error kinds. Every error returned by Engine wraps exactly one of these.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal failure")
)

// Engine wires the analysis pipeline to the response composer.
type Engine struct {
	analyzer *analysis.Analyzer
	composer *response.Composer
	logger   *slog.Logger
}

// New builds an Engine over a validated lexicon. rnd may be nil to use the
// default random source.
func New(lex *lexicon.Lexicon, scorer sentiment.Scorer, rnd response.Rand, logger *slog.Logger) *Engine {
	return &Engine{
		analyzer: analysis.NewAnalyzer(lex, scorer),
		composer: response.NewComposer(lex, rnd),
		logger:   logger,
	}
}

// Analyze classifies a single message.
func (e *Engine) Analyze(message string) (analysis.Result, error) {
	if message == "" {
		return analysis.Result{}, fmt.Errorf("analyze: message is required: %w", ErrInvalidInput)
	}

	res, err := e.analyzer.Analyze(message)
	if err != nil {
		return analysis.Result{}, fmt.Errorf("analyze: %w: %w", ErrInternal, err)
	}

	e.logger.Debug("message analysed",
		"analysis_id", res.ID,
		"risk_level", res.RiskLevel,
		"crisis_score", res.CrisisScore,
		"concerns", res.Concerns,
	)
	return res, nil
}

// Chat analyses message and composes the reply. sessionID and userID are
// opaque JSON values copied onto the reply untouched.
func (e *Engine) Chat(message string, sessionID, userID json.RawMessage) (analysis.Result, response.Result, error) {
	res, err := e.Analyze(message)
	if err != nil {
		return analysis.Result{}, response.Result{}, err
	}

	reply := e.composer.Compose(res.RiskLevel, res.Concerns, res.CrisisScore, message)
	reply.SessionID = sessionID
	reply.UserID = userID
	return res, reply, nil
}

// EmergencyResources returns the static emergency directory. It never fails.
func (e *Engine) EmergencyResources() lexicon.Resources {
	return e.composer.EmergencyResources()
}

// Assess scores questionnaire responses.
func (e *Engine) Assess(responses map[string]map[string]int) (assessment.Result, error) {
	out, err := assessment.Score(responses)
	switch {
	case errors.Is(err, assessment.ErrNoResponses):
		return assessment.Result{}, fmt.Errorf("assess: %w: %w", ErrInvalidInput, err)
	case err != nil:
		return assessment.Result{}, fmt.Errorf("assess: %w: %w", ErrInternal, err)
	}

	e.logger.Debug("assessment scored",
		"total_score", out.TotalScore,
		"risk_level", out.RiskLevel,
	)
	return out, nil
}

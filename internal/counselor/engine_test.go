package counselor_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nyashahama/mshauri-counselor-backend/internal/analysis"
	"github.com/nyashahama/mshauri-counselor-backend/internal/counselor"
	"github.com/nyashahama/mshauri-counselor-backend/internal/lexicon"
	"github.com/nyashahama/mshauri-counselor-backend/internal/sentiment"
)

// ─── helpers ──────────────────────────────────────────────────────────────────

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubScorer struct {
	scores sentiment.Scores
	err    error
}

func (s stubScorer) Score(string) (sentiment.Scores, error) { return s.scores, s.err }

type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

func newEngine(t *testing.T, scorer sentiment.Scorer) *counselor.Engine {
	t.Helper()
	lex, err := lexicon.Default()
	if err != nil {
		t.Fatalf("lexicon.Default: %v", err)
	}
	return counselor.New(lex, scorer, firstRand{}, discardLogger())
}

// ─── Analyze ──────────────────────────────────────────────────────────────────

func TestAnalyze_EmptyMessage(t *testing.T) {
	e := newEngine(t, stubScorer{})
	if _, err := e.Analyze(""); !errors.Is(err, counselor.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
}

func TestAnalyze_WhitespaceMessageIsLow(t *testing.T) {
	e := newEngine(t, sentiment.NewVADER())
	for _, msg := range []string{"   ", "\n", " \t "} {
		res, err := e.Analyze(msg)
		if err != nil {
			t.Fatalf("Analyze(%q): %v", msg, err)
		}
		if res.RiskLevel != analysis.RiskLow || len(res.Concerns) != 0 {
			t.Errorf("Analyze(%q): risk=%q concerns=%v, want low with none", msg, res.RiskLevel, res.Concerns)
		}
		if res.Sentiment != (sentiment.Scores{}) {
			t.Errorf("Analyze(%q): sentiment = %+v, want zeros", msg, res.Sentiment)
		}
	}
}

func TestAnalyze_ScorerFailureIsInternal(t *testing.T) {
	e := newEngine(t, stubScorer{err: errors.New("analyzer panic")})
	_, err := e.Analyze("hello")
	if !errors.Is(err, counselor.ErrInternal) {
		t.Fatalf("got %v, want ErrInternal", err)
	}
	if errors.Is(err, counselor.ErrInvalidInput) {
		t.Error("error should not also be InvalidInput")
	}
}

func TestAnalyze_WithVADER(t *testing.T) {
	e := newEngine(t, sentiment.NewVADER())
	res, err := e.Analyze("I want to kill myself and hurt myself, I just want to die")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RiskLevel != analysis.RiskCritical {
		t.Errorf("risk = %q, want critical (crisis=%v)", res.RiskLevel, res.CrisisScore)
	}
	if res.Sentiment.Compound >= 0 {
		t.Errorf("expected negative compound, got %v", res.Sentiment.Compound)
	}
}

// ─── Chat ─────────────────────────────────────────────────────────────────────

func TestChat_EchoesIdentifiers(t *testing.T) {
	e := newEngine(t, stubScorer{})
	session := json.RawMessage(`"abc-123"`)
	user := json.RawMessage(`42`)

	_, reply, err := e.Chat("I feel anxious", session, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(reply.SessionID) != `"abc-123"` || string(reply.UserID) != `42` {
		t.Errorf("identifiers not echoed: session=%s user=%s", reply.SessionID, reply.UserID)
	}
	if !reply.FollowUp {
		t.Error("a single concern is moderate risk and should get a follow-up")
	}
}

func TestChat_CrisisReply(t *testing.T) {
	e := newEngine(t, stubScorer{})
	res, reply, err := e.Chat("suicide, death, I want to end it all", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RiskLevel != analysis.RiskCritical {
		t.Fatalf("risk = %q, want critical", res.RiskLevel)
	}
	if !reply.EmergencyContact || len(reply.Suggestions) != lexicon.CrisisSuggestionCount {
		t.Errorf("crisis reply: %+v", reply)
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	e := newEngine(t, stubScorer{})
	if _, _, err := e.Chat("", nil, nil); !errors.Is(err, counselor.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
	if _, reply, err := e.Chat("  ", nil, nil); err != nil || reply.Message == "" {
		t.Errorf("whitespace chat: reply=%+v err=%v", reply, err)
	}
}

// ─── EmergencyResources / Assess ──────────────────────────────────────────────

func TestEmergencyResources(t *testing.T) {
	e := newEngine(t, stubScorer{})
	res := e.EmergencyResources()
	if res.EmergencyServices.Police == "" || len(res.Helplines) == 0 {
		t.Errorf("unexpected resources: %+v", res)
	}
}

func TestAssess(t *testing.T) {
	e := newEngine(t, stubScorer{})

	if _, err := e.Assess(nil); !errors.Is(err, counselor.ErrInvalidInput) {
		t.Errorf("empty: got %v, want ErrInvalidInput", err)
	}

	out, err := e.Assess(map[string]map[string]int{"gad7": {"q1": 2, "q2": 2, "q3": 2, "q4": 2, "q5": 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.TotalScore != 10 || out.RiskLevel != "moderate" {
		t.Errorf("got total=%d risk=%q", out.TotalScore, out.RiskLevel)
	}
}

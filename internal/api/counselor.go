package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nyashahama/mshauri-counselor-backend/internal/analysis"
	"github.com/nyashahama/mshauri-counselor-backend/internal/assessment"
	"github.com/nyashahama/mshauri-counselor-backend/internal/counselor"
	"github.com/nyashahama/mshauri-counselor-backend/internal/escalation"
	"github.com/nyashahama/mshauri-counselor-backend/internal/lexicon"
	"github.com/nyashahama/mshauri-counselor-backend/internal/response"
)

// Client-facing error messages.
const (
	msgMessageRequired   = "Message is required"
	msgResponsesRequired = "Responses are required"
	msgAnalysisFailed    = "Analysis failed"
	msgChatFailed        = "Chat failed"
	msgAssessmentFailed  = "Assessment failed"
)

// ─── GET /api/health ──────────────────────────────────────────────────────────

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Timestamp: s.now(),
	})
}

// ─── POST /api/analyze ────────────────────────────────────────────────────────

type analyzeRequest struct {
	Message string          `json:"message"`
	UserID  json.RawMessage `json:"user_id"`
}

type analyzeResponse struct {
	Success   bool            `json:"success"`
	Analysis  analysis.Result `json:"analysis"`
	Response  response.Result `json:"response"`
	Timestamp time.Time       `json:"timestamp"`
}

// handleAnalyze classifies a message and returns the composed reply alongside
// the analysis. Identifiers are not echoed on this endpoint.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decode(w, r, &req) {
		return
	}

	res, reply, err := s.engine.Chat(req.Message, nil, nil)
	if err != nil {
		s.respondEngineErr(w, r, err, msgMessageRequired, msgAnalysisFailed)
		return
	}
	s.afterAnalysis(r, res, escalation.SessionRef(nil, req.UserID))

	respond(w, http.StatusOK, analyzeResponse{
		Success:   true,
		Analysis:  res,
		Response:  reply,
		Timestamp: s.now(),
	})
}

// ─── POST /api/chat ───────────────────────────────────────────────────────────

type chatRequest struct {
	Message   string          `json:"message"`
	SessionID json.RawMessage `json:"session_id"`
	UserID    json.RawMessage `json:"user_id"`
}

type chatResponse struct {
	Success   bool            `json:"success"`
	Response  response.Result `json:"response"`
	Analysis  analysis.Result `json:"analysis"`
	Timestamp time.Time       `json:"timestamp"`
}

// handleChat is the main conversational endpoint. session_id and user_id are
// opaque and copied onto the reply as sent.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}

	res, reply, err := s.engine.Chat(req.Message, req.SessionID, req.UserID)
	if err != nil {
		s.respondEngineErr(w, r, err, msgMessageRequired, msgChatFailed)
		return
	}
	s.afterAnalysis(r, res, escalation.SessionRef(req.SessionID, req.UserID))

	respond(w, http.StatusOK, chatResponse{
		Success:   true,
		Response:  reply,
		Analysis:  res,
		Timestamp: s.now(),
	})
}

// ─── GET /api/emergency ───────────────────────────────────────────────────────

type emergencyResponse struct {
	Success   bool              `json:"success"`
	Resources lexicon.Resources `json:"resources"`
	Timestamp time.Time         `json:"timestamp"`
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, emergencyResponse{
		Success:   true,
		Resources: s.engine.EmergencyResources(),
		Timestamp: s.now(),
	})
}

// ─── POST /api/assess ─────────────────────────────────────────────────────────

// Scores and Timestamp are sent by the web client and ignored.
type assessRequest struct {
	Responses map[string]json.RawMessage `json:"responses"`
	UserID    json.RawMessage            `json:"user_id"`
	Scores    json.RawMessage            `json:"scores"`
	Timestamp json.RawMessage            `json:"timestamp"`
}

type assessResponse struct {
	Success bool `json:"success"`
	assessment.Result
	Timestamp time.Time `json:"timestamp"`
}

// handleAssess scores PHQ-9 / GAD-7 questionnaire answers. Their item values
// must be JSON integers; other keys under responses are ignored.
func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if !decode(w, r, &req) {
		return
	}

	responses, err := assessment.ParseResponses(req.Responses)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid responses: "+err.Error())
		return
	}

	out, err := s.engine.Assess(responses)
	if err != nil {
		s.respondEngineErr(w, r, err, msgResponsesRequired, msgAssessmentFailed)
		return
	}
	s.metrics.ObserveAssessment(string(out.RiskLevel))

	respond(w, http.StatusOK, assessResponse{
		Success:   true,
		Result:    out,
		Timestamp: s.now(),
	})
}

// ─── HELPERS ──────────────────────────────────────────────────────────────────

// respondEngineErr maps the engine's two error kinds onto HTTP.
func (s *Server) respondEngineErr(w http.ResponseWriter, r *http.Request, err error, invalidMsg, internalMsg string) {
	if errors.Is(err, counselor.ErrInvalidInput) {
		respondErr(w, http.StatusBadRequest, invalidMsg)
		return
	}
	s.respondInternalErr(w, r, err, internalMsg)
}

// afterAnalysis records the analysis metric and escalates critical results.
// Escalation outcomes are logged by the escalator and never change the
// response.
func (s *Server) afterAnalysis(r *http.Request, res analysis.Result, sessionRef string) {
	s.metrics.ObserveAnalysis(string(res.RiskLevel))
	if outcome := s.escalator.Raise(r.Context(), res, sessionRef); outcome != "" {
		s.logger.Info("critical analysis escalated",
			"analysis_id", res.ID,
			"outcome", outcome,
			logField(r),
		)
	}
}

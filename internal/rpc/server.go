package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nyashahama/mshauri-counselor-backend/internal/analysis"
	"github.com/nyashahama/mshauri-counselor-backend/internal/assessment"
	"github.com/nyashahama/mshauri-counselor-backend/internal/counselor"
	"github.com/nyashahama/mshauri-counselor-backend/internal/escalation"
	"github.com/nyashahama/mshauri-counselor-backend/internal/metrics"
)

// Service implements CounselorServer on top of the engine. It applies the
// same validation, escalation and metrics as the HTTP handlers.
type Service struct {
	engine    *counselor.Engine
	escalator escalation.Escalator
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

var _ CounselorServer = (*Service)(nil)

// NewService constructs a Service.
func NewService(
	engine *counselor.Engine,
	escalator escalation.Escalator,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Service {
	return &Service{
		engine:    engine,
		escalator: escalator,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// NewServer builds a grpc.Server with the Counselor service and the standard
// health service registered.
func NewServer(svc *Service, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		loggingInterceptor(logger),
		recoveryInterceptor(logger),
	))
	s := grpc.NewServer(opts...)
	s.RegisterService(&ServiceDesc, svc)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return s
}

// ─── REQUESTS ─────────────────────────────────────────────────────────────────

type analyzeRequest struct {
	Message string          `json:"message"`
	UserID  json.RawMessage `json:"user_id"`
}

type chatRequest struct {
	Message   string          `json:"message"`
	SessionID json.RawMessage `json:"session_id"`
	UserID    json.RawMessage `json:"user_id"`
}

type assessRequest struct {
	Responses map[string]json.RawMessage `json:"responses"`
	UserID    json.RawMessage            `json:"user_id"`
	Scores    json.RawMessage            `json:"scores"`
	Timestamp json.RawMessage            `json:"timestamp"`
}

// ─── METHODS ──────────────────────────────────────────────────────────────────

func (s *Service) Analyze(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req analyzeRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}

	res, reply, err := s.engine.Chat(req.Message, nil, nil)
	if err != nil {
		return nil, s.engineErr(err, "Message is required", "Analysis failed")
	}
	s.afterAnalysis(ctx, res, escalation.SessionRef(nil, req.UserID))

	return encodeStruct(map[string]any{
		"success":   true,
		"analysis":  res,
		"response":  reply,
		"timestamp": s.now(),
	})
}

func (s *Service) Chat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req chatRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}

	res, reply, err := s.engine.Chat(req.Message, req.SessionID, req.UserID)
	if err != nil {
		return nil, s.engineErr(err, "Message is required", "Chat failed")
	}
	s.afterAnalysis(ctx, res, escalation.SessionRef(req.SessionID, req.UserID))

	return encodeStruct(map[string]any{
		"success":   true,
		"response":  reply,
		"analysis":  res,
		"timestamp": s.now(),
	})
}

func (s *Service) EmergencyResources(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return encodeStruct(map[string]any{
		"success":   true,
		"resources": s.engine.EmergencyResources(),
		"timestamp": s.now(),
	})
}

func (s *Service) Assess(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req assessRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}

	responses, err := assessment.ParseResponses(req.Responses)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid responses: %v", err)
	}

	out, err := s.engine.Assess(responses)
	if err != nil {
		return nil, s.engineErr(err, "Responses are required", "Assessment failed")
	}
	s.metrics.ObserveAssessment(string(out.RiskLevel))

	return encodeStruct(map[string]any{
		"success":         true,
		"scores":          out.Scores,
		"total_score":     out.TotalScore,
		"risk_level":      out.RiskLevel,
		"recommendations": out.Recommendations,
		"timestamp":       s.now(),
	})
}

// ─── HELPERS ──────────────────────────────────────────────────────────────────

func (s *Service) engineErr(err error, invalidMsg, internalMsg string) error {
	if errors.Is(err, counselor.ErrInvalidInput) {
		return status.Error(codes.InvalidArgument, invalidMsg)
	}
	s.logger.Error("rpc: internal error", "error", err)
	return status.Error(codes.Internal, internalMsg)
}

func (s *Service) afterAnalysis(ctx context.Context, res analysis.Result, sessionRef string) {
	s.metrics.ObserveAnalysis(string(res.RiskLevel))
	if outcome := s.escalator.Raise(ctx, res, sessionRef); outcome != "" {
		s.logger.Info("rpc: critical analysis escalated", "analysis_id", res.ID, "outcome", outcome)
	}
}

// decodeStruct round-trips in through JSON into dst, rejecting unknown fields
// the way the HTTP decoder does. Struct numbers are doubles, so integer
// fields accept 3 but reject 2.5.
func decodeStruct(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	raw, err := in.MarshalJSON()
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

// encodeStruct converts v to a Struct via its JSON encoding, so field names
// and formats match the HTTP responses exactly.
func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// ─── INTERCEPTORS ─────────────────────────────────────────────────────────────

// loggingInterceptor logs each call with method, code and duration.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// recoveryInterceptor turns a handler panic into codes.Internal.
func recoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("grpc: panic", "method", info.FullMethod, "panic", fmt.Sprint(p))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

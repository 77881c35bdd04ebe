package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soheilhy/cmux"

	"github.com/nyashahama/mshauri-counselor-backend/internal/api"
	"github.com/nyashahama/mshauri-counselor-backend/internal/cache"
	"github.com/nyashahama/mshauri-counselor-backend/internal/config"
	"github.com/nyashahama/mshauri-counselor-backend/internal/counselor"
	"github.com/nyashahama/mshauri-counselor-backend/internal/db"
	"github.com/nyashahama/mshauri-counselor-backend/internal/escalation"
	"github.com/nyashahama/mshauri-counselor-backend/internal/lexicon"
	"github.com/nyashahama/mshauri-counselor-backend/internal/metrics"
	"github.com/nyashahama/mshauri-counselor-backend/internal/notify"
	"github.com/nyashahama/mshauri-counselor-backend/internal/response"
	"github.com/nyashahama/mshauri-counselor-backend/internal/rpc"
	"github.com/nyashahama/mshauri-counselor-backend/internal/sentiment"
	"github.com/nyashahama/mshauri-counselor-backend/internal/store"
	"github.com/nyashahama/mshauri-counselor-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// Root context cancelled by OS signal. Worker and servers all respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// ── Engine ────────────────────────────────────────────────────────────────
	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return fmt.Errorf("lexicon: %w", err)
	}
	var rnd response.Rand
	if cfg.ResponseSeed != 0 {
		rnd = response.SeededRand(cfg.ResponseSeed)
		logger.Info("engine: using seeded response selection", "seed", cfg.ResponseSeed)
	}
	engine := counselor.New(lex, sentiment.NewVADER(), rnd, logger)
	logger.Info("engine ready", "categories", len(lex.Categories), "crisis_keywords", len(lex.CrisisKeywords))

	collector := metrics.New()

	// ── Escalation ledger ─────────────────────────────────────────────────────
	var ledger store.Ledger
	if cfg.DatabaseURL != "" {
		pool, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if err := store.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		ledger = store.New(pool, db.New(pool))
		logger.Info("escalations: postgres ledger")
	} else {
		ledger = store.NewMemory()
		logger.Warn("escalations: DATABASE_URL not set, ledger is in memory")
	}

	// ── De-duplication ────────────────────────────────────────────────────────
	var deduper cache.Deduper
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		deduper = cache.NewRedisDeduper(rdb)
		logger.Info("escalations: redis de-duplication", "addr", cfg.RedisAddr)
	} else {
		deduper = cache.NewMemoryDeduper()
	}

	// ── Alerts (Resend) ───────────────────────────────────────────────────────
	var sender notify.Sender
	if cfg.ResendAPIKey != "" {
		sender = notify.NewResendClient(cfg.ResendAPIKey, cfg.AlertEmailTo, cfg.EmailFromAddr, cfg.EmailFromName)
	} else {
		sender = notify.NewLogSender(logger)
		logger.Warn("escalations: RESEND_API_KEY not set, alerts go to the log")
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	runnerCfg := worker.RunnerConfig{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
		JobTimeout:   cfg.JobTimeout,
		MaxRetries:   cfg.MaxRetries,
	}
	job := worker.NewJob(ledger, sender, runnerCfg.StaleAfter(), logger)
	runner := worker.NewRunner(job, ledger, runnerCfg, collector, logger)

	raiser := escalation.NewRaiser(ledger, deduper, runner, collector, cfg.EscalationDedupeWindow, logger)

	// ── HTTP + gRPC ───────────────────────────────────────────────────────────
	handler := api.NewServer(engine, raiser, collector, api.Config{
		Env:               cfg.Env,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RequestTimeout:    cfg.RequestTimeout,
	}, logger)

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	grpcSrv := rpc.NewServer(rpc.NewService(engine, raiser, collector, logger), logger)

	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	// gRPC and HTTP share the port; cmux routes on the HTTP/2 content-type.
	mux := cmux.New(lis)
	grpcL := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpL := mux.Match(cmux.Any())

	workerDone := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(workerDone)
	}()

	serverErr := make(chan error, 3)
	go func() {
		if err := grpcSrv.Serve(grpcL); err != nil && !isClosed(err) {
			serverErr <- fmt.Errorf("grpc: %w", err)
		}
	}()
	go func() {
		if err := srv.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) && !isClosed(err) {
			serverErr <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		if err := mux.Serve(); err != nil && !isClosed(err) {
			serverErr <- fmt.Errorf("cmux: %w", err)
		}
	}()
	logger.Info("server listening", "addr", lis.Addr().String())

	// Block until either a signal arrives or a server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		stop()
		<-workerDone
		return err
	}

	// Give in-flight requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcStopped := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(grpcStopped)
	}()
	select {
	case <-grpcStopped:
	case <-shutdownCtx.Done():
		grpcSrv.Stop()
	}
	mux.Close()

	<-workerDone
	logger.Info("shutdown complete")
	return nil
}

// isClosed reports whether err only says the listener was closed during
// shutdown.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, cmux.ErrListenerClosed) ||
		errors.Is(err, cmux.ErrServerClosed)
}

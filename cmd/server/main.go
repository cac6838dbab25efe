package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joyfill/joydoc"
	"github.com/joyfill/joydoc/factory"
	"github.com/joyfill/joydoc/internal/metrics"
	"github.com/joyfill/joydoc/internal/schemagen"
	"github.com/joyfill/joydoc/internal/store"
	"go.uber.org/zap"
)

// reportStore is the part of *store.ReportStore the server uses.
type reportStore interface {
	Save(ctx context.Context, r *store.Report) error
	Get(ctx context.Context, id uuid.UUID) (*store.Report, error)
	ListRecent(ctx context.Context, limit int) ([]*store.Report, error)
	Health(ctx context.Context, timeout time.Duration) error
}

// Server serves the validation API.
type Server struct {
	validator *joydoc.Validator
	strict    *joydoc.Validator
	reports   reportStore
	recorder  *metrics.Recorder
	schema    []byte
	cfg       *joydoc.Config
	logger    *zap.Logger
	mux       *http.ServeMux
}

// NewServer creates a Server. reports may be nil when the store is disabled.
func NewServer(cfg *joydoc.Config, recorder *metrics.Recorder, reports reportStore, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.L()
	}
	if recorder == nil {
		recorder = metrics.NewRecorder(joydoc.MetricsConfig{}, nil)
	}
	schema, err := schemagen.Compile(schemagen.Options{})
	if err != nil {
		return nil, err
	}
	schemaJSON, err := schemagen.Marshal(schema)
	if err != nil {
		return nil, err
	}

	strictCfg := *cfg
	strictCfg.Validation.Strict = true

	s := &Server{
		validator: factory.NewValidatorWithConfig(cfg, logger, joydoc.WithObserver(recorder)),
		strict:    factory.NewValidatorWithConfig(&strictCfg, logger, joydoc.WithObserver(recorder)),
		reports:   reports,
		recorder:  recorder,
		schema:    schemaJSON,
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.RegisterRoutes()
	return s, nil
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("POST /api/v1/validate", s.handleValidate)
	s.mux.HandleFunc("POST /api/v1/validate/schema", s.handleValidateSchema)
	s.mux.HandleFunc("POST /api/v1/validate/logic", s.handleValidateLogic)
	s.mux.HandleFunc("GET /api/v1/schema", s.handleGetSchema)
	s.mux.HandleFunc("GET /api/v1/reports", s.handleListReports)
	s.mux.HandleFunc("GET /api/v1/reports/{id}", s.handleGetReport)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		s.mux.Handle("GET "+s.cfg.Metrics.Path, s.recorder.Handler())
	}
}

// Handler returns the mux wrapped with request ids and metrics.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.instrument(s.mux))
}

// Start serves on port until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Sugar().Infow("starting server", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	cfg, err := joydoc.LoadConfigWithEnvOverrides(getEnv("JOYDOC_CONFIG", ""))
	if err != nil {
		panic(err)
	}

	logger, err := factory.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder(cfg.Metrics, nil)

	var reports reportStore
	if cfg.Store.Enabled {
		rs, pool, err := factory.NewReportStoreWithConfig(ctx, cfg, logger)
		if err != nil {
			sugar.Fatalf("failed to open report store: %v", err)
		}
		defer pool.Close()
		if err := rs.EnsureSchema(ctx); err != nil {
			sugar.Fatalf("failed to create report table: %v", err)
		}
		reports = rs
	}

	server, err := NewServer(cfg, recorder, reports, logger)
	if err != nil {
		sugar.Fatalf("failed to create server: %v", err)
	}

	port := getEnvInt("PORT", cfg.Server.Port)
	if err := server.Start(ctx, port); err != nil {
		sugar.Fatalf("server error: %v", err)
	}
	sugar.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/radpilot/radpilot/internal/config"
	"github.com/radpilot/radpilot/internal/domain/clinical"
	"github.com/radpilot/radpilot/internal/domain/imaging"
	"github.com/radpilot/radpilot/internal/domain/questionnaire"
	"github.com/radpilot/radpilot/internal/domain/report"
	"github.com/radpilot/radpilot/internal/domain/reporting"
	"github.com/radpilot/radpilot/internal/platform/auth"
	"github.com/radpilot/radpilot/internal/platform/blobstore"
	"github.com/radpilot/radpilot/internal/platform/db"
	"github.com/radpilot/radpilot/internal/platform/events"
	"github.com/radpilot/radpilot/internal/platform/measures"
	"github.com/radpilot/radpilot/internal/platform/middleware"
	"github.com/radpilot/radpilot/internal/platform/openapi"
	"github.com/radpilot/radpilot/internal/platform/sandbox"
	"github.com/radpilot/radpilot/internal/platform/signature"
	"github.com/radpilot/radpilot/internal/platform/websocket"
)

// server is the assembled HTTP application and the resources it owns.
type server struct {
	echo      *echo.Echo
	pool      *pgxpool.Pool
	publisher events.Publisher
	logger    zerolog.Logger
}

func (s *server) Close() {
	if err := s.publisher.Close(); err != nil {
		s.logger.Error().Err(err).Msg("failed to close event publisher")
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer(ctx context.Context) error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer srv.Close()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = srv.echo.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.echo.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// buildServer wires storage, services, middleware and routes. Without
// DATABASE_URL everything lives in memory; without KAFKA_BROKERS finalized
// report events are logged. Events also go to websocket subscribers.
func buildServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*server, error) {
	srv := &server{logger: logger}

	var (
		patients clinical.PatientRepository
		studies  clinical.StudyRepository
		reports  report.Repository
	)
	if cfg.UsePostgres() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		srv.pool = pool
		patients = clinical.NewPatientRepoPG(pool)
		studies = clinical.NewStudyRepoPG(pool)
		reports = report.NewRepoPG(pool)
		logger.Info().Msg("connected to database")
	} else {
		patients = clinical.NewPatientRepoMemory()
		studies = clinical.NewStudyRepoMemory()
		reports = report.NewMemoryRepo()
		logger.Warn().Msg("DATABASE_URL not set; using in-memory storage")
	}

	var broker events.Publisher
	if cfg.UseKafka() {
		broker = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing report events to kafka")
	} else {
		broker = events.NewLogPublisher(logger)
	}
	hub := websocket.NewHub(logger)
	srv.publisher = events.Fanout{broker, hub}

	signer, err := signature.NewSigner([]byte(cfg.SigningKey))
	if err != nil {
		srv.Close()
		return nil, err
	}

	clinicalSvc := clinical.NewService(patients, studies)
	reportSvc := report.NewService(reports, signer)
	reportSvc.UseSubjects(clinicalSvc)
	reportingSvc, err := reporting.NewService(clinicalSvc, reportSvc, signer, srv.publisher, reporting.Config{
		PreviewCacheSize: cfg.PreviewCacheSize,
		ReportBaseURL:    cfg.ReportBaseURL,
	}, logger)
	if err != nil {
		srv.Close()
		return nil, err
	}
	if srv.pool != nil {
		reportingSvc.UseTransactions(reporting.TxFunc(db.Transactor(srv.pool)))
	}
	imagingSvc := imaging.NewService(blobstore.NewInMemoryBlobStore(), clinicalSvc, logger)
	seeder := sandbox.NewSeeder(clinicalSvc, logger)

	if cfg.SeedDemoData {
		if _, err := seeder.Seed(ctx); err != nil {
			srv.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "If-None-Match", middleware.RequestIDHeader, auth.HeaderRadiologistID, auth.HeaderRadiologistName},
	}))
	e.Use(auth.RadiologistMiddleware(auth.Radiologist{ID: cfg.RadiologistID, Name: cfg.RadiologistName}))
	e.Use(middleware.SecurityHeaders(middleware.SecurityConfig{HSTS: cfg.TLSEnabled, DocsPrefix: "/api/v1/docs"}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.Audit(logger))

	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 || rateLimitCfg.BurstSize <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	fhirGroup.Use(middleware.RateLimit(rateLimitCfg))

	clinical.NewHandler(clinicalSvc).RegisterRoutes(apiV1, fhirGroup)
	report.NewHandler(reportSvc).RegisterRoutes(apiV1, fhirGroup)
	reporting.NewHandler(reportingSvc).RegisterRoutes(apiV1)
	questionnaire.NewHandler().RegisterRoutes(apiV1)
	imaging.NewHandler(imagingSvc).RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)
	openapi.NewGenerator(e, version, cfg.ReportBaseURL).RegisterRoutes(apiV1)
	if !cfg.IsProduction() {
		sandbox.NewHandler(seeder).RegisterRoutes(apiV1)
	}
	if srv.pool != nil {
		measures.NewHandler(srv.pool).RegisterRoutes(apiV1)
	}

	e.GET("/health", db.HealthHandler(srv.pool, version))

	srv.echo = e
	return srv, nil
}

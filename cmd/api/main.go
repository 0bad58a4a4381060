package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"boothnik/internal/api"
	"boothnik/internal/config"
	"boothnik/internal/database"
	"boothnik/internal/domain"
	"boothnik/internal/events"
	"boothnik/internal/export"
	"boothnik/internal/google"
	"boothnik/internal/identity"
	"boothnik/internal/logging"
	"boothnik/internal/metrics"
	"boothnik/internal/models"
	"boothnik/internal/notify"
	"boothnik/internal/repository"
	"boothnik/internal/service"
	"boothnik/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	booths, err := loadBooths(cfg, &logger)
	if err != nil {
		return err
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var proposals domain.ProposalStore
	if redisClient != nil {
		proposals = repository.NewRedisProposalStore(redisClient)
	} else {
		logger.Warn().Msg("redis unavailable, proposals held in memory")
		proposals = repository.NewMemoryProposalStore()
	}

	notifier := initNotifier(cfg, &logger)
	notifyWorker := worker.NewNotifyWorker(db, notifier, redisClient, worker.RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}, log.Default())
	go notifyWorker.Start(ctx)

	sweeper := worker.NewReminderSweeper(db, notifyWorker, redisClient, models.ReminderHour, log.Default())
	go sweeper.Start(ctx)

	resolver, err := buildResolver(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("build identity resolver")
		return err
	}

	eventBus := events.NewEventBus()

	svc := service.NewReservationService(
		db,
		proposals,
		notifyWorker,
		eventBus,
		resolver,
		booths,
		cfg.Hours,
		cfg.Booking.HorizonDays,
		time.Duration(cfg.Booking.ProposalTTLSeconds)*time.Second,
		&logger,
	)

	if sheetsService := initGoogleSheets(cfg, &logger); sheetsService != nil {
		subscribeScheduleEvents(ctx, eventBus, svc, sheetsService, &logger)
	}

	exporter := export.NewExporter(cfg.Exports.Path, &logger)
	httpServer := api.NewHTTPServer(cfg.API, svc, exporter)

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func loadBooths(cfg *config.Config, logger *zerolog.Logger) ([]models.Booth, error) {
	boothsPath := os.Getenv("BOOTHS_PATH")
	if boothsPath == "" {
		boothsPath = "configs/booths.yaml"
	}
	boothsData, err := os.ReadFile(boothsPath)
	if err != nil {
		logger.Error().Err(err).Str("booths_path", boothsPath).Msg("read booth catalog")
		return nil, err
	}

	var boothsConfig struct {
		Booths []models.Booth `yaml:"booths"`
	}
	if err := yaml.Unmarshal(boothsData, &boothsConfig); err != nil {
		logger.Error().Err(err).Str("booths_path", boothsPath).Msg("parse booth catalog")
		return nil, err
	}

	if err := cfg.ValidateBooths(boothsConfig.Booths); err != nil {
		logger.Error().Err(err).Msg("booth catalog validation failed")
		return nil, err
	}
	return boothsConfig.Booths, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("create exports directory")
			return err
		}
	}
	return nil
}

func buildResolver(cfg *config.Config) (*identity.Resolver, error) {
	colleges := make(map[string]identity.College, len(cfg.Colleges))
	for _, col := range cfg.Colleges {
		colleges[col.Code] = identity.College{Code: col.Code, Name: col.Name}
	}
	return identity.NewResolver(cfg.Identity.Pattern, cfg.Identity.CollegeCharIndex, colleges)
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if cfg.Notify.WebhookURL != "" {
		return notify.NewWebhookNotifier(cfg.Notify.WebhookURL, logger)
	}
	logger.Warn().Msg("notify webhook not configured, notifications go to the log")
	return notify.NewLogNotifier(logger)
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.ScheduleSpreadsheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.CredentialsFile, cfg.Google.ScheduleSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

// subscribeScheduleEvents republishes the affected day to the schedule
// spreadsheet whenever a reservation changes.
func subscribeScheduleEvents(
	ctx context.Context,
	bus *events.EventBus,
	svc *service.ReservationService,
	sheets *google.SheetsService,
	logger *zerolog.Logger,
) {
	handler := func(ev *events.Event) error {
		var payload events.ReservationEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}

		date, err := time.Parse(models.DateLayout, payload.Date)
		if err != nil {
			logger.Error().Err(err).Str("date", payload.Date).Msg("event bus: bad date in payload")
			return nil
		}

		reservations, err := svc.ListByDate(ctx, date)
		if err != nil {
			logger.Error().Err(err).Str("date", payload.Date).Msg("event bus: load day reservations")
			return nil
		}

		if err := sheets.ReplaceScheduleSheet(ctx, date, google.BuildScheduleRows(reservations)); err != nil {
			logger.Error().Err(err).Str("date", payload.Date).Msg("event bus: publish schedule sheet")
		}
		return nil
	}

	bus.Subscribe(events.EventReservationCommitted, handler)
	bus.Subscribe(events.EventReservationCancelled, handler)
	bus.Subscribe(events.EventReservationUpdated, handler)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

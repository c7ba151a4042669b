package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gymbody/internal/analytics"
	"gymbody/internal/api"
	"gymbody/internal/assistant"
	"gymbody/internal/auth"
	"gymbody/internal/booking"
	"gymbody/internal/catalog"
	"gymbody/internal/config"
	"gymbody/internal/database"
	"gymbody/internal/domain"
	"gymbody/internal/events"
	"gymbody/internal/google"
	"gymbody/internal/incidents"
	"gymbody/internal/logging"
	"gymbody/internal/members"
	"gymbody/internal/metrics"
	"gymbody/internal/models"
	"gymbody/internal/notify"
	"gymbody/internal/repository"
	"gymbody/internal/trainers"
	"gymbody/internal/wellness"
	"gymbody/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
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
		defer (func(c io.Closer) { _ = c.Close() })(closer)
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

	metrics.Register()

	redisClient, stateRepo := initState(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	eventBus := events.NewEventBus()
	eventBus.OnError(func(ev *events.Event, err error) {
		logger.Warn().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})
	notifier := notify.NewDispatcher(initNotifier(cfg, &logger), cfg.Telegram.QueueSize, cfg.Telegram.Timeout, logging.Component(&logger, "notify"))
	go notifier.Run(ctx)
	notify.Subscribe(eventBus, notifier)

	sheetsWorker := initSheetsWorker(ctx, cfg, db, redisClient, &logger)

	catalogService := catalog.NewService(db, cfg.Gyms, cfg.Schedule.SafetyLimit, newRand(cfg.Schedule.Seed), logging.Component(&logger, "catalog"))
	if err := catalogService.Refresh(ctx); err != nil {
		logger.Error().Err(err).Msg("initial schedule refresh")
		return err
	}
	go catalogService.Run(ctx, cfg.Schedule.RefreshEvery)

	var syncer domain.SyncWorker
	if sheetsWorker != nil {
		syncer = sheetsWorker
	}
	bookingService := booking.NewService(db, catalogService, stateRepo, eventBus, syncer, logging.Component(&logger, "booking"))

	memberService := members.NewService(db, notifier, eventBus, logging.Component(&logger, "members"))
	if _, err := memberService.Seed(ctx, cfg.Members); err != nil {
		logger.Error().Err(err).Msg("seed members")
		return err
	}

	assistantService, err := initAssistant(ctx, cfg, stateRepo, &logger)
	if err != nil {
		return err
	}
	wellnessService := wellness.NewService(db, bookingService, assistantService, logging.Component(&logger, "wellness"))
	authService := auth.NewService(cfg.Accounts, cfg.API.Auth.TokenTTL, logging.Component(&logger, "auth"))
	incidentService := incidents.NewService(db, eventBus, logging.Component(&logger, "incidents"))
	trainerService := trainers.NewService(db, db, db, notifier, eventBus, catalogService, logging.Component(&logger, "trainers"))
	analyticsService := analytics.NewService(db, db, catalogService, logging.Component(&logger, "analytics"))

	if cfg.Backup.Enabled {
		snapshots := database.NewSnapshotter(cfg.Database.Path, cfg.Backup, logging.Component(&logger, "snapshots"))
		go snapshots.Run(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	svc := api.Services{
		Auth:      authService,
		Catalog:   catalogService,
		Booking:   bookingService,
		Members:   memberService,
		Wellness:  wellnessService,
		Assistant: assistantService,
		Incidents: incidentService,
		Trainers:  trainerService,
		Analytics: analyticsService,
	}
	return startServers(ctx, cfg, svc, &logger)
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
	logger := baseLogger.With().Str("component", "main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("create export directory")
		return err
	}
	return nil
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed>>1)))
}

// initState keeps pending confirmations and chat rate limits in redis, falling back
// to memory while redis is down.
func initState(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.StateRepository) {
	ttl := time.Duration(models.DefaultStateTTL) * time.Second
	fallback := repository.NewMemoryStateRepository(ttl)
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil, fallback
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, starting on memory state")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	primary := repository.NewRedisStateRepository(client, ttl)
	return client, repository.NewFailoverStateRepository(primary, fallback, logging.Component(logger, "state"))
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if !cfg.Telegram.Enabled {
		return notify.NewLogNotifier(logging.Component(logger, "notify"))
	}
	bot, err := notify.NewBot(cfg.Telegram.BotToken, cfg.Telegram.Debug, cfg.Telegram.Timeout)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, notifications go to the log")
		return notify.NewLogNotifier(logging.Component(logger, "notify"))
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram connected")
	return notify.NewTelegramNotifier(bot, cfg.Telegram.StaffChatID, logging.Component(logger, "notify"))
}

func initSheetsWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) *worker.SheetsWorker {
	if !cfg.Google.SheetsEnabled() {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingSpreadSheetID, cfg.Google.SheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}
	logger.Info().Str("sheet", cfg.Google.SheetName).Msg("google sheets connected")

	w := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.DefaultBackoff, logging.Component(logger, "sheets"))
	go w.Start(ctx)
	return w
}

func initAssistant(ctx context.Context, cfg *config.Config, state domain.StateRepository, logger *zerolog.Logger) (*assistant.Service, error) {
	opts := assistant.Options{
		RateLimit:  cfg.AI.RateLimit,
		RateWindow: time.Duration(cfg.AI.RateWindow) * time.Second,
		RenderHTML: cfg.AI.RenderHTML,
	}
	chatLogger := logging.Component(logger, "assistant")

	if !cfg.AI.Enabled || cfg.AI.APIKey == "" {
		logger.Info().Msg("assistant disabled, chat answers with the offline message")
		return assistant.NewService(nil, state, opts, chatLogger), nil
	}
	model, err := assistant.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		logger.Error().Err(err).Msg("init assistant model")
		return nil, err
	}
	return assistant.NewService(model, state, opts, chatLogger), nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func startServers(ctx context.Context, cfg *config.Config, svc api.Services, logger *zerolog.Logger) error {
	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		var err error
		grpcServer, err = api.NewGRPCServer(&cfg.API, svc, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	var httpServer *api.HTTPServer
	if cfg.API.HTTP.Enabled {
		httpServer = api.NewHTTPServer(cfg.API, svc, logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	} else {
		logger.Warn().Msg("HTTP API is disabled in config")
	}

	logger.Info().
		Bool("http", httpServer != nil).
		Int("http_port", cfg.API.HTTP.Port).
		Bool("grpc", grpcServer != nil).
		Int("gyms", len(cfg.Gyms)).
		Msg("GymBody started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown")
		}
	}

	logger.Info().Msg("Shutdown complete.")
	return nil
}

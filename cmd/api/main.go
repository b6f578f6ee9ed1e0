package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rungroj/internal/api"
	"rungroj/internal/auth"
	"rungroj/internal/config"
	"rungroj/internal/database"
	"rungroj/internal/domain"
	"rungroj/internal/events"
	"rungroj/internal/geocode"
	"rungroj/internal/google"
	"rungroj/internal/location"
	"rungroj/internal/logging"
	"rungroj/internal/metrics"
	"rungroj/internal/notify"
	"rungroj/internal/repository"
	"rungroj/internal/service"
	"rungroj/internal/store"
	"rungroj/internal/worker"

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
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The local database always backs the sheets sync queue; with the
	// sqlite backend it is also the reservation store.
	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	st := initStore(cfg, db, redisClient, &logger)
	drafts := initDrafts(cfg, redisClient, &logger)

	branches, err := location.NewBranchTable(cfg.Branches)
	if err != nil {
		return fmt.Errorf("branches: %w", err)
	}

	bus := events.NewBus(&logger)
	notifier := initNotifier(cfg, &logger)
	syncWorker := initSheetsWorker(ctx, cfg, db, redisClient, &logger)

	reservations := service.NewReservationService(st, bus, notifier, syncWorker, &logger)
	reservations.SetNotifyTimeout(cfg.Telegram.Timeout)
	defer reservations.Drain()

	checks := map[string]api.ReadinessCheck{"store": st.Ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return repository.Ping(ctx, redisClient) }
	}

	httpServer, err := api.NewHTTPServer(cfg.API, api.Dependencies{
		Store:        st,
		Drafts:       drafts,
		Events:       bus,
		Geocoder:     geocode.NewClient(cfg.Geocode, &logger),
		Branches:     branches,
		Reservations: reservations,
		Verifier:     auth.NewVerifier(cfg.Auth),
		Payment:      cfg.Payment,
		Location:     cfg.Booking.Location(),
		LoginPath:    cfg.Auth.LoginPath,
		Checks:       checks,
		Logger:       &logger,
	})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, checks, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	if cfg.Store.Backend == config.StoreBackendSQLite && cfg.Store.Backup.Enabled {
		go database.NewBackupService(db, cfg.Store.SQLitePath, cfg.Store.Backup, &logger).Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
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

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	path := cfg.Store.SQLitePath
	if path == "" {
		path = "data/rungroj.db"
	}
	db, err := database.NewDB(path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", path).Msg("init database")
		return nil, err
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initStore(cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) domain.Store {
	if cfg.Store.Backend != config.StoreBackendRemote {
		logger.Info().Str("path", cfg.Store.SQLitePath).Msg("using sqlite store")
		return db
	}

	client := store.NewClient(cfg.Store, logger)
	if redisClient != nil {
		client.UseRedisCache(redisClient, cfg.Store.CatalogCacheTTL)
	}
	logger.Info().Str("base_url", cfg.Store.BaseURL).Msg("using remote store")
	return client
}

func initDrafts(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.DraftRepository {
	memory := repository.NewMemoryDraftRepository(cfg.Booking.DraftTTL)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverDraftRepository(
		repository.NewRedisDraftRepository(redisClient, cfg.Booking.DraftTTL),
		memory,
		logger,
	)
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.AdminChatIDs) == 0 {
		return nil
	}
	bot, err := notify.NewBotSender(cfg.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without admin notifications")
		return nil
	}
	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(cfg.Telegram.AdminChatIDs)).Msg("telegram connected")
	return notify.NewTelegramNotifier(bot, cfg.Telegram.AdminChatIDs, logger)
}

func initSheetsWorker(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) domain.SyncWorker {
	if cfg.Google.CredentialsFile == "" || cfg.Google.ReservationSpreadsheetID == "" {
		return nil
	}

	sheets, err := google.NewSheetsService(ctx, cfg.Google)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheets.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	if err := sheets.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("sheets row cache warm-up failed")
	}

	w := worker.NewSheetsWorker(db, sheets, redisClient, worker.SyncBackoff{}, logger)
	go w.Start(ctx)

	logger.Info().Msg("google sheets connected")
	return w
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
		go grpcServer.Watch(ctx, 15*time.Second)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

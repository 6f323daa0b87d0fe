package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatdesk/internal/auth"
	"chatdesk/internal/bot"
	"chatdesk/internal/config"
	"chatdesk/internal/database"
	"chatdesk/internal/eventlog"
	"chatdesk/internal/handlers"
	"chatdesk/internal/limiter"
	"chatdesk/internal/metrics"
	"chatdesk/internal/middleware"
	"chatdesk/internal/realtime"
	"chatdesk/internal/repositories"
	"chatdesk/internal/services"
	"chatdesk/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// =========================================================================
	// Load configuration
	// =========================================================================
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// =========================================================================
	// Logger
	// =========================================================================
	log, err := logger.NewWithService(cfg.Logging.Level, cfg.Logging.Format, cfg.App.Name)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting server",
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
		zap.String("storage", cfg.Database.Driver),
	)

	m := metrics.New()

	// =========================================================================
	// Storage
	// =========================================================================
	repos, ping, closeStorage, err := openStorage(cfg, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer closeStorage()

	// =========================================================================
	// Realtime publisher (Centrifugo) and event log (Kafka)
	// =========================================================================
	var publisher realtime.Publisher
	if cfg.Centrifugo.URL != "" && cfg.Centrifugo.APIKey != "" {
		publisher = realtime.NewCentrifugoClient(cfg.Centrifugo.URL, cfg.Centrifugo.APIKey, log)
		log.Info("centrifugo publisher initialized", zap.String("url", cfg.Centrifugo.URL))
	} else {
		publisher = realtime.NewNoopPublisher()
		log.Warn("centrifugo not configured, using noop publisher")
	}

	var sink eventlog.Sink
	if cfg.Kafka.Enabled() {
		sink = eventlog.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		log.Info("kafka event log initialized",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	} else {
		sink = eventlog.NewNoopSink()
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn("failed to close event log", zap.Error(err))
		}
	}()

	// =========================================================================
	// Rate limiter (Redis, optional)
	// =========================================================================
	var limiterManager *limiter.Manager
	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := limiter.NewRedisClient(ctx, cfg.Redis.URL)
		cancel()
		if err != nil {
			log.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			limiterManager = limiter.NewManager(rdb, limiter.FixedWindowStrategy{}, cfg.App.Name+":ratelimit")
			log.Info("rate limiter initialized",
				zap.Int("limit", cfg.RateLimit.Limit),
				zap.Duration("window", cfg.RateLimit.Window),
			)
		}
	}

	// =========================================================================
	// Knowledge matcher and services
	// =========================================================================
	responder := bot.NewResponder(repos.Knowledge, bot.NewMatcher(log), bot.NewResponseBuilder(""), log)

	router := services.NewRouter(repos, cfg.Chat.DefaultDepartment, m, log)

	analyticsService := services.NewAnalyticsService(repos.Snapshots, cfg.Analytics, m, log)
	sessionService := services.NewSessionService(repos, router, responder, publisher, sink, cfg.Chat, m, log, analyticsService)
	departmentService := services.NewDepartmentService(repos, analyticsService, log)
	agentService := services.NewAgentService(repos, log)
	knowledgeService := services.NewKnowledgeService(repos.Knowledge, responder, log)

	log.Info("services initialized")

	// =========================================================================
	// Handlers
	// =========================================================================
	jwtService := auth.NewJWTService(cfg.JWT)

	h := &handlers.Handlers{
		Chat:        handlers.NewChatHandler(sessionService, log),
		AdminChat:   handlers.NewAdminChatHandler(sessionService, analyticsService, log),
		Departments: handlers.NewDepartmentHandler(departmentService, log),
		Agents:      handlers.NewAgentHandler(agentService, log),
		Knowledge:   handlers.NewKnowledgeHandler(knowledgeService, log),
		Auth:        handlers.NewAuthHandler(),
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.Database.Driver, ping, m.Handler()),
	}

	// =========================================================================
	// Gin router
	// =========================================================================
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.Logging(log, m))
	engine.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	h.Register(engine,
		middleware.Auth(jwtService),
		middleware.RateLimit(limiterManager, "chat", cfg.RateLimit.Limit, cfg.RateLimit.Window, log),
	)

	// =========================================================================
	// HTTP server with graceful shutdown
	// =========================================================================
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", zap.Int("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
	}
	log.Info("server exited")
}

// openStorage selects the repositories for the configured driver
func openStorage(cfg *config.Config, log *zap.Logger) (*repositories.Repositories, handlers.PingFunc, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return repositories.NewMemoryRepositories(), nil, func() {}, nil
	}

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		return nil, nil, nil, err
	}

	if cfg.App.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			log.Warn("auto migrate failed", zap.Error(err))
		} else {
			log.Info("database auto migration completed")
		}
	}

	ping := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	closeFn := func() {
		if err := database.Close(db); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
	return repositories.NewGormRepositories(db), ping, closeFn, nil
}

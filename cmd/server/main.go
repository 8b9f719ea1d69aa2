package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/genstudio/api/docs"
	"github.com/genstudio/api/internal/auth"
	"github.com/genstudio/api/internal/config"
	"github.com/genstudio/api/internal/credit"
	"github.com/genstudio/api/internal/handler"
	"github.com/genstudio/api/internal/logging"
	"github.com/genstudio/api/internal/middleware"
	"github.com/genstudio/api/internal/provider"
	"github.com/genstudio/api/internal/service"
	"github.com/genstudio/api/internal/storage"
	ws "github.com/genstudio/api/internal/websocket"
	"github.com/genstudio/api/internal/worker"
)

// @title          GenStudio API
// @version        1.0
// @description    Asynchronous AI image and video generation with credits, history and 1080p upgrades.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	cfg, err := config.Load()
	if err != nil {
		// no logger yet
		panic("failed to load config: " + err.Error())
	}

	log, err := logging.NewLogger(logging.Options{
		Level:       cfg.Server.LogLevel,
		Development: cfg.Server.IsDevelopment(),
		FilePath:    cfg.Log.File,
	})
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer log.Sync()

	if cfg.Server.ApiDomain != "" {
		docs.SwaggerInfo.Host = cfg.Server.ApiDomain
		docs.SwaggerInfo.Schemes = []string{"https"}
	} else {
		docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
		docs.SwaggerInfo.Schemes = []string{"http"}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	providers := provider.FromConfig(cfg.Providers, log)
	store := newStore(ctx, cfg, log)

	var jwksVerifier *auth.JWKSVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			log.Warn("JWKS verifier not initialized", zap.Error(err))
		} else {
			defer jwksVerifier.Close()
		}
	}

	var authn *middleware.AuthMiddleware
	switch {
	case jwksVerifier != nil && cfg.JWT.Secret != "":
		authn = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
	case jwksVerifier != nil:
		authn = middleware.NewAuthMiddleware(jwksVerifier)
	default:
		authn = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
	}

	apiAuth := authn.Authenticate()
	if cfg.Gateway.Enabled {
		// Behind Traefik: ForwardAuth already ran, read X-User-* headers
		log.Info("gateway mode enabled, using header-based auth")
		apiAuth = middleware.GatewayAuthMiddleware()
	}

	ledger := credit.NewLedger(redisClient, cfg.Credits.SignupBonus)
	taskService := service.NewTaskService(redisClient, asynqClient, providers, ledger, credit.Pricing(cfg.Credits.Pricing), service.TaskServiceOptions{
		RequireVIP:  cfg.Upgrade.RequireVIP,
		TaskTimeout: cfg.Polling.TaskTimeout,
		Logger:      log,
	})
	uploadService := service.NewUploadService(store, service.UploadOptions{
		MaxBytes: cfg.Upload.MaxBytes(),
		AllowGIF: cfg.Upload.AllowGIF,
		Logger:   log,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handler.ErrorHandler,
		BodyLimit:    int(cfg.Upload.MaxBytes()) + 1024*1024,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
	}
	app.Use(logger.New(logger.Config{Format: logFormat}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	router := &handler.Router{
		Generation:  handler.NewGenerationHandler(taskService, validator.New()),
		Upload:      handler.NewUploadHandler(uploadService),
		Auth:        handler.NewAuthHandler(authn),
		Tasks:       taskService,
		Hub:         hub,
		APIAuth:     apiAuth,
		RateLimiter: middleware.NewRateLimiter(redisClient, log),
		SubmitLimit: cfg.RateLimit.SubmitPerHour,
		UploadLimit: cfg.RateLimit.UploadPerHour,
		Health: fiber.Map{
			"providers": providers.Names(),
			"storage":   store.Name(),
			"auth":      jwksVerifier != nil || cfg.JWT.Secret != "",
		},
		Swagger: true,
	}
	router.Register(app)

	srv := newWorkerServer(cfg, redisOpt, log)
	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypePoll, worker.NewTaskWorker(taskService, providers, hub, cfg.Polling.MaxAttempts, log).ProcessTask)
	if err := srv.Start(mux); err != nil {
		log.Error("asynq worker failed to start", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
		srv.Shutdown()
	}()

	addr := ":" + cfg.Server.Port
	log.Info("server starting", zap.String("addr", addr), zap.Strings("providers", providers.Names()))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) storage.Store {
	if cfg.R2.AccessKeyID == "" || cfg.R2.SecretAccessKey == "" {
		log.Info("R2 storage not configured, using in-memory storage")
		return storage.NewMemory("")
	}
	r2, err := storage.NewR2(ctx, &cfg.R2)
	if err != nil {
		log.Warn("R2 client not initialized, using in-memory storage", zap.Error(err))
		return storage.NewMemory("")
	}
	return r2
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, log *zap.Logger) *asynq.Server {
	level := asynq.InfoLevel
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug":
		level = asynq.DebugLevel
	case "warn":
		level = asynq.WarnLevel
	case "error":
		level = asynq.ErrorLevel
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 20,
		Queues: map[string]int{
			service.QueuePoll: 1,
		},
		Logger:   log.Named("asynq").Sugar(),
		LogLevel: level,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Warn("poll task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})
}

package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"huddle_backend/database"
	"huddle_backend/internal/auth"
	"huddle_backend/internal/blobstore"
	"huddle_backend/internal/config"
	"huddle_backend/internal/handlers"
	"huddle_backend/internal/logger"
	"huddle_backend/internal/middleware"
	"huddle_backend/internal/realtime"
	"huddle_backend/internal/repositories"
	"huddle_backend/internal/routes"
	chatService "huddle_backend/internal/services/chat"
	"huddle_backend/internal/validator"
	"huddle_backend/ws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// broker is the fan-out backend: a local one for a single process, redis for several.
type broker interface {
	realtime.Publisher
	Run(ctx context.Context) error
}

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	logger.Info("Connecting to database...")
	gormDB, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(gormDB); err != nil {
			logger.Fatal("Failed to migrate database", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := connectRedis(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect to redis", "error", err)
	}

	if cfg.JWT.Secret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}
	tokens := auth.NewTokenParser(cfg.JWT.Secret)

	// 1. Realtime: registry -> manager -> broker
	var registry realtime.SessionRegistry = realtime.NewMemorySessionRegistry()
	if rdb != nil {
		registry = realtime.NewRedisSessionRegistry(rdb, cfg.Redis.ChannelPrefix, cfg.PresenceTTL())
	}
	manager := ws.NewManager(registry)

	var fanOut broker = realtime.NewLocalBroker(manager)
	if rdb != nil {
		fanOut = realtime.NewRedisBroker(rdb, cfg.Redis.ChannelPrefix, manager)
		logger.Info("Realtime fan-out over redis", "prefix", cfg.Redis.ChannelPrefix)
	} else {
		logger.Warn("REDIS_URL is not set, realtime fan-out is limited to this process")
	}

	// 2. Services and handlers
	services := initializeServices(cfg, fanOut)
	appHandlers := initializeHandlers(ctx, cfg, gormDB, rdb, services, manager)

	// 3. Router
	ginRouter := SetupRouter(gormDB, appHandlers, tokens)

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           corsHandler(cfg, ginRouter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(gctx) })
	g.Go(func() error { return fanOut.Run(gctx) })
	g.Go(func() error {
		logger.Info("Server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server stopped with error", "error", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	logger.Info("Server stopped")
}

// SetupRouter builds the gin engine with the middleware chain and every route.
func SetupRouter(gormDB *gorm.DB, appHandlers *handlers.AppHandlers, verifier middleware.TokenVerifier) *gin.Engine {
	ginRouter := initializeGinRouter(gormDB)
	routes.RegisterRoutes(ginRouter, appHandlers, verifier)
	return ginRouter
}

func initializeServices(cfg *config.Config, publisher realtime.Publisher) *chatService.Services {
	chatRepo := repositories.NewChatRepository()
	prefixes := cfg.MediaURLPrefixes()
	media := blobstore.NewPrefixVerifier(prefixes)
	if len(prefixes) == 0 {
		logger.Warn("MEDIA_BASE_URLS is not set, every media message will be rejected")
	}
	return chatService.NewServices(chatRepo, publisher, media)
}

func initializeHandlers(
	ctx context.Context,
	cfg *config.Config,
	gormDB *gorm.DB,
	rdb *redis.Client,
	services *chatService.Services,
	manager *ws.Manager,
) *handlers.AppHandlers {
	baseHandler := handlers.NewBaseHandler(validator.New())

	opts := ws.DefaultOptions()
	opts.SendBuffer = cfg.Realtime.SendBuffer
	opts.WriteWait = cfg.WriteWait()
	gateway := chatService.NewLiveGateway(gormDB, services.Presence)

	appHandlers := &handlers.AppHandlers{
		ChatHandler:   handlers.NewChatHandler(baseHandler, services),
		HealthHandler: handlers.NewHealthHandler(gormDB, rdb),
		WSHandler:     ws.NewWebSocketHandler(manager, gateway, opts, cfg.Server.AllowedOrigins),
	}

	uploader, err := blobstore.NewS3Uploader(ctx, blobstore.S3Config{
		Bucket:        cfg.Media.Bucket,
		Endpoint:      cfg.Media.Endpoint,
		Region:        cfg.Media.Region,
		AccessKey:     cfg.Media.AccessKey,
		SecretKey:     cfg.Media.SecretKey,
		PublicBaseURL: cfg.Media.PublicBaseURL,
		Expiry:        cfg.UploadExpiry(),
	})
	switch {
	case errors.Is(err, blobstore.ErrUploadsDisabled):
		logger.Warn("MEDIA_BUCKET is not set, direct uploads are disabled")
	case err != nil:
		logger.Fatal("Failed to configure media uploads", "error", err)
	default:
		appHandlers.MediaHandler = handlers.NewMediaHandler(baseHandler, uploader)
		logger.Info("Direct media uploads enabled", "bucket", cfg.Media.Bucket)
	}
	return appHandlers
}

func initializeGinRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.DBMiddleware(db))
	return router
}

func corsHandler(cfg *config.Config, next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	}).Handler(next)
}

// connectRedis returns nil when no redis URL is configured.
func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Info("Redis connected", "addr", opts.Addr)
	return client, nil
}

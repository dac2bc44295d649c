package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"cinesphere/docs"
	"cinesphere/internal/catalog"
	"cinesphere/internal/config"
	"cinesphere/internal/database"
	"cinesphere/internal/details"
	"cinesphere/internal/handler"
	"cinesphere/internal/middleware"
	"cinesphere/internal/repository"
	"cinesphere/internal/service"
	"cinesphere/internal/tmdb"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Structured logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Connect to Redis (non-fatal if unavailable)
	var rdb *redis.Client
	if client, err := database.NewRedis(ctx, cfg.Redis); err != nil {
		slog.Warn("Redis unavailable, running without cache", "error", err)
	} else {
		rdb = client
		defer rdb.Close()
	}

	// Initialize layers
	tmdbClient := tmdb.NewClient(cfg.TMDB)
	norm := catalog.NewNormalizer(cfg.TMDB.ImageBaseURL)
	aggregator := details.NewAggregator(tmdbClient, norm)
	movies := service.NewMovieService(tmdbClient, aggregator, norm, rdb, cfg.CacheTTL)
	library := service.NewLibraryService(store)
	sessions := service.NewSessionManager(movies, library, aggregator, cfg.SearchDebounce)
	defer sessions.Close()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:         "CineSphere",
		ServerHeader:    "CineSphere",
		ErrorHandler:    handler.ErrorHandler,
		StructValidator: handler.NewStructValidator(),
		JSONEncoder:     json.Marshal,
		JSONDecoder:     json.Unmarshal,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())
	app.Use(middleware.NewRateLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.WindowSeconds).Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	handler.RegisterSwagger(app, docs.SwaggerYAML, "CineSphere API")
	handler.RegisterRoutes(app, handler.NewMovieHandler(movies), handler.NewMeHandler(sessions, library))

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		slog.Info("shutting down cinesphere...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	// Start server
	addr := ":" + cfg.Port
	slog.Info("starting cinesphere", "addr", addr, "store", cfg.StoreDriver)
	if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		slog.Error("server error", "error", err)
	}
}

// openStore connects the configured store driver and starts its change feed.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewPostgresStore(db)
		if err := store.Listen(ctx, cfg.DB.DSN()); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("failed to close store", "error", err)
			}
			db.Close()
		}, nil

	case config.StoreDriverMongo:
		client, db, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewMongoStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		store.Listen(ctx)
		return store, func() {
			_ = store.Close()
			_ = client.Disconnect(context.Background())
		}, nil

	case config.StoreDriverMemory:
		slog.Warn("using in-memory store, data is lost on restart")
		store := repository.NewMemoryStore()
		return store, func() { _ = store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

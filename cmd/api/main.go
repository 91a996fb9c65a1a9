package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/crashlens/crashlens/internal/api/handlers"
	rediscache "github.com/crashlens/crashlens/internal/cache/redis"
	"github.com/crashlens/crashlens/internal/classifier"
	"github.com/crashlens/crashlens/internal/knowledge"
	"github.com/crashlens/crashlens/internal/llm"
	"github.com/crashlens/crashlens/internal/metrics"
	"github.com/crashlens/crashlens/internal/middleware/ratelimit"
	"github.com/crashlens/crashlens/internal/retrieval"
	"github.com/crashlens/crashlens/internal/storage/sqlite"
	"github.com/crashlens/crashlens/pkg/config"
	appLogger "github.com/crashlens/crashlens/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting crash classification API server")

	// A malformed rule catalog aborts startup; serving with a broken
	// knowledge base is worse than not serving.
	catalog, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		appLogger.Fatal("Failed to load rule catalog", zap.Error(err))
	}
	appLogger.Info("Rule catalog ready", zap.Int("rules", catalog.Len()))

	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0755); err != nil {
		appLogger.Fatal("Failed to create data directory", zap.Error(err))
	}
	db, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	llmClient := llm.NewClient(cfg.LLM)

	// Index build tolerates partial failure: rules that could not be
	// embedded are skipped and retrieval degrades gracefully.
	index, err := retrieval.Build(context.Background(), catalog, llmClient, cfg.Retrieval.BuildWorkers)
	if err != nil {
		appLogger.Warn("Retrieval index build aborted, serving with empty index", zap.Error(err))
		index = &retrieval.Index{}
	}
	metrics.RetrievalIndexSize.Set(float64(index.Len()))

	var cache *rediscache.Client
	if cfg.Redis.Enabled {
		cache, err = rediscache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, serving without verdict cache", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	engine := classifier.New(catalog, index, llmClient, llmClient,
		classifier.WithTopK(cfg.Retrieval.TopK),
	)

	metrics.Init()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	classifyHandler := handlers.NewClassifyHandler(engine, db, cache, classifier.StrategyHybrid)
	historyHandler := handlers.NewHistoryHandler(db)
	wsHandler := handlers.NewWebSocketHandler(engine, classifier.StrategyHybrid)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"rules":  catalog.Len(),
			"index":  index.Len(),
		})
	})
	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Post("/classify", limiter.Middleware(), classifyHandler.HandleClassify)
	api.Get("/history", historyHandler.HandleHistory)
	api.Get("/stats", historyHandler.HandleStats)

	api.Use("/classify/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/classify/stream", websocket.New(wsHandler.HandleConnection))

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		appLogger.Info("API server listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Shutdown error", zap.Error(err))
	}
}

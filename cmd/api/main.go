package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/engagement-agent/backend/internal/api/handlers"
	"github.com/engagement-agent/backend/internal/cache"
	memorycache "github.com/engagement-agent/backend/internal/cache/memory"
	rediscache "github.com/engagement-agent/backend/internal/cache/redis"
	"github.com/engagement-agent/backend/internal/embedding"
	"github.com/engagement-agent/backend/internal/evolution"
	"github.com/engagement-agent/backend/internal/export"
	"github.com/engagement-agent/backend/internal/indexer"
	"github.com/engagement-agent/backend/internal/knowledge"
	"github.com/engagement-agent/backend/internal/knowledge/neo4j"
	"github.com/engagement-agent/backend/internal/learning"
	"github.com/engagement-agent/backend/internal/metrics"
	"github.com/engagement-agent/backend/internal/middleware/ratelimit"
	"github.com/engagement-agent/backend/internal/middleware/security"
	"github.com/engagement-agent/backend/internal/middleware/validation"
	"github.com/engagement-agent/backend/internal/patterns"
	"github.com/engagement-agent/backend/internal/recommend"
	"github.com/engagement-agent/backend/internal/risk"
	"github.com/engagement-agent/backend/internal/similarity"
	"github.com/engagement-agent/backend/internal/storage/sqlite"
	"github.com/engagement-agent/backend/internal/vector/milvus"
	"github.com/engagement-agent/backend/pkg/config"
	appLogger "github.com/engagement-agent/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Engagement Pattern API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	neo4jClient, err := neo4j.NewClient(
		cfg.Neo4j.URI,
		cfg.Neo4j.Username,
		cfg.Neo4j.Password,
		cfg.Neo4j.Database,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	defer neo4jClient.Close(context.Background())

	var resultCache cache.Cache
	redisClient, err := rediscache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unavailable, falling back to in-memory cache", zap.Error(err))
		resultCache = memorycache.New()
	} else {
		defer redisClient.Close()
		resultCache = redisClient
	}

	contexts := knowledge.NewStoreContextBuilder(neo4jClient)
	scorer := similarity.NewScorer(similarity.DefaultWeights())

	learningStore, err := learning.NewStore(sqliteClient)
	if err != nil {
		appLogger.Fatal("Failed to load learning weights", zap.Error(err))
	}

	// The vector index is an optional speedup. Without it, similarity
	// search falls back to scanning the knowledge store.
	var contextIndex patterns.ContextIndex
	var indexWriter handlers.Reindexer
	if cfg.Milvus.Enabled {
		milvusClient, err := milvus.NewClient(
			cfg.Milvus.Endpoint,
			cfg.Milvus.APIKey,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
		)
		if err != nil {
			appLogger.Warn("Milvus unavailable, candidate prefilter disabled", zap.Error(err))
		} else {
			defer milvusClient.Close()
			if err := milvusClient.CreateCollection(context.Background()); err != nil {
				appLogger.Fatal("Failed to create vector collection", zap.Error(err))
			}
			embedder := embedding.NewClient(cfg.Embedding.APIKey, cfg.Embedding.Model)
			ix := indexer.New(neo4jClient, milvusClient, embedder)
			contextIndex = ix
			indexWriter = ix

			// Populate the collection before the first lookups arrive.
			go func() {
				if _, err := ix.Reindex(context.Background()); err != nil {
					appLogger.Warn("Startup reindex failed", zap.Error(err))
				}
			}()
		}
	}

	cacheTTL := time.Duration(cfg.Redis.TTLSec) * time.Second

	analyzer := patterns.NewAnalyzer(neo4jClient, contexts, scorer, contextIndex, resultCache, patterns.Config{
		SimilarityThreshold: cfg.Engine.SimilarityThreshold,
		MaxSimilar:          cfg.Engine.MaxSimilarProjects,
		MinSimilar:          cfg.Engine.MinSimilarProjects,
		CandidatePool:       cfg.Engine.CandidatePoolSize,
		CacheTTL:            cacheTTL,
	})

	detector := risk.NewDetector(neo4jClient, contexts, scorer, learningStore, sqliteClient, resultCache, risk.Config{
		SimilarityFloor: cfg.Engine.RiskSimilarityFloor,
		MinProbability:  cfg.Engine.MinRiskProbability,
		CacheTTL:        cacheTTL,
	})

	engine := recommend.NewEngine(neo4jClient, contexts, analyzer, detector, learningStore, sqliteClient, resultCache, cacheTTL)

	tracker := evolution.NewTracker(sqliteClient, learningStore, resultCache, evolution.Config{
		Slices:   cfg.Engine.EvolutionSlices,
		CacheTTL: cacheTTL,
	})

	exporter := export.NewExporter(sqliteClient, learningStore)

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
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	analysisHandler := handlers.NewAnalysisHandler(analyzer, detector)
	recommendationHandler := handlers.NewRecommendationHandler(engine)
	evolutionHandler := handlers.NewEvolutionHandler(tracker)
	validationHandler := handlers.NewValidationHandler(detector, tracker)
	exportHandler := handlers.NewExportHandler(exporter)
	adminHandler := handlers.NewAdminHandler(indexWriter)
	wsHandler := handlers.NewWebSocketHandler(analyzer, detector, engine)

	api := app.Group("/api/v1")
	api.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	api.Post("/analysis/patterns", analysisHandler.HandlePatternAnalysis)
	api.Post("/analysis/risks", analysisHandler.HandleRiskDetection)

	api.Post("/recommendations", recommendationHandler.HandleGenerate)
	api.Post("/recommendations/transition", recommendationHandler.HandleTransition)
	api.Post("/recommendations/feedback", recommendationHandler.HandleFeedback)

	api.Post("/evolution/track", evolutionHandler.HandleTrack)
	api.Post("/evolution/predict", evolutionHandler.HandlePredict)

	api.Post("/validation/risks", validationHandler.HandleRiskValidation)
	api.Post("/validation/evolution", validationHandler.HandleEvolutionValidation)

	api.Get("/export/patterns", exportHandler.HandleExport)

	api.Post("/admin/reindex", adminHandler.HandleReindex)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/analysis", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if err := neo4jClient.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

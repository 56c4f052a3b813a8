package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"conta-luz-chatbot/internal/ai"
	"conta-luz-chatbot/internal/config"
	"conta-luz-chatbot/internal/embedding"
	"conta-luz-chatbot/internal/index"
	"conta-luz-chatbot/internal/logger"
	"conta-luz-chatbot/internal/pipeline"
	"conta-luz-chatbot/internal/session"
	"conta-luz-chatbot/internal/store"
	"conta-luz-chatbot/internal/telemetry"
	"conta-luz-chatbot/middleware"
	"conta-luz-chatbot/routes"
	"conta-luz-chatbot/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.TracingEnable {
		shutdown, err := telemetry.InitTracer("conta-luz-chatbot", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing desabilitado", "error", err)
		} else {
			defer shutdown()
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	db := mongoClient.Database(cfg.DBName)

	// Redis is optional: sessions fall back to memory-only and the rate
	// limiter fails open.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("redis indisponivel, sessoes apenas em memoria", "error", err)
		rdb = nil
	}

	provider, err := embedding.NewGeminiProvider(context.Background(), cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel)
	if err != nil {
		log.Fatal("Failed to create embeddings provider:", err)
	}
	defer provider.Close()

	gerador, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier, metrics)
	if err != nil {
		log.Fatal("Failed to create Gemini client:", err)
	}
	defer gerador.Close()

	cache := embedding.NewCache(provider, db.Collection("embeddings"), cfg.EmbeddingTimeout)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := cache.Load(ctx); err != nil {
			logger.Warn("cache de embeddings iniciando vazio", "error", err)
		}
		cancel()
	}

	idx, err := index.New(cfg.VectorDimensions)
	if err != nil {
		log.Fatal("Failed to create vector index:", err)
	}
	billing := store.NewMongoStore(db)
	registry := session.NewRegistry(cfg.SessaoInatividade, rdb)

	indexer := services.NewIndexer(billing, cache, idx, metrics)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		if err := indexer.Rebuild(ctx); err != nil {
			// Searches against an empty index return no results; the
			// API still answers, so boot anyway.
			logger.Error("falha ao construir indice vetorial", "error", err)
		}
		cancel()
	}

	pipe := pipeline.New(registry, cache, idx, billing, gerador, pipeline.Options{
		TopK:              cfg.TopK,
		MaxMensagemChars:  cfg.MaxMensagemChars,
		MaxContextoChars:  cfg.MaxContextoChars,
		GenerationTimeout: cfg.GenerationTimeout,
	})

	maintenance := services.NewMaintenance(registry, cache, indexer, cfg)
	if err := maintenance.Start(); err != nil {
		logger.Warn("manutencao periodica desabilitada", "error", err)
	}
	defer maintenance.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	routes.SetupAPIRoutes(router, registry, pipe, mongoClient)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("servidor iniciado", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("encerrando servidor")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// Persist dirty cache entries before exit.
	if err := cache.Flush(ctx); err != nil {
		logger.Warn("falha ao gravar cache de embeddings", "error", err)
	}

	logger.Info("servidor finalizado")
}

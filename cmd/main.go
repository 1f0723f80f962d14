package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"pdfrag/internal/ai"
	"pdfrag/internal/config"
	"pdfrag/internal/logger"
	"pdfrag/internal/telemetry"
	"pdfrag/internal/vectorstore"
	"pdfrag/middleware"
	"pdfrag/routes"
	"pdfrag/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("pdfrag", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to init tracer:", err)
		}
		defer shutdown()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	// Vector store
	store, err := vectorstore.NewQdrantStore(vectorstore.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		Dimension:  cfg.VectorDimensions,
	})
	if err != nil {
		log.Fatal("Failed to create vector store:", err)
	}

	// Pipelines
	embedder := ai.NewEmbeddingService(cfg)
	defer embedder.Close()

	generator, err := ai.NewGeminiClient(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to create Gemini client:", err)
	}
	defer generator.Close()

	chunker, err := services.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal("Invalid chunking configuration:", err)
	}

	extractor := services.NewPDFExtractor(services.NewOCRClient(cfg), metrics)
	ingestion := services.NewIngestionService(extractor, chunker, embedder, store, metrics)
	retrieval := services.NewRetrievalService(embedder, store, generator, cfg.TopK, metrics)

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware("pdfrag"))
	}

	// Rate limiting is optional: without Redis the service still runs.
	if rdb, err := config.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
	} else {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, cfg, ingestion, retrieval, store)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

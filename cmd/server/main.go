package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plant-classifier-pipeline/internal/adapters/primary/http/handlers"
	"plant-classifier-pipeline/internal/adapters/primary/http/middleware"
	"plant-classifier-pipeline/internal/adapters/secondary/centroid"
	"plant-classifier-pipeline/internal/adapters/secondary/objectstore"
	"plant-classifier-pipeline/internal/config"
	"plant-classifier-pipeline/internal/core/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	initLogger(cfg)

	// ============================================================================
	// Hexagonal Architecture Wiring
	// ============================================================================

	// Secondary Adapters
	store, err := objectstore.NewMinioStore(&cfg.ObjectStore)
	if err != nil {
		log.Fatalf("create object store client: %v", err)
	}

	// Core Services
	resolver := services.NewArtifactResolverService(store)
	cache := services.NewServingCache(resolver, store, centroid.Decoder{}, services.ServingCacheConfig{
		Buckets:     cfg.Serving.Buckets,
		Extension:   cfg.Serving.Extension,
		LoadTimeout: cfg.Serving.LoadTimeout,
	})
	inferenceSvc := services.NewInferenceService(cache)

	// The first prediction loads the model anyway; preloading only moves the
	// cost to startup.
	if cfg.Serving.Preload {
		if _, err := cache.GetOrLoad(context.Background()); err != nil {
			log.WithError(err).Warn("model preload failed, will retry on first request")
		}
	}

	// Primary Adapter (HTTP Handlers)
	h := handlers.New(inferenceSvc, cache, cfg.Server.MaxUploadSize)

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())
	h.RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced shutdown: %v", err)
	}

	log.Info("server stopped")
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if level < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

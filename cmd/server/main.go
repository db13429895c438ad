package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"product-relay/internal/config"
	"product-relay/internal/database"
	"product-relay/internal/handlers"
	"product-relay/internal/logger"
	"product-relay/internal/repository"
	"product-relay/internal/router"
	"product-relay/internal/services"
	"product-relay/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log := logger.New(cfg.IsDevelopment())
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	log.Info("starting product relay",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("provider", cfg.ChatProvider),
	)

	// ──── Step 2: Initialize Chat Provider ────
	provider, closeProvider, err := newChatProvider(cfg)
	if err != nil {
		log.Fatal("chat provider initialization failed", zap.Error(err))
	}
	defer closeProvider()
	model := cfg.OpenAIModel
	if cfg.ChatProvider == "gemini" {
		model = cfg.GeminiModel
	}
	chatService := services.NewChatService(provider, model, cfg.MaxOutputTokens, log)
	log.Info("chat provider ready", zap.String("provider", provider.Name()), zap.String("model", model))

	// ──── Step 3: Initialize Catalog Persistence ────
	var catalog services.CatalogWriter = services.NopCatalogWriter{}
	var workerPool *worker.Pool

	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("PostgreSQL connection failed", zap.Error(err))
		}
		defer pool.Close()

		if err := database.RunMigrations(pool, cfg.MigrationsDir); err != nil {
			log.Fatal("database migration failed", zap.Error(err))
		}
		log.Info("PostgreSQL connected, migrations applied")

		catalogRepo := repository.NewCatalogRepo(pool)
		catalog = services.NewCatalogService(catalogRepo, log)

		if cfg.RedisURL != "" {
			redisClient, err := database.NewRedisClient(cfg.RedisURL)
			if err != nil {
				log.Fatal("Redis connection failed", zap.Error(err))
			}
			defer redisClient.Close()

			catalog = services.NewCatalogService(worker.NewQueue(redisClient), log)
			workerPool = worker.NewPool(redisClient, catalogRepo, log, cfg.InsertWorkers)
			workerPool.Start()
			log.Info("catalog inserts queued through Redis")
		}
	} else {
		log.Info("DATABASE_URL not set, /insert stores nothing")
	}

	// ──── Step 4: Start HTTP Server ────
	relayHandler := handlers.NewRelayHandler(chatService, catalog, log)
	r := router.New(relayHandler, log, cfg.CORSOrigin)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Completions are slow; the provider call has no timeout of its own.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("server shutdown incomplete", zap.Error(err))
		}
		if workerPool != nil {
			workerPool.Stop()
		}
	}()

	log.Info("server listening", zap.String("addr", "http://localhost:"+cfg.Port))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
	<-done
}

func newChatProvider(cfg *config.Config) (services.ChatProvider, func(), error) {
	switch cfg.ChatProvider {
	case "gemini":
		p, err := services.NewGeminiProvider(context.Background(), cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	default:
		return services.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), func() {}, nil
	}
}

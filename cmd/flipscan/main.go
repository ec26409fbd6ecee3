package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/resaleops/flipscan/internal/api"
	"github.com/resaleops/flipscan/internal/comps"
	"github.com/resaleops/flipscan/internal/config"
	"github.com/resaleops/flipscan/internal/database"
	"github.com/resaleops/flipscan/internal/dedup"
	"github.com/resaleops/flipscan/internal/events"
	"github.com/resaleops/flipscan/internal/fetch"
	"github.com/resaleops/flipscan/internal/profit"
	"github.com/resaleops/flipscan/internal/proxy"
	"github.com/resaleops/flipscan/internal/queue"
	"github.com/resaleops/flipscan/internal/retailer"
	"github.com/resaleops/flipscan/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// Proxy rotation is optional; without a list every fetch is direct.
	var registry *proxy.Registry
	if cfg.Proxy.Enabled {
		endpoints, err := proxy.LoadFile(cfg.Proxy.File)
		if err != nil {
			logger.Error("failed to load proxy list", "file", cfg.Proxy.File, "error", err)
			os.Exit(1)
		}
		registry = proxy.NewRegistry(endpoints)
		logger.Info("proxy rotation enabled", "endpoints", registry.Size())
	}

	fetcher := fetch.NewClient(registry, fetch.Config{
		MaxRetries: cfg.Fetch.MaxRetries,
		Timeout:    cfg.Fetch.Timeout,
	}, logger)

	extractor := retailer.NewExtractor(fetcher, logger)
	aggregator := comps.NewAggregator(fetcher, comps.DefaultOverrides(), logger)
	publisher := events.NewStreamPublisher(redisClient, cfg.Redis.ResultStream, logger)
	gate := dedup.NewGate(dedup.NewRedisStore(redisClient), cfg.Dedup.TTL, logger)
	jobQueue := queue.NewRedisQueue(redisClient, cfg.Redis.QueueKey, logger)

	// Result history is optional; the pipeline runs without Postgres.
	var resultRepo *database.ResultRepository
	var history worker.History
	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		resultRepo = database.NewResultRepository(db, logger)
		history = resultRepo
	}

	pool := worker.NewPool(jobQueue, extractor, aggregator, publisher, history, worker.Config{
		Concurrency: cfg.Worker.Concurrency,
		Thresholds: profit.Thresholds{
			MinProfit:     cfg.Worker.MinProfit,
			MinSoldWindow: cfg.Worker.MinSoldWindow,
		},
		ShipEstimate: cfg.Worker.ShipEstimate,
		FeePct:       cfg.Worker.FeePct,
		FeeFixed:     cfg.Worker.FeeFixed,
		TaxPct:       cfg.Worker.TaxPct,
	}, logger)
	go pool.Run(ctx)

	handlers := api.NewHandlers(gate, jobQueue, resultRepo, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", handlers.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/check", handlers.Check)
		r.Get("/results/recent", handlers.RecentResults)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

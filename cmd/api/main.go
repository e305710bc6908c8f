package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront-api/internal/catalog"
	"storefront-api/internal/config"
	"storefront-api/internal/customer"
	"storefront-api/internal/events"
	"storefront-api/internal/handler"
	"storefront-api/internal/middleware"
	"storefront-api/internal/purchase"
	"storefront-api/internal/query"
	"storefront-api/internal/queue"
	"storefront-api/internal/scoring"
	"storefront-api/internal/signals"
	"storefront-api/internal/storage"
	"storefront-api/internal/tracing"
	"storefront-api/internal/tracking"
	"storefront-api/internal/weights"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Tracing
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "storefront-api",
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document index
	idx, err := storage.NewDocumentIndex(cfg.Index.Path, storage.IndexOptions{
		ScrollBatchSize: cfg.Index.ScrollBatchSize,
		ScrollLifetime:  cfg.ScrollLifetime(),
	})
	if err != nil {
		log.Fatalf("Failed to open document index: %v", err)
	}
	defer idx.Close()

	// KV store
	kv, err := storage.NewRedisKV(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	// Domain services
	cat := catalog.NewService(idx, cfg.Catalog.NewProductThresholdDays)
	customers := customer.NewStore(kv)
	tiers := customer.NewTierStore(kv)
	seen := customer.NewProductList(kv, customer.ListSeen)
	wish := customer.NewProductList(kv, customer.ListWish)
	pages := customer.NewPageStore(kv)
	registry := weights.NewRegistry(kv)

	repo := purchase.NewRepository(idx)
	evts := events.NewManager(true)
	defer evts.Shutdown()

	dtd := purchase.NewStandardCalculator(cfg.Purchase.DTDWorkingFrom, cfg.Purchase.DTDWorkingTo)
	purchases := purchase.NewService(repo, cat, customers, tiers, dtd, evts,
		cfg.Purchase.VATPercent, cfg.Purchase.MaxQtyPerItem)

	orderSignals := signals.NewOrderAggregator(repo, cat)
	engine := scoring.NewEngine(idx, cat, customers, registry, orderSignals, evts)

	if err := cat.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize catalog index: %v", err)
	}
	if err := repo.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize order indexes: %v", err)
	}
	if err := engine.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize scored index: %v", err)
	}

	// Queue: consumer dispatch, scoring requests, tracking archive
	var broker *queue.Broker
	var requester query.ScoreRequester
	var archiver tracking.Archiver
	if cfg.Queue.Enabled {
		broker, err = queue.NewBroker(queue.Config{
			URL:             cfg.Queue.URL,
			Exchange:        cfg.Queue.Exchange,
			Queue:           cfg.Queue.Queue,
			DeadLetterQueue: cfg.Queue.DeadLetterQueue,
			ArchiveStream:   archiveStream(cfg),
		})
		if err != nil {
			log.Fatalf("Failed to connect to rabbitmq: %v", err)
		}
		defer broker.Close()
		if err := broker.SetupQueues(); err != nil {
			log.Fatalf("Failed to declare queues: %v", err)
		}
		requester = broker
		if cfg.Queue.ArchiveEnabled {
			archiver = queue.NewTrackingArchiver(broker)
		}
	}

	ingestor := tracking.NewIngestor(idx, scoring.ScoredIndex, cat, customers, archiver)
	queries := query.NewService(idx, cat, requester, query.Options{
		NewInDays:         cfg.Catalog.NewProductThresholdDays,
		LastChanceStock:   cfg.Catalog.LastChanceStock,
		LastChanceAgeDays: cfg.Catalog.LastChanceAgeDays,
		TopBrandsLimit:    cfg.Catalog.TopBrandsLimit,
	})

	if broker != nil {
		consumer := queue.NewConsumer(broker, cat, pages, customers, registry, engine, ingestor)
		if err := consumer.Start(ctx); err != nil {
			log.Fatalf("Failed to start queue consumer: %v", err)
		}
	}

	h := handler.NewHandler(handler.Deps{
		Query:     queries,
		Catalog:   cat,
		Purchase:  purchases,
		Customers: customers,
		Tiers:     tiers,
		Seen:      seen,
		Wish:      wish,
		Pages:     pages,
		Tracker:   ingestor,
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.TracingMiddleware())

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer limiter.Stop()
		r.Use(middleware.RateLimitMiddleware(limiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.SessionHeader, middleware.ReadSecretHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.SessionMiddleware(cfg.Security.JWTSecret))

	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", h.Routes(cfg.Security.ReadSecret))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting HTTP server on %s", addr)
	log.Printf("Index: %s", cfg.Index.Path)
	log.Printf("Queue enabled: %t", cfg.Queue.Enabled)

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down tracing: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}

// archiveStream resolves the archive stream name, empty when disabled.
func archiveStream(cfg *config.Config) string {
	if !cfg.Queue.ArchiveEnabled {
		return ""
	}
	return cfg.Queue.ArchiveStream
}

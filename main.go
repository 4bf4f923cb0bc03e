package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/database"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/embedding"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/handlers"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/jobs"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/llm"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/logging"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/middleware"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/routes"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/services"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/storage"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/vectordb"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/wallet"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	cache, err := openCache(cfg, log)
	if err != nil {
		return err
	}
	defer cache.Close()

	repo, err := openWalletRepository(cfg, log)
	if err != nil {
		return err
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	router := llm.NewRouter(provider, llm.ModelsFromConfig(cfg.LLM), log,
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTimeout(cfg.LLM.Timeout))

	emb, err := embedding.New(ctx, cfg.Embedding, cfg.LLM)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	vectors, err := openVectors(ctx, cfg, emb, log)
	if err != nil {
		return err
	}
	defer vectors.Close()

	factory, err := wallet.NewFactory(ctx, cfg.Wallet.RPCURL, cfg.Wallet.Network, log)
	if err != nil {
		return fmt.Errorf("wallet factory: %w", err)
	}
	defer factory.Close()

	notifier := services.NewNotifier(cfg, log)
	sessions := services.NewSessionManager(cache, cfg.Session, log)
	analyzer := services.NewTransactionAnalyzer(log)
	wallets := services.NewWalletService(repo, factory, cfg.Wallet.Network, cfg.Wallet.EncryptionKey, log)
	actions := services.NewActionEngine(router, wallets, wallet.MockOracle{}, notifier, log)
	knowledge := services.NewKnowledgeService(emb, vectors, router, services.KnowledgeConfig{
		TopK:            cfg.Vector.TopK,
		DirectThreshold: cfg.Vector.DirectThreshold,
		RefineThreshold: cfg.Vector.RefineThreshold,
	}, log)
	assistant := services.NewAssistant(services.AssistantDeps{
		Sessions:  sessions,
		Store:     cache,
		Intents:   services.NewIntentClassifier(router, log),
		Extractor: services.NewActionExtractor(router, log),
		Analyzer:  analyzer,
		Questions: services.NewQuestionGenerator(router, log),
		Knowledge: knowledge,
		Actions:   actions,
		Wallets:   wallets,
		Notifier:  notifier,
	}, services.AssistantConfig{
		HistoryLimit:   cfg.Session.HistoryLimit,
		FollowUpWindow: cfg.Session.FollowUpWindow,
	}, log)

	sweepers := []jobs.Sweeper{
		{Name: "pending_payments", Run: func(context.Context) (int, error) { return actions.SweepExpired(), nil }},
		{Name: "ip_tracking", Run: sessions.PruneIPTracking},
	}
	if mem, ok := cache.(*storage.MemoryStore); ok {
		sweepers = append(sweepers, jobs.Sweeper{Name: "memory_cache", Run: func(context.Context) (int, error) { return mem.Sweep(), nil }})
	}
	janitor := jobs.NewJanitor(cfg.Session.CleanupInterval, log, sweepers...)
	janitor.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      "DeFi Assistant Backend v" + version,
		ErrorHandler: handlers.ErrorHandler(log),
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
	})
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.Server.Debug}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, cfg, routes.Handlers{
		Query: handlers.NewQueryHandler(assistant, sessions, analyzer, log),
		Health: handlers.NewHealthHandler(version, handlers.HealthDeps{
			Config:   cfg,
			Cache:    cache,
			Sessions: sessions,
			Embedder: emb,
			Vectors:  vectors,
			Models:   router,
			Wallets:  wallets,
		}, log),
		Wallet:   handlers.NewWalletHandler(wallets),
		Actions:  handlers.NewActionHandler(actions),
		WhatsApp: handlers.NewWhatsAppHandler(assistant, notifier, log),
	}, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutting down")
		janitor.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()

	log.Info("server starting",
		zap.String("port", cfg.Server.Port),
		zap.String("mode", cfg.Mode()),
		zap.String("llm", provider.Name()),
		zap.String("embeddings", emb.Name()),
		zap.String("vectors", vectors.Name()),
		zap.String("sessions", cache.Name()),
		zap.Bool("whatsapp", notifier.Enabled()))

	return app.Listen(":" + cfg.Server.Port)
}

// openCache uses Redis when configured and falls back to memory in demo mode.
func openCache(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Redis.URL == "" {
		if !cfg.DemoMode {
			log.Warn("REDIS_URL not set, sessions are kept in memory")
		}
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.NewRedisStore(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		if cfg.DemoMode {
			log.Warn("redis unreachable, using memory store", zap.Error(err))
			_ = store.Close()
			return storage.NewMemoryStore(), nil
		}
		return nil, fmt.Errorf("redis: %w", err)
	}
	return store, nil
}

func openWalletRepository(cfg *config.Config, log *zap.Logger) (storage.WalletRepository, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, wallet connections are kept in memory")
		return storage.NewMemoryWalletRepository(), nil
	}
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
	}
	return storage.NewDatabaseStore(db), nil
}

// openVectors connects Pinecone, or seeds an in-memory index in demo mode.
func openVectors(ctx context.Context, cfg *config.Config, emb embedding.Embedder, log *zap.Logger) (vectordb.Store, error) {
	if cfg.Vector.PineconeKey != "" && !cfg.DemoMode {
		store, err := vectordb.NewPineconeStore(ctx, cfg.Vector.PineconeKey, cfg.Vector.Index, cfg.Vector.Namespace)
		if err != nil {
			return nil, fmt.Errorf("pinecone: %w", err)
		}
		return store, nil
	}
	if !cfg.DemoMode {
		return nil, errors.New("PINECONE_API_KEY is required outside demo mode")
	}
	store := vectordb.NewMemoryStore()
	n, err := vectordb.Load(ctx, store, emb, vectordb.DemoDocuments, 100)
	if err != nil {
		return nil, fmt.Errorf("seed demo vectors: %w", err)
	}
	log.Info("demo knowledge base loaded", zap.Int("documents", n))
	return store, nil
}

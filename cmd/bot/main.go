package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/hunterwarburton/pantry/internal/auth"
	"github.com/hunterwarburton/pantry/internal/cache"
	"github.com/hunterwarburton/pantry/internal/config"
	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/embed"
	"github.com/hunterwarburton/pantry/internal/httpapi"
	"github.com/hunterwarburton/pantry/internal/llm"
	"github.com/hunterwarburton/pantry/internal/logger"
	"github.com/hunterwarburton/pantry/internal/pipeline"
	"github.com/hunterwarburton/pantry/internal/rag"
	"github.com/hunterwarburton/pantry/internal/source"
	"github.com/hunterwarburton/pantry/internal/telegram"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	configFile := flag.String("config", "", "Path to an optional YAML config file")
	flag.Parse()

	logger.Init(*debug)
	logger.Info("Starting pantry...")

	if err := godotenv.Load(); err != nil {
		logger.Info("Warning: No .env file found or error loading it")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	if logger.IsDebugEnabled() {
		logger.Debug("Configuration loaded: source=%s, backend=%s, collection=%s, index=%s, cache=%v, http=%v, summarizer=%v",
			cfg.Document.Source, cfg.Vector.Backend, cfg.Vector.Collection, cfg.Vector.Index,
			cfg.Cache.Enabled, cfg.HTTP.Enabled, cfg.LLM.APIKey != "")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Initializing services...")

	src, err := newSource(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize document source: %v", err)
		os.Exit(1)
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize %s vector store: %v", cfg.Vector.Backend, err)
		os.Exit(1)
	}
	defer store.Close()

	if cfg.Vector.EnsureCollection {
		if b, ok := store.(rag.Bootstrapper); ok {
			if err := b.EnsureCollection(ctx, cfg.Vector.Collection, cfg.Vector.Index, cfg.Vector.Field); err != nil {
				logger.Error("Failed to prepare collection %s: %v", cfg.Vector.Collection, err)
				os.Exit(1)
			}
		} else {
			logger.Warn("Backend %s cannot create collections, skipping", cfg.Vector.Backend)
		}
	}

	model, err := embed.NewOllamaModel(cfg.Embedding.Host)
	if err != nil {
		logger.Error("Failed to initialize embedding model: %v", err)
		os.Exit(1)
	}
	embedder := embed.NewGenerator(model, cfg.Embedding.Model, logger.New("embed"))

	var resultCache core.ResultCache
	if cfg.Cache.Enabled {
		rc := cache.NewRedisCache(cfg.RedisAddr(), cfg.Cache.Password, logger.New("cache"))
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("Redis at %s is not reachable yet: %v", cfg.RedisAddr(), err)
		}
		defer rc.Close()
		resultCache = rc
	}

	pcfg := pipeline.DefaultConfig()
	pcfg.Collection = cfg.Vector.Collection
	pcfg.Index = cfg.Vector.Index
	pcfg.Field = cfg.Vector.Field
	pcfg.ChunkSize = cfg.Chunk.Size
	pcfg.ChunkOverlap = cfg.Chunk.Overlap
	pcfg.Limit = cfg.Search.Limit
	pcfg.Oversampling = cfg.Search.Oversampling
	pcfg.CacheTTL = cfg.CacheTTL()
	pipe := pipeline.New(pcfg, src, embedder, store, resultCache, logger.New("pipeline"))

	// Kept as interfaces so a disabled summarizer stays a true nil.
	var botSummarizer telegram.Summarizer
	var apiSummarizer httpapi.Summarizer
	if cfg.LLM.APIKey != "" {
		s := llm.NewSummarizer(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
		}, llm.NewPromptGenerator(""), logger.New("llm"))
		botSummarizer, apiSummarizer = s, s
	} else {
		logger.Info("OPENROUTER_API_KEY not set, /ask is disabled")
	}

	policy := auth.NewPolicyService(cfg.Telegram.AdminUserIDs, cfg.Telegram.AllowedUserIDs, cfg.Telegram.AllowedChatIDs)

	bot, err := telegram.NewBot(cfg.Telegram.Token, pipe, botSummarizer, policy, telegram.Options{
		DocumentID: cfg.Document.ID,
		Limit:      cfg.Search.Limit,
		Timeout:    cfg.PipelineTimeout(),
	}, logger.New("telegram"))
	if err != nil {
		logger.Error("Failed to initialize Telegram bot: %v", err)
		os.Exit(1)
	}

	var app *fiber.App
	if cfg.HTTP.Enabled {
		app = fiber.New(fiber.Config{
			AppName:      "pantry",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: cfg.PipelineTimeout() + 10*time.Second,
		})
		app.Use(recover.New())
		app.Use(fiberlogger.New())
		httpapi.NewHandler(pipe, apiSummarizer, cfg.Document.ID, cfg.PipelineTimeout(), logger.New("http")).Register(app)

		go func() {
			logger.Info("HTTP API listening on %s", cfg.HTTPAddr())
			if err := app.Listen(cfg.HTTPAddr()); err != nil {
				logger.Error("HTTP server failed: %v", err)
			}
		}()
	}

	logger.Info("Starting bot...")
	go bot.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if app != nil {
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown: %v", err)
		}
	}

	logger.Info("Pantry has been shut down")
}

func newSource(ctx context.Context, cfg *config.Config) (core.DocumentSource, error) {
	switch cfg.Document.Source {
	case config.SourceFile:
		return source.NewFileSource(cfg.Document.Dir, logger.New("source")), nil
	default:
		return source.NewDriveSource(ctx, cfg.Document.CredentialsFile, logger.New("source"))
	}
}

func newStore(ctx context.Context, cfg *config.Config) (core.VectorStore, error) {
	log := logger.New("store")
	switch cfg.Vector.Backend {
	case config.BackendMongo:
		return rag.NewMongoStore(ctx, cfg.Vector.Mongo.URI, cfg.Vector.Mongo.Database, cfg.Vector.Field, log)
	case config.BackendPostgres:
		return rag.NewPostgresStore(cfg.Vector.Postgres.DSN, cfg.Vector.Field, log)
	case config.BackendMemory:
		// Nothing persists, so the index is registered on every start.
		s := rag.NewMemoryStore(log)
		return s, s.EnsureCollection(ctx, cfg.Vector.Collection, cfg.Vector.Index, cfg.Vector.Field)
	default:
		return rag.NewMilvusStore(ctx, cfg.MilvusAddr(), cfg.Vector.Field, log)
	}
}

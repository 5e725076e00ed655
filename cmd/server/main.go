package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/chative-sales/server/internal/agent/contexts"
	"github.com/chative-sales/server/internal/agent/conversations"
	"github.com/chative-sales/server/internal/agent/graph"
	"github.com/chative-sales/server/internal/agent/graph/nodes"
	"github.com/chative-sales/server/internal/agent/model"
	"github.com/chative-sales/server/internal/agent/repo"
	"github.com/chative-sales/server/internal/agent/turn"
	"github.com/chative-sales/server/internal/core"
	errx "github.com/chative-sales/server/internal/core/error"
	"github.com/chative-sales/server/internal/delivery"
	"github.com/chative-sales/server/internal/knowledge"
	"github.com/chative-sales/server/internal/metrics"
	"github.com/chative-sales/server/internal/transport/httpapi"
	"github.com/chative-sales/server/internal/worker"
	logx "github.com/chative-sales/server/pkg/logger"
	pkgredis "github.com/chative-sales/server/pkg/redis"
	pkgsqlite "github.com/chative-sales/server/pkg/sqlite"
)

// AppConfig defines all configurable parameters of the service, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"APP_ENV" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis  pkgredis.Config
	SQLite pkgsqlite.Config
	HTTP   httpapi.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Extraction   model.ExtractionModelConfig
	Classifier   model.ClassifierModelConfig
	Response     model.ResponseModelConfig
	Embedding    model.EmbeddingConfig
	Retrieval    model.RetrievalConfig
	Conversation model.ConversationConfig
	Worker       model.WorkerConfig
	Delivery     delivery.Config
}

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Panic().Err(err).Msg("failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logx.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg AppConfig) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	// ==================== Storage ====================
	db, err := cfg.SQLite.New()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := repo.Migrate(db); err != nil {
		return err
	}
	logx.Info().Str("path", cfg.SQLite.Path).Msg("sqlite ready")

	checks := map[string]httpapi.HealthCheck{
		"sqlite": func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
	}

	var rdb *goredis.Client
	if cfg.Redis.URL != "" {
		rdb, err = cfg.Redis.New()
		if err != nil {
			return errx.WrapRedis(err)
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logx.Info().Msg("connected to redis; embedding cache enabled")
	}

	// ==================== Knowledge ====================
	client, err := nodes.NewGenAIClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return err
	}

	genaiEmbedder, err := knowledge.NewGenAIEmbedder(client, cfg.Embedding, cfg.Conversation.ServiceTimeout)
	if err != nil {
		return err
	}
	var embedder knowledge.Embedder = genaiEmbedder
	if rdb != nil {
		embedder = knowledge.NewCachedEmbedder(genaiEmbedder, rdb, cfg.Embedding.CacheTTL)
	}

	store, err := knowledge.NewStore(repo.NewSQLKnowledgeRepository(db), embedder)
	if err != nil {
		return err
	}
	if err := store.Load(ctx); err != nil {
		return err
	}

	catalog, err := contexts.LoadCatalog(cfg.Retrieval.CatalogPath)
	if err != nil {
		return err
	}
	assembler, err := contexts.NewAssembler(catalog, store, cfg.Retrieval.TopK)
	if err != nil {
		return err
	}

	messages := conversations.NewMessagesManager(store, repo.NewSQLConversationRepository(db), cfg.Conversation)

	// ==================== Graph ====================
	chatModels, err := nodes.NewChatModels(ctx, client, nodes.ChatModelConfig{
		Extraction: &cfg.Extraction,
		Classifier: &cfg.Classifier,
		Response:   &cfg.Response,
		Timeout:    cfg.Conversation.ServiceTimeout,
	})
	if err != nil {
		return err
	}

	runner, err := graph.NewRunner(ctx, &graph.GraphConfig{
		ChatModels:  chatModels,
		Transcripts: messages,
		Assembler:   assembler,
	})
	if err != nil {
		return err
	}

	processor, err := turn.NewProcessor(runner, messages, cfg.Delivery.New(&http.Client{}))
	if err != nil {
		return err
	}

	// ==================== Serve ====================
	dispatcher := worker.New(worker.Config{
		Workers:         cfg.Worker.Count,
		QueueSize:       cfg.Worker.QueueSize,
		RetryIf:         func(err error) bool { return errors.Is(err, errx.ErrStorage) },
		RetryMaxElapsed: cfg.Worker.StorageRetryMaxElapsed,
	})

	server := httpapi.NewServer(cfg.HTTP, httpapi.NewHandler(processor, dispatcher, messages, checks), reg)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		logx.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		logx.Warn().Err(serr).Msg("http shutdown")
	}
	if derr := dispatcher.Close(shutdownCtx); derr != nil {
		logx.Warn().Err(derr).Msg("dispatcher did not drain in time")
	}
	logx.Info().Msg("server stopped")
	return err
}

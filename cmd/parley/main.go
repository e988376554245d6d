package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/gateway"
	"github.com/parleyhq/parley/internal/interview"
	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/questionbank"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/skillgraph"
	pgstore "github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/tools"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Parley...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/parley.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Provider router. Extra["callers"] pins a provider to specific callers
	// (interviewer, intent-classifier, feedback, recommender).
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Models: pc.Models, Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
			continue
		}
		for _, caller := range splitCallers(pc.Extra["callers"]) {
			router.Bind(caller, pc.ID)
		}
	}

	// Live session state: Redis when configured, in-process otherwise.
	var sessStore session.Store
	var memStore *session.MemoryStore
	if cfg.Database.Redis.URL != "" {
		opts, rErr := redis.ParseURL(cfg.Database.Redis.URL)
		if rErr != nil {
			logger.Fatal("invalid redis url", zap.Error(rErr))
		}
		client := redis.NewClient(opts)
		if pErr := client.Ping(context.Background()).Err(); pErr != nil {
			logger.Warn("Redis unavailable, using in-memory sessions", zap.Error(pErr))
			memStore = session.NewMemoryStore(cfg.Interview.SessionTTL())
			sessStore = memStore
		} else {
			sessStore = session.NewRedisStore(client, cfg.Interview.SessionTTL())
			logger.Info("Redis session store initialized")
		}
	} else {
		memStore = session.NewMemoryStore(cfg.Interview.SessionTTL())
		sessStore = memStore
	}

	// Durable archive for ended sessions.
	var archive *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without history", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			archive = ps
		}
	}

	// Long-term skill graph.
	var graph *skillgraph.Graph
	if cfg.Database.Neo4j.URI != "" {
		g, gErr := skillgraph.NewGraph(cfg.Database.Neo4j.URI, cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password, logger)
		if gErr != nil {
			logger.Warn("Neo4j unavailable, running without skill graph", zap.Error(gErr))
		} else if pErr := g.Ping(context.Background()); pErr != nil {
			logger.Warn("Neo4j unreachable, running without skill graph", zap.Error(pErr))
			g.Close(context.Background())
		} else {
			graph = g
			logger.Info("Skill graph initialized")
		}
	}

	// Vector question bank. Falls back to the built-in topic set when Qdrant
	// or the embedder is unavailable.
	var topicSource interview.TopicSource
	var bank *questionbank.Bank
	var embedder questionbank.Embedder
	if cfg.Embedding.Endpoint != "" {
		embedder = questionbank.NewAPIEmbedder(questionbank.EmbedderConfig{
			Endpoint:  cfg.Embedding.Endpoint,
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey,
			Dimension: cfg.Embedding.Dimension,
		})
	}
	if cfg.Database.Qdrant.Host != "" && embedder != nil {
		b, qErr := questionbank.NewBank(questionbank.Config{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		}, embedder, logger)
		if qErr != nil {
			logger.Warn("Qdrant unavailable, using built-in topics", zap.Error(qErr))
		} else if rErr := b.EnsureReady(context.Background()); rErr != nil {
			logger.Warn("question bank not ready, using built-in topics", zap.Error(rErr))
			b.Close()
		} else {
			bank = b
			topicSource = b
			logger.Info("Question bank initialized")
		}
	}

	// Recommendation agent tools.
	var jobs *tools.JobBoardClient
	var reviews *tools.ReviewClient
	var matcher *tools.SkillMatcher
	if cfg.Connectors.JobBoardEndpoint != "" {
		jobs = tools.NewJobBoardClient(cfg.Connectors.JobBoardEndpoint, cfg.Connectors.APIKey)
	}
	if cfg.Connectors.ReviewEndpoint != "" {
		reviews = tools.NewReviewClient(cfg.Connectors.ReviewEndpoint, cfg.Connectors.APIKey)
	}
	if embedder != nil {
		matcher = tools.NewSkillMatcher(embedder)
	}
	recTools := tools.RecommendationTools(jobs, reviews, matcher)

	// Interview core.
	runtime := agent.NewRuntime(router, logger)
	classifier := interview.NewClassifier(router, cfg.Interview.ConfidenceGate(), logger)
	machine := interview.NewMachine(router, classifier, cfg.Interview.TopicTimeLimit(), cfg.Interview.TurnThreshold(), logger)
	selector := interview.NewSelector(topicSource, logger)
	generator := interview.NewGenerator(router, runtime, recTools, cfg.Interview.PoolSize(), cfg.Interview.ReportTimeout(), logger)
	generator.SetAgentBounds(cfg.Agent.Steps(), cfg.Agent.MaxTime(), cfg.Agent.StepTimeout())
	manager := interview.NewManager(sessStore, machine, selector, generator, logger)
	if archive != nil {
		manager.SetArchiver(archive)
	}
	if graph != nil {
		manager.SetRecorder(graph)
	}

	// Chat platform gateway.
	gw := gateway.NewGateway(logger)
	bridge := gateway.NewBridge(manager, logger)
	bridge.Attach(gw)

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		gw.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger))
	}
	if err := gw.ConnectAll(context.Background()); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	handler := api.NewHandler(manager, archive, logger)

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Parley listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Parley...")
	ctx := context.Background()
	srv.Shutdown(ctx)
	gw.Close()
	if memStore != nil {
		memStore.Close()
	}
	if bank != nil {
		bank.Close()
	}
	if graph != nil {
		graph.Close(ctx)
	}
	if archive != nil {
		archive.Close()
	}
}

func splitCallers(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

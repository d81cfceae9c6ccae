package bootstrap

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	chclient "meridian/internal/adapters/clickhouse"
	"meridian/internal/adapters/config"
	"meridian/internal/adapters/embeddings"
	errnoop "meridian/internal/adapters/errors/noop"
	"meridian/internal/adapters/errors/sentry"
	"meridian/internal/adapters/kafka"
	pgclient "meridian/internal/adapters/postgres"
	redisclient "meridian/internal/adapters/redis"
	"meridian/internal/adapters/toolservice"
	"meridian/internal/agents"
	"meridian/internal/consumers"
	"meridian/internal/domain/reasoning"
	"meridian/internal/domain/stats"
	"meridian/internal/events"
	"meridian/internal/metrics"
	chrepo "meridian/internal/repository/clickhouse"
	"meridian/internal/repository/memory"
	pgrepo "meridian/internal/repository/postgres"
	redisrepo "meridian/internal/repository/redis"
	"meridian/internal/services/analysis"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

const statsBatchSize = 500

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the configured data stores. Unconfigured stores are skipped.
func (c *Container) MustInitInfrastructure() {
	var err error
	ctx := c.Context

	if c.Config.Postgres.Enabled() {
		c.Log.Info("Connecting to PostgreSQL...")
		c.PG, err = pgclient.NewClient(ctx, c.Config.Postgres)
		if err != nil {
			c.Log.Fatalf("failed to connect postgres: %v", err)
		}
		c.Log.Info("✓ PostgreSQL connected")
	}

	if c.Config.ClickHouse.Enabled() {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(ctx, c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("✓ ClickHouse connected")
	}

	if c.Config.Redis.Enabled() {
		c.Log.Info("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(ctx, c.Config.Redis)
		if err != nil {
			c.Log.Fatalf("failed to connect redis: %v", err)
		}
		c.Log.Info("✓ Redis connected")
	}
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories picks a store per repository
func (c *Container) MustInitRepositories() {
	if c.PG != nil {
		c.Repos.Reasoning = pgrepo.NewReasoningRepository(c.PG.DB())
	} else {
		c.Log.Info("PostgreSQL not configured, reasoning bank kept in memory")
		c.Repos.Reasoning = memory.NewReasoningRepository()
	}

	if c.CH != nil {
		c.Repos.Stats = chrepo.NewStatsRepository(c.CH.Conn())
	}

	if c.Redis != nil {
		c.Repos.Insights = redisrepo.NewInsightArchive(c.Redis.Client(), c.Config.Redis.InsightTTL)
	}

	c.Log.Infow("✓ Repositories initialized",
		"reasoning", storeName(c.PG != nil, "postgres", "memory"),
		"tool_stats", storeName(c.CH != nil, "clickhouse", "disabled"),
		"insight_archive", storeName(c.Redis != nil, "redis", "disabled"),
	)
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters creates the tool service client, embeddings and Kafka clients
func (c *Container) MustInitAdapters() {
	tools, err := toolservice.NewClient(c.Config.ToolService, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to create tool service client: %v", err)
	}
	c.Adapters.Tools = tools

	if c.Config.Embeddings.Enabled() {
		provider, err := embeddings.NewProvider(c.Config.Embeddings, c.Log)
		if err != nil {
			c.Log.Warnw("Embeddings unavailable, semantic routing disabled", "error", err)
		} else {
			c.Adapters.EmbeddingProvider = provider
			c.Log.Infow("✓ Embeddings initialized", "model", provider.Name(), "dimensions", provider.Dimensions())
		}
	}

	if c.Config.Kafka.Enabled() {
		c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
		c.Adapters.FeedbackConsumer = provideKafkaConsumer(c.Config, c.Config.Kafka.FeedbackTopic, c.Log)
	}
}

// ========================================
// Phase 5: Analysis Pipeline
// ========================================

// MustInitServices builds the bus, reasoning bank, chief analyst and orchestrator
func (c *Container) MustInitServices() {
	cfg := c.Config
	c.Services.Bus = events.NewBus()

	var (
		embedder   reasoning.Embedder
		classifier analysis.Classifier
		router     analysis.Router
	)
	if p := c.Adapters.EmbeddingProvider; p != nil {
		embedder = p
		c.Services.Router = analysis.NewSemanticRouter(p, cfg.Embeddings.MinScore, c.Log)
		classifier = c.Services.Router
		router = c.Services.Router
	}

	c.Services.Bank = reasoning.NewService(c.Repos.Reasoning, reasoning.Config{
		Embedder:      embedder,
		MinSimilarity: cfg.Embeddings.MinScore,
	}, c.Log)

	c.Services.Chief = analysis.NewChiefAnalyst(cfg.Orchestration, classifier, router, c.Services.Bus, c.Log)
	c.Services.Registry = agents.NewDefaultRegistry(agents.OptionsFromConfig(cfg.Orchestration, c.Services.Bank, c.Log))
	c.Services.Orchestrator = agents.NewOrchestrator(
		c.Services.Chief,
		c.Services.Bus,
		c.Services.Registry,
		c.Adapters.Tools,
		c.Services.Bank,
		c.Repos.Insights,
		c.Log,
	).WithTracker(c.ErrorTracker)

	if cfg.App.MetricsAddr != "" {
		metrics.Init()
		prometheus.MustRegister(metrics.NewCustomCollector(c.Log, c.pgDB(), c.chConn()))

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		c.MetricsServer = &http.Server{
			Addr:              cfg.App.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	c.Log.Infow("✓ Analysis pipeline initialized",
		"specialists", len(c.Services.Registry.List()),
		"semantic_routing", c.Services.Router != nil,
		"confidence_threshold", cfg.Orchestration.ConfidenceThreshold,
		"max_specialists", cfg.Orchestration.MaxSpecialists,
	)
}

// ========================================
// Phase 6: Background Processing
// ========================================

// MustInitBackground subscribes stats and Kafka forwarding to the bus and prepares consumers
func (c *Container) MustInitBackground() {
	if c.Repos.Stats != nil {
		c.Background.StatsRecorder = stats.NewRecorder(c.Repos.Stats, statsBatchSize, c.Log)
		c.Background.StatsRecorder.Attach(c.Services.Bus)
	}

	if c.Adapters.KafkaProducer != nil {
		c.Background.Forwarder = events.NewForwarder(c.Adapters.KafkaProducer, 5*time.Second, c.Log)
		c.Background.Forwarder.Attach(c.Services.Bus)
	}

	if c.Adapters.FeedbackConsumer != nil {
		c.Background.FeedbackSvc = consumers.NewFeedbackConsumer(
			c.Adapters.FeedbackConsumer,
			c.Services.Bank,
			c.Config.Kafka.FeedbackTopic,
			c.Log,
		)
	}

	c.Log.Infow("✓ Background processing initialized",
		"tool_stats", c.Background.StatsRecorder != nil,
		"event_forwarding", c.Background.Forwarder != nil,
		"feedback_consumer", c.Background.FeedbackSvc != nil,
	)
}

// ========================================
// Helper Provider Functions
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Async:   true,
	}, log)
	log.Infow("✓ Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	return producer
}

func provideKafkaConsumer(cfg *config.Config, topic string, log *logger.Logger) *kafka.Consumer {
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   topic,
	}, log)
}

func storeName(enabled bool, on, off string) string {
	if enabled {
		return on
	}
	return off
}

package bootstrap

import (
	"context"
	"net/http"
	"sync"
	"time"

	chclient "meridian/internal/adapters/clickhouse"
	"meridian/internal/adapters/config"
	"meridian/internal/adapters/embeddings"
	"meridian/internal/adapters/kafka"
	pgclient "meridian/internal/adapters/postgres"
	redisclient "meridian/internal/adapters/redis"
	"meridian/internal/adapters/toolservice"
	"meridian/internal/agents"
	"meridian/internal/consumers"
	"meridian/internal/domain/insight"
	"meridian/internal/domain/reasoning"
	"meridian/internal/domain/stats"
	"meridian/internal/events"
	"meridian/internal/services/analysis"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure (all optional)
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos      *Repositories
	Adapters   *Adapters
	Services   *Services
	Background *Background

	MetricsServer *http.Server

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups the stores. Reasoning falls back to memory; Stats and
// Insights stay nil when their store is not configured.
type Repositories struct {
	Reasoning reasoning.Repository
	Stats     stats.Repository
	Insights  insight.Archive
}

// Adapters groups all external adapters
type Adapters struct {
	Tools             *toolservice.Client
	EmbeddingProvider embeddings.Provider
	KafkaProducer     *kafka.Producer
	FeedbackConsumer  *kafka.Consumer
}

// Services groups the analysis pipeline
type Services struct {
	Bus          *events.Bus
	Bank         *reasoning.Service
	Router       *analysis.SemanticRouter
	Chief        *analysis.ChiefAnalyst
	Registry     *agents.Registry
	Orchestrator *agents.Orchestrator
}

// Background groups all background processing components
type Background struct {
	StatsRecorder *stats.Recorder
	Forwarder     *events.Forwarder
	FeedbackSvc   *consumers.FeedbackConsumer
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:      &Repositories{},
		Adapters:   &Adapters{},
		Services:   &Services{},
		Background: &Background{},
		Lifecycle:  NewLifecycle(),
		WG:         &sync.WaitGroup{},
		Context:    ctx,
		Cancel:     cancel,
	}
}

// MustInit initializes all components in the correct order.
// Panics on any initialization error (fail-fast at startup).
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitComponents()
}

// MustInitComponents wires everything after Config and Log are set
func (c *Container) MustInitComponents() {
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitBackground()
}

// Start launches background processing: stats flushing, the feedback consumer
// and the metrics endpoint
func (c *Container) Start() error {
	c.Log.Info("Starting background components...")

	if r := c.Background.StatsRecorder; r != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			r.Run(c.Context, 5*time.Second)
		}()
	}

	if svc := c.Background.FeedbackSvc; svc != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			if err := svc.Start(c.Context); err != nil && c.Context.Err() == nil {
				c.Log.Errorw("Feedback consumer failed", "error", err)
			}
		}()
	}

	if srv := c.MetricsServer; srv != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.Log.Errorw("Metrics server failed", "error", err)
			}
		}()
		c.Log.Infow("Metrics endpoint listening", "addr", srv.Addr)
	}

	c.Log.Info("✓ Background components started")
	return nil
}

// Analyze runs one query through the orchestrator
func (c *Container) Analyze(ctx context.Context, query string, priority string) (*AnalysisOutcome, error) {
	req, err := c.Services.Orchestrator.Analyze(ctx, query, parsePriority(priority))
	if err != nil {
		return nil, err
	}
	return &AnalysisOutcome{Request: req}, nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")
	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.MetricsServer,
		c.Adapters.FeedbackConsumer,
		c.Adapters.KafkaProducer,
		c.PG,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}

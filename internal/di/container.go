// Package di wires every core component into a running Container: config,
// clock/calendar, broker, market-data providers, stores, the lifecycle
// engine, capital manager, strategy registry, executor, trailing engine,
// archiver, metrics, orchestrator, and the operator HTTP server. It follows
// the teacher's sequential-wiring shape (internal/di/wire.go): build each
// layer in order and return the first error; nothing built earlier is
// unwound on failure.
package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/goldcore/internal/archive"
	"github.com/aristath/goldcore/internal/broker/httpbroker"
	"github.com/aristath/goldcore/internal/capital"
	"github.com/aristath/goldcore/internal/clock"
	"github.com/aristath/goldcore/internal/config"
	"github.com/aristath/goldcore/internal/executor"
	"github.com/aristath/goldcore/internal/lifecycle"
	"github.com/aristath/goldcore/internal/marketdata"
	"github.com/aristath/goldcore/internal/marketdata/providers/httpprovider"
	"github.com/aristath/goldcore/internal/marketdata/providers/streamprovider"
	"github.com/aristath/goldcore/internal/metrics"
	"github.com/aristath/goldcore/internal/orchestrator"
	"github.com/aristath/goldcore/internal/server"
	"github.com/aristath/goldcore/internal/store"
	"github.com/aristath/goldcore/internal/strategy"
	"github.com/aristath/goldcore/internal/trailing"

	// Registered by blank import so each runner's init() adds itself to the
	// process-wide strategy registry before BuildAll runs (C8).
	_ "github.com/aristath/goldcore/internal/strategy/runners/cashsecuredput"
	_ "github.com/aristath/goldcore/internal/strategy/runners/gapmomentum"
	_ "github.com/aristath/goldcore/internal/strategy/runners/longoption"
)

// Container holds every long-lived component main needs to start and stop
// the process.
type Container struct {
	Config       *config.Config
	Log          zerolog.Logger
	Clock        clock.Clock
	Calendar     *clock.Calendar
	Store        store.Store
	Broker       *httpbroker.Client
	MarketData   *marketdata.Manager
	Capital      *capital.Manager
	Lifecycle    *lifecycle.Engine
	Executor     *executor.Executor
	Trailing     *trailing.Engine
	Metrics      *metrics.Collectors
	Archiver     *archive.Archiver
	Playbooks    *config.PlaybookSet
	Orchestrator *orchestrator.Orchestrator
	Server       *server.Server

	streamProvider *streamprovider.Provider
}

// Build performs the full wiring sequence and returns a ready-to-run
// Container. On error it returns immediately without closing anything; the
// filesystem store it opens holds no open handles between calls.
func Build(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	c.Clock = clock.NewSystem(time.Local)
	c.Calendar = clock.NewCalendar(c.Clock, cfg.MarketHours, usMarketHolidays(c.Clock.Today().Year(), c.Clock.Today().Year()+1))

	st, err := store.NewFSStore(log, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("di: initializing play store: %w", err)
	}
	c.Store = st

	c.Broker = httpbroker.New(httpbroker.Config{
		BaseURL: cfg.Broker.BaseURL,
		APIKey:  cfg.Broker.APIKey,
	})

	md, stream, err := buildMarketData(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("di: initializing market data: %w", err)
	}
	c.MarketData = md
	c.streamProvider = stream

	c.Capital = capital.NewManager(log, c.Broker, c.Store, cfg.Capital)
	c.Lifecycle = lifecycle.NewEngine(log, c.Store, c.Broker, c.Clock)
	c.Executor = executor.New(log, c.Broker, c.MarketData)
	c.Trailing = trailing.New(log, c.Clock, c.Calendar)

	c.Metrics = metrics.New()
	c.MarketData.WithMetrics(c.Metrics)
	c.Executor.WithMetrics(c.Metrics)
	c.Trailing.WithMetrics(c.Metrics)

	playbooks, err := config.LoadPlaybooks(cfg.PlaybookDir)
	if err != nil {
		return nil, fmt.Errorf("di: loading playbooks: %w", err)
	}
	c.Playbooks = config.NewPlaybookSet(playbooks)

	if cfg.Archive.Enabled {
		archiver, err := buildArchiver(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("di: initializing archiver: %w", err)
		}
		c.Archiver = archiver
	}

	runners := strategy.BuildAll(strategy.Deps{
		MarketData: c.MarketData,
		Broker:     c.Broker,
		Playbooks:  c.Playbooks,
	})
	log.Info().Int("count", len(runners)).Msg("strategies registered")

	c.Orchestrator = orchestrator.New(
		log,
		cfg.Orchestration,
		c.Clock,
		c.Calendar,
		c.MarketData,
		c.Capital,
		c.Store,
		c.Lifecycle,
		c.Executor,
		c.Broker,
		c.Trailing,
		c.Archiver,
		c.Metrics,
		runners,
		c.Playbooks,
	)

	c.Server = server.New(server.Config{
		Log:      log,
		Store:    c.Store,
		Orch:     c.Orchestrator,
		Registry: c.Metrics.Registry(),
		Port:     cfg.HTTPPort,
		DevMode:  false,
	})

	return c, nil
}

// buildMarketData composes the reference HTTP provider as primary, plus an
// optional websocket streaming provider registered as "stream" whenever it is
// enabled (Start runs its read loop); the manager only consults it when
// FallbackOrder names "stream".
func buildMarketData(cfg *config.Config, log zerolog.Logger) (*marketdata.Manager, *streamprovider.Provider, error) {
	providers := map[string]marketdata.Provider{
		"http": httpprovider.New(httpprovider.Config{
			Name:          "http",
			BaseURL:       cfg.HTTPProvider.BaseURL,
			APIKey:        cfg.HTTPProvider.APIKey,
			RatePerSecond: cfg.HTTPProvider.RatePerSecond,
			Burst:         cfg.HTTPProvider.Burst,
		}),
	}
	var stream *streamprovider.Provider
	if cfg.StreamProvider.Enabled {
		stream = streamprovider.New(streamprovider.Config{
			Name:    "stream",
			URL:     cfg.StreamProvider.URL,
			Symbols: cfg.StreamProvider.Symbols,
		})
		providers["stream"] = stream
	}
	mgr, err := marketdata.NewManager(log, cfg.MarketData, providers)
	if err != nil {
		return nil, nil, err
	}
	return mgr, stream, nil
}

// buildArchiver resolves AWS credentials the default way (environment,
// shared config, instance role) via config.LoadDefaultConfig, matching how
// the AWS SDK expects a long-running service to authenticate rather than
// threading a static key pair through goldcore's own config.
func buildArchiver(cfg *config.Config, log zerolog.Logger) (*archive.Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Archive.Region))
	if err != nil {
		return nil, fmt.Errorf("di: loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client)
	return archive.New(uploader, cfg.Archive.Bucket, cfg.Archive.KeyPrefix, log), nil
}

// Start brings up background components: the streaming provider's read
// loop (if configured) and the operator HTTP server. It does not start the
// orchestrator's cron loop — callers choose RunForever vs. a single RunCycle
// depending on the invoked subcommand.
func (c *Container) Start(ctx context.Context) {
	if c.streamProvider != nil {
		go c.streamProvider.Run(ctx)
	}
	go func() {
		if err := c.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.Log.Error().Err(err).Msg("operator HTTP server stopped unexpectedly")
		}
	}()
}

// Shutdown tears down the HTTP server and closes the store, in reverse
// order of construction.
func (c *Container) Shutdown(ctx context.Context) error {
	if err := c.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("di: shutting down server: %w", err)
	}
	if closer, ok := c.Store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

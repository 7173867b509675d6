// Package config loads goldcore's process configuration from the environment
// (via .env during development) and from the on-disk playbook directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ExecutionMode selects how the orchestrator fans out across strategies.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
)

// Config is the single static configuration tree for one process invocation.
type Config struct {
	DataDir      string
	PlaybookDir  string
	LogLevel     string
	LogPretty    bool
	HTTPPort     int

	Orchestration OrchestrationConfig
	MarketData    MarketDataConfig
	Capital       CapitalConfig
	Trailing      TrailingConfig
	MarketHours   MarketHoursConfig
	Archive       ArchiveConfig
	Broker        BrokerConfig
	HTTPProvider  HTTPProviderConfig
	StreamProvider StreamProviderConfig
}

// BrokerConfig configures the reference REST brokerage client.
type BrokerConfig struct {
	BaseURL string
	APIKey  string
}

// HTTPProviderConfig configures the reference REST market-data provider.
type HTTPProviderConfig struct {
	BaseURL       string
	APIKey        string
	RatePerSecond float64
	Burst         int
}

// StreamProviderConfig configures the reference websocket quote provider.
// It is registered and started whenever Enabled; the market-data manager
// only tries it when FallbackOrder includes "stream".
type StreamProviderConfig struct {
	Enabled bool
	URL     string
	Symbols []string
}

type OrchestrationConfig struct {
	Enabled           bool
	Mode              ExecutionMode
	MaxParallelWorkers int
	DryRun            bool
	CycleCron         string
}

type MarketDataConfig struct {
	PrimaryProvider string
	FallbackEnabled bool
	FallbackOrder   []string
	MaxAttempts     int
	CacheEnabled    bool
	CacheMaxItems   int
}

type CapitalConfig struct {
	Enabled                  bool
	MaxTotalOpenPositions    int
	PerSymbolMaxOpenPositions int
	MaxCapitalDeployedPct    float64
	BuyingPowerReservePct    float64
}

type TrailingConfig struct {
	Enabled                bool
	ActivationThresholdPct float64
	UpdateMode             string // "eod" | "cycle"
}

type MarketHoursConfig struct {
	RegularStart string // "HH:MM"
	RegularEnd   string
}

type ArchiveConfig struct {
	Enabled    bool
	Bucket     string
	Region     string
	KeyPrefix  string
}

// Load resolves configuration from the environment, optionally overlaid by a
// .env file in the working directory. It mirrors the teacher's split between
// process-environment defaults and an on-disk overlay: here the overlay is the
// playbook directory rather than a settings database.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; absence is not an error

	cfg := &Config{
		DataDir:     getEnv("GOLDCORE_DATA_DIR", "./data"),
		PlaybookDir: getEnv("GOLDCORE_PLAYBOOK_DIR", "./playbooks"),
		LogLevel:    getEnv("GOLDCORE_LOG_LEVEL", "info"),
		LogPretty:   getEnvBool("GOLDCORE_LOG_PRETTY", false),
		HTTPPort:    getEnvInt("GOLDCORE_HTTP_PORT", 8088),

		Orchestration: OrchestrationConfig{
			Enabled:            getEnvBool("GOLDCORE_ORCH_ENABLED", true),
			Mode:               ExecutionMode(getEnv("GOLDCORE_ORCH_MODE", string(ModeSequential))),
			MaxParallelWorkers: getEnvInt("GOLDCORE_ORCH_MAX_WORKERS", 4),
			DryRun:             getEnvBool("GOLDCORE_ORCH_DRY_RUN", false),
			CycleCron:          getEnv("GOLDCORE_ORCH_CRON", "*/1 9-16 * * 1-5"),
		},
		MarketData: MarketDataConfig{
			PrimaryProvider: getEnv("GOLDCORE_MD_PRIMARY", "http"),
			FallbackEnabled: getEnvBool("GOLDCORE_MD_FALLBACK_ENABLED", true),
			FallbackOrder:   splitCSV(getEnv("GOLDCORE_MD_FALLBACK_ORDER", "http,stream")),
			MaxAttempts:     getEnvInt("GOLDCORE_MD_MAX_ATTEMPTS", 2),
			CacheEnabled:    getEnvBool("GOLDCORE_MD_CACHE_ENABLED", true),
			CacheMaxItems:   getEnvInt("GOLDCORE_MD_CACHE_MAX_ITEMS", 5000),
		},
		Capital: CapitalConfig{
			Enabled:                   getEnvBool("GOLDCORE_CAP_ENABLED", true),
			MaxTotalOpenPositions:     getEnvInt("GOLDCORE_CAP_MAX_TOTAL_OPEN", 20),
			PerSymbolMaxOpenPositions: getEnvInt("GOLDCORE_CAP_MAX_PER_SYMBOL", 2),
			MaxCapitalDeployedPct:     getEnvFloat("GOLDCORE_CAP_MAX_DEPLOYED_PCT", 60.0),
			BuyingPowerReservePct:     getEnvFloat("GOLDCORE_CAP_BP_RESERVE_PCT", 10.0),
		},
		Trailing: TrailingConfig{
			Enabled:                getEnvBool("GOLDCORE_TRAIL_ENABLED", true),
			ActivationThresholdPct: getEnvFloat("GOLDCORE_TRAIL_ACTIVATION_PCT", 15.0),
			UpdateMode:             getEnv("GOLDCORE_TRAIL_UPDATE_MODE", "eod"),
		},
		MarketHours: MarketHoursConfig{
			RegularStart: getEnv("GOLDCORE_MARKET_START", "09:30"),
			RegularEnd:   getEnv("GOLDCORE_MARKET_END", "16:00"),
		},
		Archive: ArchiveConfig{
			Enabled:   getEnvBool("GOLDCORE_ARCHIVE_ENABLED", false),
			Bucket:    getEnv("GOLDCORE_ARCHIVE_BUCKET", ""),
			Region:    getEnv("GOLDCORE_ARCHIVE_REGION", "us-east-1"),
			KeyPrefix: getEnv("GOLDCORE_ARCHIVE_PREFIX", "plays/"),
		},
		Broker: BrokerConfig{
			BaseURL: getEnv("GOLDCORE_BROKER_BASE_URL", "https://api.broker.example/v1"),
			APIKey:  getEnv("GOLDCORE_BROKER_API_KEY", ""),
		},
		HTTPProvider: HTTPProviderConfig{
			BaseURL:       getEnv("GOLDCORE_MD_HTTP_BASE_URL", "https://marketdata.example/v1"),
			APIKey:        getEnv("GOLDCORE_MD_HTTP_API_KEY", ""),
			RatePerSecond: getEnvFloat("GOLDCORE_MD_HTTP_RATE_PER_SEC", 5.0),
			Burst:         getEnvInt("GOLDCORE_MD_HTTP_BURST", 5),
		},
		StreamProvider: StreamProviderConfig{
			Enabled: getEnvBool("GOLDCORE_MD_STREAM_ENABLED", false),
			URL:     getEnv("GOLDCORE_MD_STREAM_URL", "wss://marketdata.example/stream"),
			Symbols: splitCSV(getEnv("GOLDCORE_MD_STREAM_SYMBOLS", "")),
		},
	}

	if cfg.Orchestration.Mode != ModeSequential && cfg.Orchestration.Mode != ModeParallel {
		return nil, fmt.Errorf("config: invalid strategy_orchestration.mode %q", cfg.Orchestration.Mode)
	}

	abs, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolving data dir: %w", err)
	}
	cfg.DataDir = abs

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RegularHoursWindow parses MarketHours into today's start/end instants.
func (c MarketHoursConfig) RegularHoursWindow(day time.Time) (start, end time.Time, err error) {
	start, err = parseHHMMOn(day, c.RegularStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("config: market_hours.regular_hours.start: %w", err)
	}
	end, err = parseHHMMOn(day, c.RegularEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("config: market_hours.regular_hours.end: %w", err)
	}
	return start, end, nil
}

func parseHHMMOn(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

package config

import (
	"time"

	"edustack-hq/turnstile/pkg/tiers"
)

// Config is the root configuration structure for turnstile. It covers
// the HTTP server, logging, admission limits, tier overrides, pricing,
// quota storage, and the audit trail.
type Config struct {
	// Server contains HTTP server configuration including listen
	// address, timeouts, and graceful shutdown.
	Server ServerConfig `yaml:"server"`

	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Limits contains the global and per-IP admission ceilings and
	// the escalation block durations.
	Limits LimitsConfig `yaml:"limits"`

	// Tiers contains per-tier limit overrides. Keys are tier names;
	// any field left zero keeps its built-in default. The resulting
	// table must still satisfy the tier ordering invariant.
	Tiers map[string]tiers.Limits `yaml:"tiers"`

	// Pricing contains the token cost rates and hot-reload settings.
	Pricing PricingConfig `yaml:"pricing"`

	// Storage contains the quota ledger persistence configuration.
	Storage StorageConfig `yaml:"storage"`

	// Audit contains the denial/block audit trail configuration.
	Audit AuditConfig `yaml:"audit"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire
	// request, including the body. Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes
	// of the response. Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes bounds request header parsing. Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: json or text. Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file positions in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// LimitsConfig contains the admission ceilings that are not tier
// scoped: the global load-shedding windows, the per-IP windows, and
// the escalation block durations.
type LimitsConfig struct {
	// GlobalPerMinute is the aggregate 1-minute ceiling across all
	// callers. Default: 1000
	GlobalPerMinute int `yaml:"global_per_minute"`

	// GlobalPerHour is the aggregate 1-hour ceiling. Default: 20000
	GlobalPerHour int `yaml:"global_per_hour"`

	// IPPerMinute is the per-IP 1-minute ceiling. Default: 20
	IPPerMinute int `yaml:"ip_per_minute"`

	// IPPerHour is the per-IP 1-hour ceiling. Default: 200
	IPPerHour int `yaml:"ip_per_hour"`

	// WindowCapacity bounds each per-key sliding window sequence.
	// Default: 10000
	WindowCapacity int `yaml:"window_capacity"`

	// UserBlockDuration is the temporary block applied when a user
	// crosses twice their minute limit. Default: 5m
	UserBlockDuration time.Duration `yaml:"user_block_duration"`

	// IPBlockDuration is the temporary block applied when an IP
	// crosses three times the IP minute ceiling. Default: 10m
	IPBlockDuration time.Duration `yaml:"ip_block_duration"`

	// JanitorInterval is how often idle counter keys are pruned.
	// Default: 1m
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

// PricingConfig contains token pricing for the usage ledger.
type PricingConfig struct {
	// InputPerMillion is the USD cost per 1M input tokens.
	// Default: 0.075
	InputPerMillion float64 `yaml:"input_per_million"`

	// OutputPerMillion is the USD cost per 1M output tokens.
	// Default: 0.30
	OutputPerMillion float64 `yaml:"output_per_million"`

	// Watch enables hot-reloading of pricing when the config file
	// changes on disk. Default: false
	Watch bool `yaml:"watch"`
}

// Storage backend names.
const (
	// BackendMemory keeps records in process memory only.
	BackendMemory = "memory"

	// BackendSQLite persists records to a SQLite database file.
	BackendSQLite = "sqlite"
)

// StorageConfig contains quota ledger persistence configuration.
type StorageConfig struct {
	// Backend selects the storage backend: memory or sqlite.
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path. Ignored for the memory
	// backend. Default: "data/usage.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// AuditConfig contains audit trail configuration.
type AuditConfig struct {
	// Enabled controls whether denial and block events are recorded.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Backend selects the audit store: memory or sqlite.
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path for audit events.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// Buffer is the async recorder channel size. Default: 1000
	Buffer int `yaml:"buffer"`

	// WriteTimeout bounds each audit store write. Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RetentionDays is how long audit events are kept. A negative
	// value disables pruning. Default: 90
	RetentionDays int `yaml:"retention_days"`

	// RetentionSchedule is the cron expression for the retention
	// pruner. Default: "0 3 * * *" (daily at 03:00)
	RetentionSchedule string `yaml:"retention_schedule"`
}

// AuditEnabled reports the effective audit switch, treating an
// unset value as enabled.
func (c *AuditConfig) AuditEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TierLimits merges the configured tier overrides onto the built-in
// defaults and returns the full limits table. Zero fields in an
// override keep the default value for that field.
func (c *Config) TierLimits() map[string]tiers.Limits {
	merged := tiers.DefaultLimits()
	for name, override := range c.Tiers {
		base, ok := merged[name]
		if !ok {
			// Unknown tier names are caught by Validate; skip here.
			continue
		}
		if override.RequestsPerMinute > 0 {
			base.RequestsPerMinute = override.RequestsPerMinute
		}
		if override.RequestsPerHour > 0 {
			base.RequestsPerHour = override.RequestsPerHour
		}
		if override.RequestsPerDay > 0 {
			base.RequestsPerDay = override.RequestsPerDay
		}
		if override.TokensPerMinute > 0 {
			base.TokensPerMinute = override.TokensPerMinute
		}
		if override.TokensPerDay > 0 {
			base.TokensPerDay = override.TokensPerDay
		}
		if override.BurstSize > 0 {
			base.BurstSize = override.BurstSize
		}
		merged[name] = base
	}
	return merged
}

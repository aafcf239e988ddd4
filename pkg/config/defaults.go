package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Logging defaults
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "json"

	// Limits defaults
	DefaultGlobalPerMinute   = 1000
	DefaultGlobalPerHour     = 20000
	DefaultIPPerMinute       = 20
	DefaultIPPerHour         = 200
	DefaultWindowCapacity    = 10000
	DefaultUserBlockDuration = 5 * time.Minute
	DefaultIPBlockDuration   = 10 * time.Minute
	DefaultJanitorInterval   = time.Minute

	// Pricing defaults
	DefaultInputPerMillion  = 0.075
	DefaultOutputPerMillion = 0.30

	// Storage defaults
	DefaultStorageBackend     = BackendSQLite
	DefaultStoragePath        = "data/usage.db"
	DefaultStorageBusyTimeout = 5 * time.Second

	// Audit defaults
	DefaultAuditBackend           = BackendSQLite
	DefaultAuditPath              = "data/audit.db"
	DefaultAuditBuffer            = 1000
	DefaultAuditWriteTimeout      = 5 * time.Second
	DefaultAuditRetentionDays     = 90
	DefaultAuditRetentionSchedule = "0 3 * * *"
)

// ApplyDefaults fills in default values for any zero-valued fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}

	if cfg.Limits.GlobalPerMinute == 0 {
		cfg.Limits.GlobalPerMinute = DefaultGlobalPerMinute
	}
	if cfg.Limits.GlobalPerHour == 0 {
		cfg.Limits.GlobalPerHour = DefaultGlobalPerHour
	}
	if cfg.Limits.IPPerMinute == 0 {
		cfg.Limits.IPPerMinute = DefaultIPPerMinute
	}
	if cfg.Limits.IPPerHour == 0 {
		cfg.Limits.IPPerHour = DefaultIPPerHour
	}
	if cfg.Limits.WindowCapacity == 0 {
		cfg.Limits.WindowCapacity = DefaultWindowCapacity
	}
	if cfg.Limits.UserBlockDuration == 0 {
		cfg.Limits.UserBlockDuration = DefaultUserBlockDuration
	}
	if cfg.Limits.IPBlockDuration == 0 {
		cfg.Limits.IPBlockDuration = DefaultIPBlockDuration
	}
	if cfg.Limits.JanitorInterval == 0 {
		cfg.Limits.JanitorInterval = DefaultJanitorInterval
	}

	if cfg.Pricing.InputPerMillion == 0 {
		cfg.Pricing.InputPerMillion = DefaultInputPerMillion
	}
	if cfg.Pricing.OutputPerMillion == 0 {
		cfg.Pricing.OutputPerMillion = DefaultOutputPerMillion
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultStorageBusyTimeout
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = DefaultAuditPath
	}
	if cfg.Audit.Buffer == 0 {
		cfg.Audit.Buffer = DefaultAuditBuffer
	}
	if cfg.Audit.WriteTimeout == 0 {
		cfg.Audit.WriteTimeout = DefaultAuditWriteTimeout
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Audit.RetentionSchedule == "" {
		cfg.Audit.RetentionSchedule = DefaultAuditRetentionSchedule
	}
}

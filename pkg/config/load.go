package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified
// path. It applies default values, validates the configuration, and
// returns any errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention TURNSTILE_SECTION_FIELD (e.g.
// TURNSTILE_SERVER_LISTEN_ADDRESS) and always take precedence over
// file values.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration produced by defaults alone,
// without reading any file. Used when no config file is given.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("TURNSTILE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("TURNSTILE_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("TURNSTILE_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("TURNSTILE_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Logging overrides
	if val := os.Getenv("TURNSTILE_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("TURNSTILE_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	// Limits overrides
	if val := os.Getenv("TURNSTILE_LIMITS_GLOBAL_PER_MINUTE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Limits.GlobalPerMinute = i
		}
	}
	if val := os.Getenv("TURNSTILE_LIMITS_GLOBAL_PER_HOUR"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Limits.GlobalPerHour = i
		}
	}
	if val := os.Getenv("TURNSTILE_LIMITS_IP_PER_MINUTE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Limits.IPPerMinute = i
		}
	}
	if val := os.Getenv("TURNSTILE_LIMITS_IP_PER_HOUR"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Limits.IPPerHour = i
		}
	}
	if val := os.Getenv("TURNSTILE_LIMITS_USER_BLOCK_DURATION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Limits.UserBlockDuration = d
		}
	}
	if val := os.Getenv("TURNSTILE_LIMITS_IP_BLOCK_DURATION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Limits.IPBlockDuration = d
		}
	}

	// Pricing overrides
	if val := os.Getenv("TURNSTILE_PRICING_INPUT_PER_MILLION"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Pricing.InputPerMillion = f
		}
	}
	if val := os.Getenv("TURNSTILE_PRICING_OUTPUT_PER_MILLION"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Pricing.OutputPerMillion = f
		}
	}
	if val := os.Getenv("TURNSTILE_PRICING_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Pricing.Watch = b
		}
	}

	// Storage overrides
	if val := os.Getenv("TURNSTILE_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("TURNSTILE_STORAGE_PATH"); val != "" {
		cfg.Storage.Path = val
	}

	// Audit overrides
	if val := os.Getenv("TURNSTILE_AUDIT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Audit.Enabled = &b
		}
	}
	if val := os.Getenv("TURNSTILE_AUDIT_BACKEND"); val != "" {
		cfg.Audit.Backend = val
	}
	if val := os.Getenv("TURNSTILE_AUDIT_PATH"); val != "" {
		cfg.Audit.Path = val
	}
	if val := os.Getenv("TURNSTILE_AUDIT_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Audit.RetentionDays = i
		}
	}
	if val := os.Getenv("TURNSTILE_AUDIT_RETENTION_SCHEDULE"); val != "" {
		cfg.Audit.RetentionSchedule = val
	}
}

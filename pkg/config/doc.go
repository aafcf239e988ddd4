// Package config loads and validates the turnstile configuration.
//
// Configuration comes from a YAML file, with defaults applied for any
// omitted field and optional environment variable overrides using the
// TURNSTILE_SECTION_FIELD naming convention.
//
// # Loading
//
//	cfg, err := config.LoadConfig("turnstile.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Use LoadConfigWithEnvOverrides to let environment variables take
// precedence over file values, which is the deployment-friendly path.
//
// # Validation
//
// Validate collects every problem instead of stopping at the first,
// so an operator fixing a config file sees the complete list at once.
// Tier limit overrides are additionally checked for monotonicity
// across the tier ordering by the tiers catalog constructor.
package config

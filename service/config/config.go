package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultRPCURL is the local test validator's JSON-RPC endpoint.
	DefaultRPCURL = "http://localhost:8899"

	lamportsPerSOL = 1_000_000_000
)

// Missing-account policies for the transfer step.
const (
	MissingAccountStrict  = "strict"
	MissingAccountLenient = "lenient"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Process configuration
	LogLevel    string
	MetricsAddr string
	ServerAddr  string

	// Solana configuration
	SolanaRPCURL     string
	SolanaCommitment string

	// Token flow configuration
	AirdropLamports      uint64
	TokenDecimals        uint8
	TokenSupply          uint64
	MissingAccountPolicy string

	// Confirmation polling configuration
	ConfirmTimeout         time.Duration
	ConfirmMaxAttempts     uint64
	ConfirmInitialInterval time.Duration
	ConfirmMaxInterval     time.Duration

	// Optional sidecars; empty disables them
	DatabaseURL string
	NATSURL     string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Process configuration
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")

	// Solana configuration
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", DefaultRPCURL)
	cfg.SolanaCommitment = getEnvOrDefault("SOLANA_COMMITMENT", "confirmed")
	if !validCommitment(cfg.SolanaCommitment) {
		errs = append(errs, fmt.Errorf("SOLANA_COMMITMENT must be one of processed, confirmed, finalized (got %q)", cfg.SolanaCommitment))
	}

	// Token flow configuration
	airdrop, err := parseUint("AIRDROP_LAMPORTS", 10*lamportsPerSOL)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.AirdropLamports = airdrop
	}

	decimals, err := parseUint("TOKEN_DECIMALS", 9)
	if err != nil {
		errs = append(errs, err)
	} else if decimals > 255 {
		errs = append(errs, fmt.Errorf("TOKEN_DECIMALS must fit in a byte (got %d)", decimals))
	} else {
		cfg.TokenDecimals = uint8(decimals)
	}

	supply, err := parseUint("TOKEN_SUPPLY", 10_000*lamportsPerSOL)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.TokenSupply = supply
	}

	cfg.MissingAccountPolicy = getEnvOrDefault("MISSING_ACCOUNT_POLICY", MissingAccountStrict)
	if cfg.MissingAccountPolicy != MissingAccountStrict && cfg.MissingAccountPolicy != MissingAccountLenient {
		errs = append(errs, fmt.Errorf("MISSING_ACCOUNT_POLICY must be %q or %q (got %q)",
			MissingAccountStrict, MissingAccountLenient, cfg.MissingAccountPolicy))
	}

	// Confirmation polling configuration
	timeout, err := parseDuration("CONFIRM_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = timeout
	}

	maxAttempts, err := parseUint("CONFIRM_MAX_ATTEMPTS", 0)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmMaxAttempts = maxAttempts
	}

	initialInterval, err := parseDuration("CONFIRM_INITIAL_INTERVAL", "250ms")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmInitialInterval = initialInterval
	}

	maxInterval, err := parseDuration("CONFIRM_MAX_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmMaxInterval = maxInterval
	}

	if cfg.ConfirmInitialInterval > cfg.ConfirmMaxInterval {
		errs = append(errs, fmt.Errorf("CONFIRM_INITIAL_INTERVAL (%v) cannot be greater than CONFIRM_MAX_INTERVAL (%v)",
			cfg.ConfirmInitialInterval, cfg.ConfirmMaxInterval))
	}

	// Optional sidecars
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "splflow")

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for worker initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if !validCommitment(c.SolanaCommitment) {
		errs = append(errs, fmt.Errorf("SolanaCommitment %q is not a valid commitment", c.SolanaCommitment))
	}

	if c.AirdropLamports == 0 {
		errs = append(errs, fmt.Errorf("AirdropLamports must be positive"))
	}

	if c.TokenSupply == 0 {
		errs = append(errs, fmt.Errorf("TokenSupply must be positive"))
	}

	if c.MissingAccountPolicy != MissingAccountStrict && c.MissingAccountPolicy != MissingAccountLenient {
		errs = append(errs, fmt.Errorf("MissingAccountPolicy %q is not supported", c.MissingAccountPolicy))
	}

	if c.ConfirmInitialInterval <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmInitialInterval must be positive"))
	}

	if c.ConfirmInitialInterval > c.ConfirmMaxInterval {
		errs = append(errs, fmt.Errorf("ConfirmInitialInterval cannot be greater than ConfirmMaxInterval"))
	}

	if c.ConfirmTimeout < 0 {
		errs = append(errs, fmt.Errorf("ConfirmTimeout cannot be negative"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validCommitment(c string) bool {
	switch c {
	case "processed", "confirmed", "finalized":
		return true
	}
	return false
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseUint parses an unsigned integer from an environment variable or uses a default.
func parseUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

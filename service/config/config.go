package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the send pipeline. These are deliberately conservative for
// public RPC endpoints; premium endpoints can raise the batch sizes and
// shorten the inter-batch delay.
const (
	DefaultNativeBatchSize   = 12
	DefaultTokenBatchSize    = 6
	DefaultCreationBatchSize = 2
	DefaultMaxRecipients     = 100

	DefaultConfirmationTimeout = 90 * time.Second
	DefaultConfirmationPoll    = 2 * time.Second
	DefaultInterBatchDelay     = 500 * time.Millisecond

	DefaultResolveAttempts = 3
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Logging
	LogLevel string

	// Solana configuration
	SolanaRPCURL string
	RPCEndpoint  string // label used for metrics (e.g., "mainnet", "devnet")
	Commitment   string // "processed", "confirmed", or "finalized"

	// Fee sponsorship configuration (optional; empty URL disables sponsorship)
	SponsorURL    string
	SponsorPolicy string

	// Batch planning configuration
	NativeBatchSize   int
	TokenBatchSize    int
	CreationBatchSize int
	MaxRecipients     int

	// Confirmation configuration
	ConfirmationTimeout time.Duration
	ConfirmationPoll    time.Duration
	InterBatchDelay     time.Duration

	// Account resolution configuration
	ResolveAttempts int

	// NATS configuration (optional; empty URL disables progress publishing)
	NATSURL string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}
	cfg.RPCEndpoint = getEnvOrDefault("SOLANA_RPC_ENDPOINT_LABEL", "mainnet")
	cfg.Commitment = getEnvOrDefault("SOLANA_COMMITMENT", "confirmed")

	cfg.SponsorURL = os.Getenv("SPONSOR_URL")
	cfg.SponsorPolicy = os.Getenv("SPONSOR_POLICY")

	cfg.NATSURL = os.Getenv("NATS_URL")

	var err error
	cfg.NativeBatchSize, err = parseInt("NATIVE_BATCH_SIZE", DefaultNativeBatchSize)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.TokenBatchSize, err = parseInt("TOKEN_BATCH_SIZE", DefaultTokenBatchSize)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.CreationBatchSize, err = parseInt("CREATION_BATCH_SIZE", DefaultCreationBatchSize)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.MaxRecipients, err = parseInt("MAX_RECIPIENTS", DefaultMaxRecipients)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ResolveAttempts, err = parseInt("RESOLVE_ATTEMPTS", DefaultResolveAttempts)
	if err != nil {
		errs = append(errs, err)
	}

	cfg.ConfirmationTimeout, err = parseDuration("CONFIRMATION_TIMEOUT", DefaultConfirmationTimeout.String())
	if err != nil {
		errs = append(errs, err)
	}
	cfg.ConfirmationPoll, err = parseDuration("CONFIRMATION_POLL_INTERVAL", DefaultConfirmationPoll.String())
	if err != nil {
		errs = append(errs, err)
	}
	cfg.InterBatchDelay, err = parseDuration("INTER_BATCH_DELAY", DefaultInterBatchDelay.String())
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for binary initialization where misconfiguration should halt startup.
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

	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		errs = append(errs, fmt.Errorf("Commitment must be processed, confirmed, or finalized, got %q", c.Commitment))
	}

	if c.NativeBatchSize < 1 {
		errs = append(errs, fmt.Errorf("NativeBatchSize must be at least 1"))
	}
	if c.TokenBatchSize < 1 {
		errs = append(errs, fmt.Errorf("TokenBatchSize must be at least 1"))
	}
	if c.CreationBatchSize < 1 {
		errs = append(errs, fmt.Errorf("CreationBatchSize must be at least 1"))
	}
	if c.MaxRecipients < 1 {
		errs = append(errs, fmt.Errorf("MaxRecipients must be at least 1"))
	}
	if c.ResolveAttempts < 1 {
		errs = append(errs, fmt.Errorf("ResolveAttempts must be at least 1"))
	}

	if c.ConfirmationPoll < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("ConfirmationPoll must be at least 100ms"))
	}
	if c.ConfirmationTimeout < c.ConfirmationPoll {
		errs = append(errs, fmt.Errorf("ConfirmationTimeout (%v) cannot be less than ConfirmationPoll (%v)",
			c.ConfirmationTimeout, c.ConfirmationPoll))
	}

	if c.SponsorURL != "" && c.SponsorPolicy == "" {
		errs = append(errs, fmt.Errorf("SponsorPolicy is required when SponsorURL is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
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

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		LogLevel:            "info",
		SolanaRPCURL:        "https://api.mainnet-beta.solana.com",
		RPCEndpoint:         "mainnet",
		Commitment:          "confirmed",
		NativeBatchSize:     DefaultNativeBatchSize,
		TokenBatchSize:      DefaultTokenBatchSize,
		CreationBatchSize:   DefaultCreationBatchSize,
		MaxRecipients:       DefaultMaxRecipients,
		ConfirmationTimeout: DefaultConfirmationTimeout,
		ConfirmationPoll:    DefaultConfirmationPoll,
		InterBatchDelay:     DefaultInterBatchDelay,
		ResolveAttempts:     DefaultResolveAttempts,
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "https://api.devnet.solana.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "mainnet", cfg.RPCEndpoint)
	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.Equal(t, DefaultNativeBatchSize, cfg.NativeBatchSize)
	assert.Equal(t, DefaultTokenBatchSize, cfg.TokenBatchSize)
	assert.Equal(t, DefaultCreationBatchSize, cfg.CreationBatchSize)
	assert.Equal(t, DefaultMaxRecipients, cfg.MaxRecipients)
	assert.Equal(t, DefaultConfirmationTimeout, cfg.ConfirmationTimeout)
	assert.Equal(t, DefaultConfirmationPoll, cfg.ConfirmationPoll)
	assert.Equal(t, DefaultInterBatchDelay, cfg.InterBatchDelay)
	assert.Equal(t, DefaultResolveAttempts, cfg.ResolveAttempts)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "https://api.devnet.solana.com")
	t.Setenv("SOLANA_RPC_ENDPOINT_LABEL", "devnet")
	t.Setenv("SOLANA_COMMITMENT", "finalized")
	t.Setenv("NATIVE_BATCH_SIZE", "20")
	t.Setenv("CONFIRMATION_TIMEOUT", "2m")
	t.Setenv("INTER_BATCH_DELAY", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "devnet", cfg.RPCEndpoint)
	assert.Equal(t, "finalized", cfg.Commitment)
	assert.Equal(t, 20, cfg.NativeBatchSize)
	assert.Equal(t, 2*time.Minute, cfg.ConfirmationTimeout)
	assert.Equal(t, time.Duration(0), cfg.InterBatchDelay)
}

func TestLoad_MissingRPCURL(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOLANA_RPC_URL")
}

func TestLoad_InvalidInteger(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "https://api.devnet.solana.com")
	t.Setenv("TOKEN_BATCH_SIZE", "six")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_BATCH_SIZE")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_BadCommitment(t *testing.T) {
	cfg := validConfig()
	cfg.Commitment = "eventual"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Commitment")
}

func TestValidate_BatchSizes(t *testing.T) {
	cfg := validConfig()
	cfg.NativeBatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.CreationBatchSize = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_TimeoutShorterThanPoll(t *testing.T) {
	cfg := validConfig()
	cfg.ConfirmationTimeout = time.Second
	cfg.ConfirmationPoll = 2 * time.Second
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ConfirmationTimeout")
}

func TestValidate_SponsorPolicyRequiredWithURL(t *testing.T) {
	cfg := validConfig()
	cfg.SponsorURL = "https://sponsor.example.com"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SponsorPolicy")

	cfg.SponsorPolicy = "default"
	assert.NoError(t, cfg.Validate())
}

package send

import (
	"time"

	"github.com/brojonat/fanout/service/config"
	"github.com/gagliardetto/solana-go/rpc"
)

// Config holds the per-run knobs for the send pipeline. All values have
// working defaults (see DefaultConfig); callers override fields per run
// rather than relying on package-level constants.
type Config struct {
	// NativeBatchSize is the max recipients per native transfer transaction.
	// Native transfers pack more recipients than token transfers because a
	// system transfer instruction has a smaller footprint.
	NativeBatchSize int
	// TokenBatchSize is the max recipients per token transfer transaction.
	TokenBatchSize int
	// CreationBatchSize is the max receiving-account creations per
	// transaction. Creation instructions are heavier than transfers.
	CreationBatchSize int
	// MaxRecipients caps the parsed recipient list; excess is truncated.
	MaxRecipients int

	// Commitment is the target confirmation level for submitted transactions.
	Commitment rpc.CommitmentType
	// ConfirmationTimeout bounds how long a confirmation wait may block.
	ConfirmationTimeout time.Duration
	// ConfirmationPoll is the signature-status polling interval.
	ConfirmationPoll time.Duration
	// InterBatchDelay is a fixed pause between batch submissions to avoid
	// rate-limiting the RPC endpoint.
	InterBatchDelay time.Duration

	// ResolveAttempts bounds retries of the receiving-account existence check.
	ResolveAttempts int

	// SelfPayFallback permits falling back to self-paid submission when the
	// fee sponsorship service is unavailable.
	SelfPayFallback bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		NativeBatchSize:     config.DefaultNativeBatchSize,
		TokenBatchSize:      config.DefaultTokenBatchSize,
		CreationBatchSize:   config.DefaultCreationBatchSize,
		MaxRecipients:       config.DefaultMaxRecipients,
		Commitment:          rpc.CommitmentConfirmed,
		ConfirmationTimeout: config.DefaultConfirmationTimeout,
		ConfirmationPoll:    config.DefaultConfirmationPoll,
		InterBatchDelay:     config.DefaultInterBatchDelay,
		ResolveAttempts:     config.DefaultResolveAttempts,
	}
}

// FromServiceConfig maps the application config onto a run config.
func FromServiceConfig(sc *config.Config) Config {
	c := DefaultConfig()
	c.NativeBatchSize = sc.NativeBatchSize
	c.TokenBatchSize = sc.TokenBatchSize
	c.CreationBatchSize = sc.CreationBatchSize
	c.MaxRecipients = sc.MaxRecipients
	c.Commitment = rpc.CommitmentType(sc.Commitment)
	c.ConfirmationTimeout = sc.ConfirmationTimeout
	c.ConfirmationPoll = sc.ConfirmationPoll
	c.InterBatchDelay = sc.InterBatchDelay
	c.ResolveAttempts = sc.ResolveAttempts
	return c
}

// BatchSizeFor returns the transfer batch size for an asset kind.
func (c Config) BatchSizeFor(kind AssetKind) int {
	if kind == AssetNative {
		return c.NativeBatchSize
	}
	return c.TokenBatchSize
}

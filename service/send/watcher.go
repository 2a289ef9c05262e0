package send

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/fanout/service/metrics"
	solclient "github.com/brojonat/fanout/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ConfirmationOutcome is the result of waiting for a transaction to reach a
// commitment level.
type ConfirmationOutcome string

const (
	// ConfirmationConfirmed means the status reached the requested
	// commitment level or a stronger one.
	ConfirmationConfirmed ConfirmationOutcome = "confirmed"
	// ConfirmationFailed means the transaction executed and failed on chain.
	ConfirmationFailed ConfirmationOutcome = "failed"
	// ConfirmationTimedOut means finality could not be confirmed in-process
	// before the deadline. It does NOT mean the transaction failed; the
	// operator should verify manually rather than assume funds were not sent.
	ConfirmationTimedOut ConfirmationOutcome = "timed_out"
)

// ConfirmationResult carries the outcome plus the on-chain error when the
// transaction failed.
type ConfirmationResult struct {
	Outcome ConfirmationOutcome
	Err     string
	Slot    uint64
}

// commitmentRank orders commitment levels so "stronger than requested"
// satisfies the wait.
var commitmentRank = map[rpc.ConfirmationStatusType]int{
	rpc.ConfirmationStatusProcessed: 1,
	rpc.ConfirmationStatusConfirmed: 2,
	rpc.ConfirmationStatusFinalized: 3,
}

func targetRank(commitment rpc.CommitmentType) int {
	switch commitment {
	case rpc.CommitmentProcessed:
		return 1
	case rpc.CommitmentFinalized:
		return 3
	default:
		return 2
	}
}

// ConfirmationWatcher polls transaction status until the target commitment is
// reached, the transaction fails on chain, or the deadline elapses.
type ConfirmationWatcher struct {
	client       *solclient.Client
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewConfirmationWatcher creates a watcher with the given poll interval and
// overall deadline.
func NewConfirmationWatcher(client *solclient.Client, pollInterval, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *ConfirmationWatcher {
	return &ConfirmationWatcher{
		client:       client,
		pollInterval: pollInterval,
		timeout:      timeout,
		logger:       logger,
		metrics:      m,
	}
}

// AwaitConfirmation blocks until the signature reaches target commitment,
// fails on chain, or times out. A nil status from the network means the
// transaction is not yet visible and is treated as pending, not as failure.
// The only error return is context cancellation.
func (w *ConfirmationWatcher) AwaitConfirmation(ctx context.Context, sig solana.Signature, target rpc.CommitmentType) (*ConfirmationResult, error) {
	start := time.Now()
	res, err := w.await(ctx, sig, target)
	if err != nil {
		return nil, err
	}
	if w.metrics != nil {
		w.metrics.RecordConfirmation(string(res.Outcome), time.Since(start).Seconds())
	}
	return res, nil
}

func (w *ConfirmationWatcher) await(ctx context.Context, sig solana.Signature, target rpc.CommitmentType) (*ConfirmationResult, error) {
	deadline := time.NewTimer(w.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	want := targetRank(target)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			w.logger.WarnContext(ctx, "confirmation deadline elapsed",
				"signature", sig.String(),
				"timeout", w.timeout,
			)
			return &ConfirmationResult{Outcome: ConfirmationTimedOut}, nil
		case <-ticker.C:
		}

		status, err := w.client.SignatureStatus(ctx, sig)
		if err != nil {
			// Transient lookup failures keep polling until the deadline.
			w.logger.WarnContext(ctx, "signature status lookup failed, continuing to poll",
				"signature", sig.String(),
				"error", err,
			)
			continue
		}
		if status == nil {
			continue
		}

		if status.Err != nil {
			return &ConfirmationResult{
				Outcome: ConfirmationFailed,
				Err:     fmt.Sprintf("%v", status.Err),
				Slot:    status.Slot,
			}, nil
		}

		if commitmentRank[status.ConfirmationStatus] >= want {
			w.logger.DebugContext(ctx, "transaction confirmed",
				"signature", sig.String(),
				"commitment", string(status.ConfirmationStatus),
				"slot", status.Slot,
			)
			return &ConfirmationResult{
				Outcome: ConfirmationConfirmed,
				Slot:    status.Slot,
			}, nil
		}
	}
}

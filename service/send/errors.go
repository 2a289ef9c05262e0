package send

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Stage identifies which part of the pipeline an error came from.
type Stage string

const (
	StageValidate Stage = "validate"
	StageResolve  Stage = "resolve"
	StageCreate   Stage = "create"
	StageTransfer Stage = "transfer"
)

// ErrNoRecipients is returned when filtering leaves nothing to send to.
var ErrNoRecipients = errors.New("no valid recipients after filtering")

// SponsorshipUnavailableError indicates the fee sponsorship service could not
// countersign a transaction. This is recoverable at the orchestration level:
// the orchestrator may fall back to self-paid submission.
type SponsorshipUnavailableError struct {
	Reason string
}

func (e *SponsorshipUnavailableError) Error() string {
	return fmt.Sprintf("fee sponsorship unavailable: %s", e.Reason)
}

// SubmissionError indicates the network rejected a transaction (simulation
// failure, insufficient balance, etc). The same unsigned transaction must not
// be retried; a fresh blockhash and rebuild are required first.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transaction submission rejected: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ConfirmationTimeoutError means a submitted transaction's finality could
// not be confirmed in-process before the deadline. This is NOT an on-chain
// failure: the transaction may well have landed, so the message tells the
// operator to verify manually rather than assume funds were not sent.
type ConfirmationTimeoutError struct {
	Signature solana.Signature
	Timeout   time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("confirmation timeout: transaction %s was submitted but not confirmed within %v; verify on chain before retrying", e.Signature, e.Timeout)
}

// AbortError is terminal for a send run. It names the asset, stage, and batch
// that failed so the session's final status message is never a bare generic
// failure. Batch is 1-based; zero means the error was not batch-scoped.
type AbortError struct {
	Asset string
	Stage Stage
	Batch int
	Err   error
}

func (e *AbortError) Error() string {
	if e.Batch > 0 {
		return fmt.Sprintf("asset %s: %s batch %d: %v", e.Asset, e.Stage, e.Batch, e.Err)
	}
	return fmt.Sprintf("asset %s: %s: %v", e.Asset, e.Stage, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

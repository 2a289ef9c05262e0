package send

import (
	"context"
	"log/slog"

	"github.com/brojonat/fanout/service/metrics"
	solclient "github.com/brojonat/fanout/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// submitMaxRetries bounds the network-level resubmission of an already-signed
// transaction. Duplicate and expired-blockhash detection is the network's
// job, not ours.
const submitMaxRetries uint = 3

// Submitter attaches a fresh blockhash and fee payer, signs, and submits one
// transaction. Submission requests preflight simulation; the returned
// signature means the network accepted the transaction for processing, which
// is not confirmation.
type Submitter struct {
	client     *solclient.Client
	signer     Signer
	sponsor    *SponsorClient // nil disables sponsorship
	commitment rpc.CommitmentType
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewSubmitter creates a submitter. sponsor may be nil when fee sponsorship
// is not configured.
func NewSubmitter(client *solclient.Client, signer Signer, sponsor *SponsorClient, commitment rpc.CommitmentType, m *metrics.Metrics, logger *slog.Logger) *Submitter {
	return &Submitter{
		client:     client,
		signer:     signer,
		sponsor:    sponsor,
		commitment: commitment,
		logger:     logger,
		metrics:    m,
	}
}

// Submit self-pays: fresh blockhash, local signature, submit.
func (s *Submitter) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := s.refreshBlockhash(ctx, tx); err != nil {
		return solana.Signature{}, err
	}
	if err := s.signer.Sign(tx); err != nil {
		return solana.Signature{}, err
	}
	return s.send(ctx, tx)
}

// SubmitSponsored routes the transaction through the fee sponsorship service
// before submission. A fresh blockhash is attached first so the sponsor
// countersigns a message that is still valid at confirmation time; the
// sponsored transaction is then submitted exactly as returned, apart from the
// sender's own partial signature. Sponsorship failures surface as
// *SponsorshipUnavailableError so callers can fall back to Submit.
func (s *Submitter) SubmitSponsored(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if s.sponsor == nil {
		return solana.Signature{}, &SponsorshipUnavailableError{Reason: "no sponsorship service configured"}
	}

	if err := s.refreshBlockhash(ctx, tx); err != nil {
		return solana.Signature{}, err
	}

	sponsored, err := s.sponsor.RequestSponsorship(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}

	if err := s.signer.PartialSign(sponsored); err != nil {
		return solana.Signature{}, err
	}
	return s.send(ctx, sponsored)
}

func (s *Submitter) refreshBlockhash(ctx context.Context, tx *solana.Transaction) error {
	blockhash, lastValid, err := s.client.LatestBlockhash(ctx, s.commitment)
	if err != nil {
		return &SubmissionError{Err: err}
	}
	tx.Message.RecentBlockhash = blockhash

	s.logger.DebugContext(ctx, "attached blockhash",
		"blockhash", blockhash.String(),
		"last_valid_block_height", lastValid,
	)
	return nil
}

func (s *Submitter) send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	maxRetries := submitMaxRetries
	sig, err := s.client.SendTransaction(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: s.commitment,
		MaxRetries:          &maxRetries,
	})
	if s.metrics != nil {
		status := "accepted"
		if err != nil {
			status = "rejected"
		}
		s.metrics.RecordSubmission(status)
	}
	if err != nil {
		// Surfaced verbatim: the caller must rebuild with a fresh blockhash
		// before any retry, never resubmit this transaction.
		return solana.Signature{}, &SubmissionError{Err: err}
	}
	return sig, nil
}

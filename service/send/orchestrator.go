package send

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/fanout/service/events"
	"github.com/brojonat/fanout/service/metrics"
	solclient "github.com/brojonat/fanout/service/solana"
	"github.com/gagliardetto/solana-go"
)

// AssetSelection is one asset to distribute plus its uniform per-recipient
// amount. In paired mode the amount is ignored: amounts come from the
// recipient text, and only a single asset may be selected.
type AssetSelection struct {
	Asset  AssetDescriptor
	Amount string
}

// Request enumerates everything one send run needs: asset selection,
// recipient source text and parse mode, and whether fee sponsorship should be
// attempted for receiving-account creation.
type Request struct {
	RawRecipients  string
	Mode           ParseMode
	Assets         []AssetSelection
	SponsorEnabled bool
}

// Orchestrator drives the full pipeline across one or more assets and the
// full recipient set: plan, resolve, build, sponsor, submit, confirm.
// Batches and assets are processed strictly sequentially; each submission
// consumes a blockhash that must still be valid at confirmation time, and
// sequential submission avoids fee-payer ordering ambiguity.
type Orchestrator struct {
	client    *solclient.Client
	signer    Signer
	resolver  *AccountResolver
	builder   *InstructionBuilder
	submitter *Submitter
	watcher   *ConfirmationWatcher
	cfg       Config
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewOrchestrator wires the pipeline. sponsor and publisher may be nil;
// metrics may be nil.
func NewOrchestrator(
	client *solclient.Client,
	signer Signer,
	sponsor *SponsorClient,
	cfg Config,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		client:    client,
		signer:    signer,
		resolver:  NewAccountResolver(client, cfg.ResolveAttempts, logger),
		builder:   NewInstructionBuilder(logger),
		submitter: NewSubmitter(client, signer, sponsor, cfg.Commitment, m, logger),
		watcher:   NewConfirmationWatcher(client, cfg.ConfirmationPoll, cfg.ConfirmationTimeout, m, logger),
		cfg:       cfg,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// StartSend begins a send run and returns its session immediately. The run
// proceeds on its own goroutine; observers follow it through the session's
// Subscribe channel, Snapshot, or Wait. Cancelling ctx stops the run before
// the next batch without corrupting already-confirmed state.
func (o *Orchestrator) StartSend(ctx context.Context, req Request) *Session {
	session := newSession()
	go o.run(ctx, req, session)
	return session
}

func (o *Orchestrator) run(ctx context.Context, req Request, session *Session) {
	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordSessionComplete(string(session.Phase()), time.Since(start).Seconds())
		}
	}()

	recipients, err := o.validate(ctx, req, session)
	if err != nil {
		o.fail(ctx, session, err)
		return
	}

	o.progress(ctx, session, PhaseSending, fmt.Sprintf("sending to %d recipients across %d asset(s)", len(recipients), len(req.Assets)))

	// Resolution-retry exhaustion skips only the affected asset; later
	// assets still proceed and their confirmed batches remain valid. Any
	// other failure aborts the remaining run immediately.
	var assetErrors []error
	for _, sel := range req.Assets {
		if err := o.sendAsset(ctx, req, sel, recipients, session); err != nil {
			var abort *AbortError
			if errors.As(err, &abort) && abort.Stage == StageResolve {
				o.logger.ErrorContext(ctx, "asset skipped after resolution failure",
					"asset", sel.Asset.Label(),
					"error", err,
				)
				assetErrors = append(assetErrors, err)
				continue
			}
			o.fail(ctx, session, err)
			return
		}
	}

	if len(assetErrors) > 0 {
		o.fail(ctx, session, assetErrors[0])
		return
	}

	sigCount := len(session.Signatures())
	session.finish(PhaseSuccess, fmt.Sprintf("all %d transaction(s) confirmed", sigCount), nil)
	o.publish(ctx, session)
}

// validate parses and filters the recipient list and checks the asset
// selection before any network work begins.
func (o *Orchestrator) validate(ctx context.Context, req Request, session *Session) ([]Recipient, error) {
	o.progress(ctx, session, PhaseValidating, "validating recipients")

	if o.signer == nil {
		return nil, &AbortError{Asset: "-", Stage: StageValidate, Err: fmt.Errorf("no signing authority configured")}
	}
	if len(req.Assets) == 0 {
		return nil, &AbortError{Asset: "-", Stage: StageValidate, Err: fmt.Errorf("no assets selected")}
	}
	if req.Mode == ParsePaired && len(req.Assets) > 1 {
		return nil, &AbortError{Asset: "-", Stage: StageValidate, Err: fmt.Errorf("paired amounts support a single asset only")}
	}

	for _, sel := range req.Assets {
		if err := sel.Asset.Validate(); err != nil {
			return nil, &AbortError{Asset: sel.Asset.Label(), Stage: StageValidate, Err: err}
		}
		if req.Mode == ParseUniform && !isPositiveAmount(sel.Amount) {
			return nil, &AbortError{Asset: sel.Asset.Label(), Stage: StageValidate, Err: fmt.Errorf("amount must be positive, got %q", sel.Amount)}
		}
	}

	// In uniform mode the per-recipient amount comes from the asset
	// selection, so a placeholder keeps address filtering independent of it.
	uniformAmount := "1"
	result := Parse(req.RawRecipients, req.Mode, uniformAmount, o.cfg.MaxRecipients)
	valid, skipped := FilterValid(result.Recipients)

	session.setWarnings(skipped, result.Truncated)
	if o.metrics != nil {
		o.metrics.RecordRecipientsPlanned("valid", len(valid))
		o.metrics.RecordRecipientsPlanned("skipped", skipped)
		o.metrics.RecordRecipientsPlanned("truncated", result.Truncated)
	}
	if result.Truncated > 0 {
		o.logger.WarnContext(ctx, "recipient list truncated",
			"cap", o.cfg.MaxRecipients,
			"truncated", result.Truncated,
		)
	}
	if skipped > 0 {
		o.logger.WarnContext(ctx, "invalid recipients skipped", "skipped", skipped)
	}

	if len(valid) == 0 {
		return nil, &AbortError{Asset: "-", Stage: StageValidate, Err: ErrNoRecipients}
	}
	return valid, nil
}

// sendAsset runs resolution, creation batches, then transfer batches for a
// single asset. Every creation batch is confirmed before any transfer batch
// is built: a transfer into a non-existent receiving account fails outright.
func (o *Orchestrator) sendAsset(ctx context.Context, req Request, sel AssetSelection, recipients []Recipient, session *Session) error {
	asset := sel.Asset
	label := asset.Label()

	// Uniform mode substitutes the asset's amount for every recipient.
	if req.Mode == ParseUniform {
		withAmount := make([]Recipient, len(recipients))
		for i, r := range recipients {
			withAmount[i] = Recipient{Address: r.Address, Amount: sel.Amount}
		}
		recipients = withAmount
	}

	o.progress(ctx, session, PhaseSending, fmt.Sprintf("resolving receiving accounts for %s", label))
	res, err := o.resolver.Resolve(ctx, recipients, asset)
	if err != nil {
		return &AbortError{Asset: label, Stage: StageResolve, Err: err}
	}

	// Creation batches first.
	creationBatches := chunkWork(res.ToCreate, o.cfg.CreationBatchSize)
	for i, work := range creationBatches {
		if err := o.checkCancelled(ctx); err != nil {
			return &AbortError{Asset: label, Stage: StageCreate, Batch: i + 1, Err: err}
		}

		o.progress(ctx, session, PhaseSending,
			fmt.Sprintf("creating receiving accounts for %s (batch %d/%d)", label, i+1, len(creationBatches)))

		tx, err := o.builder.BuildCreationBatch(o.signer.PublicKey(), work, asset)
		if err != nil {
			return &AbortError{Asset: label, Stage: StageCreate, Batch: i + 1, Err: err}
		}
		if o.metrics != nil {
			o.metrics.RecordBatchBuilt(string(asset.Kind), string(JobCreation))
		}

		job := &TransactionJob{
			Asset:      asset,
			Kind:       JobCreation,
			Index:      i + 1,
			Recipients: len(work),
			Tx:         tx,
			State:      JobPending,
		}
		session.addJob(job)

		if err := o.submitAndConfirm(ctx, session, job, req.SponsorEnabled); err != nil {
			return &AbortError{Asset: label, Stage: StageCreate, Batch: i + 1, Err: err}
		}

		if err := o.pause(ctx); err != nil {
			return &AbortError{Asset: label, Stage: StageCreate, Batch: i + 1, Err: err}
		}
	}

	// Transfer batches.
	transferBatches := Chunk(recipients, o.cfg.BatchSizeFor(asset.Kind))
	for i, batch := range transferBatches {
		if err := o.checkCancelled(ctx); err != nil {
			return &AbortError{Asset: label, Stage: StageTransfer, Batch: i + 1, Err: err}
		}

		o.progress(ctx, session, PhaseSending,
			fmt.Sprintf("transferring %s (batch %d/%d)", label, i+1, len(transferBatches)))

		tx, err := o.builder.BuildTransferBatch(o.signer.PublicKey(), batch, asset, res.Accounts)
		if err != nil {
			return &AbortError{Asset: label, Stage: StageTransfer, Batch: i + 1, Err: err}
		}
		if o.metrics != nil {
			o.metrics.RecordBatchBuilt(string(asset.Kind), string(JobTransfer))
		}

		job := &TransactionJob{
			Asset:      asset,
			Kind:       JobTransfer,
			Index:      i + 1,
			Recipients: len(batch),
			Tx:         tx,
			State:      JobPending,
		}
		session.addJob(job)

		// Transfers are always self-paid; sponsorship covers the
		// account-provisioning cost, not the transfer fees.
		if err := o.submitAndConfirm(ctx, session, job, false); err != nil {
			return &AbortError{Asset: label, Stage: StageTransfer, Batch: i + 1, Err: err}
		}

		if i < len(transferBatches)-1 {
			if err := o.pause(ctx); err != nil {
				return &AbortError{Asset: label, Stage: StageTransfer, Batch: i + 1, Err: err}
			}
		}
	}

	o.logger.InfoContext(ctx, "asset send complete",
		"asset", label,
		"creation_batches", len(creationBatches),
		"transfer_batches", len(transferBatches),
	)
	return nil
}

// submitAndConfirm moves one job through submission and confirmation. With
// sponsorship enabled it attempts the sponsored path first and, when the
// service is unavailable and self-pay fallback is configured, retries
// self-paid.
func (o *Orchestrator) submitAndConfirm(ctx context.Context, session *Session, job *TransactionJob, sponsored bool) error {
	var sig solana.Signature
	var err error

	if sponsored {
		sig, err = o.submitter.SubmitSponsored(ctx, job.Tx)
		var unavailable *SponsorshipUnavailableError
		if errors.As(err, &unavailable) && o.cfg.SelfPayFallback {
			o.logger.WarnContext(ctx, "sponsorship unavailable, falling back to self-paid submission",
				"reason", unavailable.Reason,
			)
			sig, err = o.submitter.Submit(ctx, job.Tx)
		}
	} else {
		sig, err = o.submitter.Submit(ctx, job.Tx)
	}
	if err != nil {
		return err
	}

	session.recordSubmission(job, sig)
	o.progress(ctx, session, PhaseSending,
		fmt.Sprintf("awaiting confirmation of %s batch %d for %s", job.Kind, job.Index, job.Asset.Label()))

	res, err := o.watcher.AwaitConfirmation(ctx, sig, o.cfg.Commitment)
	if err != nil {
		return err
	}

	switch res.Outcome {
	case ConfirmationConfirmed:
		session.setJobState(job, JobConfirmed)
		return nil
	case ConfirmationFailed:
		session.setJobState(job, JobFailed)
		return fmt.Errorf("transaction %s failed on chain: %s", sig, res.Err)
	default:
		session.setJobState(job, JobTimedOut)
		return &ConfirmationTimeoutError{Signature: sig, Timeout: o.cfg.ConfirmationTimeout}
	}
}

// checkCancelled distinguishes a caller abort from other errors before
// starting a new batch.
func (o *Orchestrator) checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send cancelled: %w", err)
	}
	return nil
}

// pause inserts the inter-batch delay. This is backpressure against
// rate-limiting the RPC endpoint, not a correctness requirement.
func (o *Orchestrator) pause(ctx context.Context) error {
	if o.cfg.InterBatchDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("send cancelled: %w", ctx.Err())
	case <-time.After(o.cfg.InterBatchDelay):
		return nil
	}
}

func (o *Orchestrator) fail(ctx context.Context, session *Session, err error) {
	o.logger.ErrorContext(ctx, "send run failed", "error", err)
	session.finish(PhaseError, err.Error(), err)
	o.publish(ctx, session)
}

// progress updates the session status and publishes it to observers.
func (o *Orchestrator) progress(ctx context.Context, session *Session, phase Phase, message string) {
	session.setStatus(phase, message)
	o.logger.InfoContext(ctx, message, "session", session.ID(), "phase", string(phase))
	o.publish(ctx, session)
}

// publish pushes the current snapshot to the progress publisher, if any.
// Publishing is best-effort; failures never affect the run.
func (o *Orchestrator) publish(ctx context.Context, session *Session) {
	if o.publisher == nil {
		return
	}
	snap := session.Snapshot()
	event := &events.ProgressEvent{
		SessionID:   snap.ID,
		Phase:       string(snap.Phase),
		Message:     snap.StatusMessage,
		Signatures:  snap.Signatures,
		PublishedAt: time.Now().UTC(),
	}
	if err := o.publisher.PublishProgress(ctx, event); err != nil {
		o.logger.DebugContext(ctx, "failed to publish progress event", "error", err)
	}
}

// chunkWork partitions creation work into batches of at most maxSize,
// preserving order.
func chunkWork(work []ReceivingAccountWork, maxSize int) [][]ReceivingAccountWork {
	if maxSize < 1 {
		maxSize = 1
	}
	var batches [][]ReceivingAccountWork
	for offset := 0; offset < len(work); offset += maxSize {
		end := min(offset+maxSize, len(work))
		batches = append(batches, work[offset:end])
	}
	return batches
}

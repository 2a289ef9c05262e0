package send

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Phase is the session state machine position. Terminal phases (success,
// error) are not re-entrant; a new send starts a new session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseSending    Phase = "sending"
	PhaseSuccess    Phase = "success"
	PhaseError      Phase = "error"
)

// JobKind distinguishes receiving-account creation batches from transfer
// batches.
type JobKind string

const (
	JobCreation JobKind = "creation"
	JobTransfer JobKind = "transfer"
)

// JobState tracks a transaction job through submission and confirmation.
type JobState string

const (
	JobPending   JobState = "pending"
	JobConfirmed JobState = "confirmed"
	JobFailed    JobState = "failed"
	JobTimedOut  JobState = "timed_out"
)

// TransactionJob is one batch moving through the pipeline. Ownership
// transfers linearly from builder to submitter to watcher; no other
// component mutates an in-flight job. Jobs are discarded at end of run.
type TransactionJob struct {
	Asset      AssetDescriptor
	Kind       JobKind
	Index      int // 1-based within (asset, kind)
	Recipients int
	Tx         *solana.Transaction
	Signature  solana.Signature
	State      JobState
}

// JobSnapshot is the externally visible view of a TransactionJob.
type JobSnapshot struct {
	Asset      string   `json:"asset"`
	Kind       JobKind  `json:"kind"`
	Index      int      `json:"index"`
	Recipients int      `json:"recipients"`
	Signature  string   `json:"signature,omitempty"`
	State      JobState `json:"state"`
}

// Snapshot is a point-in-time view of a session, safe to hand to observers.
type Snapshot struct {
	ID             string        `json:"id"`
	Phase          Phase         `json:"phase"`
	StatusMessage  string        `json:"status_message"`
	Signatures     []string      `json:"signatures"`
	SkippedInvalid int           `json:"skipped_invalid"`
	Truncated      int           `json:"truncated"`
	Jobs           []JobSnapshot `json:"jobs"`
	Error          string        `json:"error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
}

// Session is the authoritative model of one user-initiated send operation.
// The orchestrator exclusively owns and mutates it; any presentation layer
// only observes it through snapshots and the subscription channel.
type Session struct {
	mu sync.RWMutex

	id             string
	phase          Phase
	statusMessage  string
	signatures     []solana.Signature
	skippedInvalid int
	truncated      int
	jobs           []*TransactionJob
	err            error
	startedAt      time.Time
	finishedAt     *time.Time

	done chan struct{}
	subs []chan Snapshot
}

func newSession() *Session {
	return &Session{
		id:        uuid.NewString(),
		phase:     PhaseIdle,
		startedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Err returns the terminal error, if the session ended in PhaseError.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Signatures returns the accumulated signatures in submission order.
func (s *Session) Signatures() []solana.Signature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]solana.Signature, len(s.signatures))
	copy(out, s.signatures)
	return out
}

// Done returns a channel closed when the session reaches a terminal phase.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session reaches a terminal phase and returns its
// terminal error, or the context error if the caller gives up first. The run
// itself is not cancelled by Wait returning.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel receiving a snapshot after every state change.
// Slow consumers miss intermediate snapshots rather than blocking the run;
// the latest snapshot can always be fetched with Snapshot().
func (s *Session) Subscribe() <-chan Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 16)
	s.subs = append(s.subs, ch)
	return ch
}

// Snapshot returns a point-in-time copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	sigs := make([]string, len(s.signatures))
	for i, sig := range s.signatures {
		sigs[i] = sig.String()
	}
	jobs := make([]JobSnapshot, len(s.jobs))
	for i, j := range s.jobs {
		js := JobSnapshot{
			Asset:      j.Asset.Label(),
			Kind:       j.Kind,
			Index:      j.Index,
			Recipients: j.Recipients,
			State:      j.State,
		}
		if !j.Signature.IsZero() {
			js.Signature = j.Signature.String()
		}
		jobs[i] = js
	}
	snap := Snapshot{
		ID:             s.id,
		Phase:          s.phase,
		StatusMessage:  s.statusMessage,
		Signatures:     sigs,
		SkippedInvalid: s.skippedInvalid,
		Truncated:      s.truncated,
		Jobs:           jobs,
		StartedAt:      s.startedAt,
		FinishedAt:     s.finishedAt,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

// notifyLocked fans the current snapshot out to subscribers without blocking.
func (s *Session) notifyLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Session) setStatus(phase Phase, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	s.statusMessage = message
	s.notifyLocked()
}

func (s *Session) setWarnings(skippedInvalid, truncated int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skippedInvalid = skippedInvalid
	s.truncated = truncated
	s.notifyLocked()
}

func (s *Session) addJob(job *TransactionJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	s.notifyLocked()
}

func (s *Session) recordSubmission(job *TransactionJob, sig solana.Signature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Signature = sig
	s.signatures = append(s.signatures, sig)
	s.notifyLocked()
}

func (s *Session) setJobState(job *TransactionJob, state JobState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.State = state
	s.notifyLocked()
}

// finish moves the session to a terminal phase exactly once.
func (s *Session) finish(phase Phase, message string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseSuccess || s.phase == PhaseError {
		return
	}
	now := time.Now().UTC()
	s.phase = phase
	s.statusMessage = message
	s.err = err
	s.finishedAt = &now
	s.notifyLocked()
	close(s.done)
}

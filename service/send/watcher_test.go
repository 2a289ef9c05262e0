package send

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSignature() solana.Signature {
	var sig solana.Signature
	copy(sig[:], []byte("watcher-test-signature"))
	return sig
}

func TestAwaitConfirmation_Confirmed(t *testing.T) {
	mock := &mockRPC{}
	w := NewConfirmationWatcher(newTestClient(mock), 5*time.Millisecond, time.Second, nil, testLogger())

	res, err := w.AwaitConfirmation(context.Background(), testSignature(), rpc.CommitmentConfirmed)

	require.NoError(t, err)
	assert.Equal(t, ConfirmationConfirmed, res.Outcome)
	assert.Equal(t, uint64(42), res.Slot)
}

func TestAwaitConfirmation_PendingThenConfirmed(t *testing.T) {
	mock := &mockRPC{confirm: "pending"}
	w := NewConfirmationWatcher(newTestClient(mock), 5*time.Millisecond, time.Second, nil, testLogger())

	go func() {
		time.Sleep(25 * time.Millisecond)
		mock.mu.Lock()
		mock.confirm = "confirmed"
		mock.mu.Unlock()
	}()

	res, err := w.AwaitConfirmation(context.Background(), testSignature(), rpc.CommitmentConfirmed)

	require.NoError(t, err)
	assert.Equal(t, ConfirmationConfirmed, res.Outcome)
}

func TestAwaitConfirmation_FailedOnChain(t *testing.T) {
	mock := &mockRPC{confirm: "failed"}
	w := NewConfirmationWatcher(newTestClient(mock), 5*time.Millisecond, time.Second, nil, testLogger())

	res, err := w.AwaitConfirmation(context.Background(), testSignature(), rpc.CommitmentConfirmed)

	require.NoError(t, err)
	assert.Equal(t, ConfirmationFailed, res.Outcome)
	assert.Contains(t, res.Err, "InstructionError")
}

func TestAwaitConfirmation_TimesOut(t *testing.T) {
	mock := &mockRPC{confirm: "pending"}
	w := NewConfirmationWatcher(newTestClient(mock), 5*time.Millisecond, 50*time.Millisecond, nil, testLogger())

	res, err := w.AwaitConfirmation(context.Background(), testSignature(), rpc.CommitmentConfirmed)

	require.NoError(t, err)
	assert.Equal(t, ConfirmationTimedOut, res.Outcome)
}

func TestAwaitConfirmation_ContextCancellation(t *testing.T) {
	mock := &mockRPC{confirm: "pending"}
	w := NewConfirmationWatcher(newTestClient(mock), 5*time.Millisecond, time.Minute, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := w.AwaitConfirmation(ctx, testSignature(), rpc.CommitmentConfirmed)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAwaitConfirmation_StrongerCommitmentSatisfies(t *testing.T) {
	// The mock reports "confirmed"; a "processed" target is satisfied by it.
	mock := &mockRPC{}
	w := NewConfirmationWatcher(newTestClient(mock), 5*time.Millisecond, time.Second, nil, testLogger())

	res, err := w.AwaitConfirmation(context.Background(), testSignature(), rpc.CommitmentProcessed)

	require.NoError(t, err)
	assert.Equal(t, ConfirmationConfirmed, res.Outcome)
}

func TestAwaitConfirmation_FinalizedTargetNotMetByConfirmed(t *testing.T) {
	mock := &mockRPC{}
	w := NewConfirmationWatcher(newTestClient(mock), 5*time.Millisecond, 50*time.Millisecond, nil, testLogger())

	res, err := w.AwaitConfirmation(context.Background(), testSignature(), rpc.CommitmentFinalized)

	require.NoError(t, err)
	assert.Equal(t, ConfirmationTimedOut, res.Outcome)
}

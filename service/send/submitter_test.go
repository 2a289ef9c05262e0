package send

import (
	"context"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitterTestTx(t *testing.T, sender solana.PublicKey) *solana.Transaction {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1_000_000, sender, solana.NewWallet().PublicKey()).Build(),
		},
		solana.Hash{},
		solana.TransactionPayer(sender),
	)
	require.NoError(t, err)
	return tx
}

func TestSubmit_SignsAndSends(t *testing.T) {
	wallet := solana.NewWallet()
	signer := NewKeypairSigner(wallet.PrivateKey)
	mock := &mockRPC{}

	s := NewSubmitter(newTestClient(mock), signer, nil, rpc.CommitmentConfirmed, nil, testLogger())

	tx := submitterTestTx(t, wallet.PublicKey())
	sig, err := s.Submit(context.Background(), tx)

	require.NoError(t, err)
	assert.False(t, sig.IsZero())
	require.Equal(t, 1, mock.sentCount())

	sent := mock.sentAt(0)
	// Blockhash was refreshed before signing.
	assert.False(t, sent.Message.RecentBlockhash.IsZero())
	require.Len(t, sent.Signatures, 1)
	assert.NoError(t, sent.VerifySignatures())
}

func TestSubmit_BlockhashFailure(t *testing.T) {
	wallet := solana.NewWallet()
	mock := &mockRPC{blockhashErr: fmt.Errorf("rpc down")}

	s := NewSubmitter(newTestClient(mock), NewKeypairSigner(wallet.PrivateKey), nil, rpc.CommitmentConfirmed, nil, testLogger())
	_, err := s.Submit(context.Background(), submitterTestTx(t, wallet.PublicKey()))

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, 0, mock.sentCount())
}

func TestSubmit_NetworkRejection(t *testing.T) {
	wallet := solana.NewWallet()
	mock := &mockRPC{sendErr: fmt.Errorf("blockhash not found")}

	s := NewSubmitter(newTestClient(mock), NewKeypairSigner(wallet.PrivateKey), nil, rpc.CommitmentConfirmed, nil, testLogger())
	_, err := s.Submit(context.Background(), submitterTestTx(t, wallet.PublicKey()))

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Contains(t, err.Error(), "blockhash not found")
}

func TestSubmitSponsored_NoSponsorConfigured(t *testing.T) {
	wallet := solana.NewWallet()
	mock := &mockRPC{}

	s := NewSubmitter(newTestClient(mock), NewKeypairSigner(wallet.PrivateKey), nil, rpc.CommitmentConfirmed, nil, testLogger())
	_, err := s.SubmitSponsored(context.Background(), submitterTestTx(t, wallet.PublicKey()))

	var unavailable *SponsorshipUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 0, mock.sentCount())
}

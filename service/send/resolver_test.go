package send

import (
	"context"
	"fmt"
	"testing"

	solclient "github.com/brojonat/fanout/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_NativeIsNoOp(t *testing.T) {
	mock := &mockRPC{}
	r := NewAccountResolver(newTestClient(mock), 3, testLogger())

	recipients := []Recipient{{Address: solana.NewWallet().PublicKey().String(), Amount: "1"}}
	res, err := r.Resolve(context.Background(), recipients, NativeAsset())

	require.NoError(t, err)
	assert.Empty(t, res.ToCreate)
	assert.Empty(t, res.Existing)
	assert.Equal(t, 0, mock.accountsCalls)
}

func TestResolve_PartitionsExistingAndMissing(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	asset := FungibleAsset(mint, 6, solana.PublicKey{})

	w1 := solana.NewWallet().PublicKey()
	w2 := solana.NewWallet().PublicKey()
	ata1, err := solclient.DeriveAssociatedTokenAddress(w1, mint, solana.TokenProgramID)
	require.NoError(t, err)
	ata2, err := solclient.DeriveAssociatedTokenAddress(w2, mint, solana.TokenProgramID)
	require.NoError(t, err)

	mock := &mockRPC{existingAccounts: map[solana.PublicKey]bool{ata1: true}}
	r := NewAccountResolver(newTestClient(mock), 3, testLogger())

	recipients := []Recipient{
		{Address: w1.String(), Amount: "1"},
		{Address: w2.String(), Amount: "2"},
	}
	res, err := r.Resolve(context.Background(), recipients, asset)
	require.NoError(t, err)

	assert.Equal(t, ata1, res.Existing[w1.String()])
	require.Len(t, res.ToCreate, 1)
	assert.Equal(t, ata2, res.ToCreate[0].Account)
	assert.Equal(t, w2.String(), res.ToCreate[0].Recipient.Address)
	assert.Equal(t, mint, res.ToCreate[0].Mint)

	// Every recipient maps to a derived account regardless of existence.
	assert.Len(t, res.Accounts, 2)
	assert.Equal(t, ata1, res.Accounts[w1.String()])
	assert.Equal(t, ata2, res.Accounts[w2.String()])
}

func TestResolve_DeduplicatesRepeatedRecipient(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	asset := FungibleAsset(mint, 6, solana.PublicKey{})
	w := solana.NewWallet().PublicKey()

	mock := &mockRPC{}
	r := NewAccountResolver(newTestClient(mock), 3, testLogger())

	recipients := []Recipient{
		{Address: w.String(), Amount: "1"},
		{Address: w.String(), Amount: "2"},
	}
	res, err := r.Resolve(context.Background(), recipients, asset)
	require.NoError(t, err)

	// One creation work unit even though the recipient appears twice, and it
	// keeps the first occurrence.
	require.Len(t, res.ToCreate, 1)
	assert.Equal(t, "1", res.ToCreate[0].Recipient.Amount)
}

func TestResolve_RetriesThenFails(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	asset := FungibleAsset(mint, 6, solana.PublicKey{})

	mock := &mockRPC{accountsErr: fmt.Errorf("rpc unavailable")}
	r := NewAccountResolver(newTestClient(mock), 1, testLogger())

	recipients := []Recipient{{Address: solana.NewWallet().PublicKey().String(), Amount: "1"}}
	_, err := r.Resolve(context.Background(), recipients, asset)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 1 attempts")
	assert.Equal(t, 1, mock.accountsCalls)
}

func TestResolve_InvalidAddress(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	asset := FungibleAsset(mint, 6, solana.PublicKey{})

	mock := &mockRPC{}
	r := NewAccountResolver(newTestClient(mock), 3, testLogger())

	_, err := r.Resolve(context.Background(), []Recipient{{Address: "bogus", Amount: "1"}}, asset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient address")
}

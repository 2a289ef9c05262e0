package send

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	solclient "github.com/brojonat/fanout/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// mockRPC implements the RPC surface for testing. It's behavior-focused: we
// set what it should return, not verify call sequences.
type mockRPC struct {
	mu sync.Mutex

	blockhashErr error

	existingAccounts map[solana.PublicKey]bool
	accountsErr      error
	accountsCalls    int

	sendErr error
	sent    []*solana.Transaction

	// confirm controls signature status behavior: "confirmed" reports the
	// target commitment immediately, "failed" reports an on-chain error,
	// "pending" never resolves.
	confirm string
}

func (m *mockRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	if m.blockhashErr != nil {
		return nil, m.blockhashErr
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            solana.HashFromBytes([]byte("testblockhashtestblockhashtestbl")),
			LastValidBlockHeight: 1000,
		},
	}, nil
}

func (m *mockRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return solana.Signature{}, m.sendErr
	}
	m.sent = append(m.sent, tx)
	if len(tx.Signatures) > 0 {
		return tx.Signatures[0], nil
	}
	return solana.Signature{}, nil
}

func (m *mockRPC) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	values := make([]*rpc.SignatureStatusesResult, len(signatures))
	for i := range signatures {
		switch m.confirm {
		case "failed":
			values[i] = &rpc.SignatureStatusesResult{
				Slot: 42,
				Err:  map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
			}
		case "pending":
			values[i] = nil
		default:
			values[i] = &rpc.SignatureStatusesResult{
				Slot:               42,
				ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
			}
		}
	}
	return &rpc.GetSignatureStatusesResult{Value: values}, nil
}

func (m *mockRPC) GetMultipleAccounts(ctx context.Context, accounts ...solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountsCalls++
	if m.accountsErr != nil {
		return nil, m.accountsErr
	}
	values := make([]*rpc.Account, len(accounts))
	for i, key := range accounts {
		if m.existingAccounts[key] {
			values[i] = &rpc.Account{}
		}
	}
	return &rpc.GetMultipleAccountsResult{Value: values}, nil
}

func (m *mockRPC) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockRPC) sentAt(i int) *solana.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[i]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(mock *mockRPC) *solclient.Client {
	return solclient.NewClient(mock, "test", nil, testLogger())
}

// testConfig returns a run config with fast polling so tests never wait on
// real network timing.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ConfirmationPoll = 5 * time.Millisecond
	cfg.ConfirmationTimeout = time.Second
	cfg.InterBatchDelay = 0
	return cfg
}

package solana

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/fanout/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	SendTransactionWithOpts(
		ctx context.Context,
		tx *solana.Transaction,
		opts rpc.TransactionOpts,
	) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetMultipleAccounts(
		ctx context.Context,
		accounts ...solana.PublicKey,
	) (*rpc.GetMultipleAccountsResult, error)
}

// maxAccountsPerLookup is the RPC-side limit on getMultipleAccounts keys.
const maxAccountsPerLookup = 100

// Client provides the network operations the send pipeline needs.
// It wraps the RPC client with domain-specific operations and records
// per-call metrics when a collector is configured.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// LatestBlockhash fetches a fresh blockhash and its last valid block height.
func (c *Client) LatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, commitment)
	c.record("GetLatestBlockhash", err, time.Since(start))

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get latest blockhash", "error", err)
		return solana.Hash{}, 0, err
	}
	return out.Value.Blockhash, out.Value.LastValidBlockHeight, nil
}

// SendTransaction submits a signed transaction and returns its signature.
// The signature means the network accepted the transaction for processing,
// not that it is confirmed.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, opts)
	c.record("SendTransaction", err, time.Since(start))

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to send transaction", "error", err)
		return solana.Signature{}, err
	}

	c.logger.DebugContext(ctx, "transaction submitted", "signature", sig.String())
	return sig, nil
}

// SignatureStatus fetches the current processing status for one signature.
// A nil result means the network has not seen the signature yet; callers
// should treat that as pending, not as failure.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	start := time.Now()
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	c.record("GetSignatureStatuses", err, time.Since(start))

	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

// AccountsExist checks which of the given accounts exist on chain.
// Lookups are chunked to respect the RPC limit on keys per call; the result
// maps every requested key to whether a live account was found.
func (c *Client) AccountsExist(ctx context.Context, keys []solana.PublicKey) (map[solana.PublicKey]bool, error) {
	exists := make(map[solana.PublicKey]bool, len(keys))

	for offset := 0; offset < len(keys); offset += maxAccountsPerLookup {
		end := min(offset+maxAccountsPerLookup, len(keys))
		chunk := keys[offset:end]

		start := time.Now()
		out, err := c.rpc.GetMultipleAccounts(ctx, chunk...)
		c.record("GetMultipleAccounts", err, time.Since(start))

		if err != nil {
			c.logger.ErrorContext(ctx, "failed to get multiple accounts",
				"count", len(chunk),
				"error", err,
			)
			return nil, err
		}

		for i, key := range chunk {
			exists[key] = out != nil && i < len(out.Value) && out.Value[i] != nil
		}
	}

	c.logger.DebugContext(ctx, "checked account existence", "count", len(keys))
	return exists, nil
}

func (c *Client) record(method string, err error, d time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, d.Seconds())
}

package send

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	solclient "github.com/brojonat/fanout/service/solana"
	"github.com/gagliardetto/solana-go"
)

// ReceivingAccountWork is one pending receiving-account creation: the
// recipient, the derived associated token account, and the mint it belongs
// to. Work units are deduplicated by derived account before chunking into
// creation batches.
type ReceivingAccountWork struct {
	Recipient Recipient
	Account   solana.PublicKey
	Mint      solana.PublicKey
}

// Resolution partitions recipients into those whose receiving account already
// exists and those needing one created. Accounts maps every recipient address
// to its derived receiving account, regardless of existence.
type Resolution struct {
	Existing map[string]solana.PublicKey
	ToCreate []ReceivingAccountWork
	Accounts map[string]solana.PublicKey
}

// AccountResolver determines which recipients need a receiving account
// created before a token transfer can credit them. For native assets this is
// a no-op: SOL balances live on the wallet itself.
type AccountResolver struct {
	client   *solclient.Client
	attempts int
	logger   *slog.Logger
}

// NewAccountResolver creates a resolver. attempts bounds how many times the
// existence check is retried on network failure.
func NewAccountResolver(client *solclient.Client, attempts int, logger *slog.Logger) *AccountResolver {
	if attempts < 1 {
		attempts = 1
	}
	return &AccountResolver{
		client:   client,
		attempts: attempts,
		logger:   logger,
	}
}

// Resolve derives the expected receiving account for every recipient and
// checks the network for its existence. The check-then-create sequence is not
// transactional: an account may appear between the check and the creation
// transaction, so creation downstream must be idempotent-safe.
func (r *AccountResolver) Resolve(ctx context.Context, recipients []Recipient, asset AssetDescriptor) (*Resolution, error) {
	res := &Resolution{
		Existing: make(map[string]solana.PublicKey),
		Accounts: make(map[string]solana.PublicKey),
	}

	if asset.Kind == AssetNative {
		return res, nil
	}

	// Derive receiving accounts, deduplicating by derived address so a
	// recipient appearing twice never produces duplicate creation work.
	seen := make(map[solana.PublicKey]bool, len(recipients))
	order := make([]solana.PublicKey, 0, len(recipients))
	owners := make(map[solana.PublicKey]Recipient, len(recipients))
	for _, rec := range recipients {
		wallet, err := solana.PublicKeyFromBase58(rec.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient address %q: %w", rec.Address, err)
		}
		ata, err := solclient.DeriveAssociatedTokenAddress(wallet, asset.Mint, asset.OwnerProgram)
		if err != nil {
			return nil, err
		}
		res.Accounts[rec.Address] = ata
		if !seen[ata] {
			seen[ata] = true
			order = append(order, ata)
			owners[ata] = rec
		}
	}

	exists, err := r.checkExistence(ctx, order)
	if err != nil {
		return nil, err
	}

	for _, ata := range order {
		rec := owners[ata]
		if exists[ata] {
			res.Existing[rec.Address] = ata
			continue
		}
		res.ToCreate = append(res.ToCreate, ReceivingAccountWork{
			Recipient: rec,
			Account:   ata,
			Mint:      asset.Mint,
		})
	}

	r.logger.DebugContext(ctx, "resolved receiving accounts",
		"mint", asset.Mint.String(),
		"recipients", len(recipients),
		"existing", len(res.Existing),
		"to_create", len(res.ToCreate),
	)

	return res, nil
}

// checkExistence queries the network with bounded retries and backoff.
func (r *AccountResolver) checkExistence(ctx context.Context, keys []solana.PublicKey) (map[solana.PublicKey]bool, error) {
	var lastErr error
	for attempt := range r.attempts {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second // 1s, 2s, 4s
			r.logger.WarnContext(ctx, "retrying account existence check",
				"attempt", attempt+1,
				"backoff_seconds", backoff.Seconds(),
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		exists, err := r.client.AccountsExist(ctx, keys)
		if err == nil {
			return exists, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("account existence check failed after %d attempts: %w", r.attempts, lastErr)
}

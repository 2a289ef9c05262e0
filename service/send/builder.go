package send

import (
	"fmt"
	"log/slog"

	solclient "github.com/brojonat/fanout/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// InstructionBuilder assembles unsigned transactions for transfer and
// receiving-account creation batches. It makes no network calls; the
// blockhash is a placeholder until the submitter attaches a fresh one.
type InstructionBuilder struct {
	logger *slog.Logger
}

// NewInstructionBuilder creates a builder.
func NewInstructionBuilder(logger *slog.Logger) *InstructionBuilder {
	return &InstructionBuilder{logger: logger}
}

// BuildTransferBatch builds one unsigned transaction transferring to every
// recipient in the batch. For native assets each recipient gets a system
// transfer. For fungible assets each recipient gets a transferChecked
// instruction that explicitly carries the asset's decimals, so a mismatch
// with the mint's actual decimals is rejected by the network instead of
// silently miscalculated. accounts maps recipient address to receiving
// account and is required for fungible assets.
func (b *InstructionBuilder) BuildTransferBatch(
	sender solana.PublicKey,
	batch []Recipient,
	asset AssetDescriptor,
	accounts map[string]solana.PublicKey,
) (*solana.Transaction, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	var sourceAccount solana.PublicKey
	if asset.Kind == AssetFungible {
		var err error
		sourceAccount, err = solclient.DeriveAssociatedTokenAddress(sender, asset.Mint, asset.OwnerProgram)
		if err != nil {
			return nil, err
		}
	}

	instructions := make([]solana.Instruction, 0, len(batch))
	for _, rec := range batch {
		recipient, err := solana.PublicKeyFromBase58(rec.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient address %q: %w", rec.Address, err)
		}
		amount, err := ToBaseUnits(rec.Amount, asset.Decimals)
		if err != nil {
			return nil, fmt.Errorf("recipient %s: %w", rec.Address, err)
		}

		switch asset.Kind {
		case AssetNative:
			instructions = append(instructions,
				system.NewTransferInstruction(amount, sender, recipient).Build())
		case AssetFungible:
			dest, ok := accounts[rec.Address]
			if !ok {
				return nil, fmt.Errorf("no receiving account resolved for %s", rec.Address)
			}
			instructions = append(instructions,
				token.NewTransferCheckedInstruction(
					amount,
					asset.Decimals,
					sourceAccount,
					asset.Mint,
					dest,
					sender,
					[]solana.PublicKey{},
				).Build())
		default:
			return nil, fmt.Errorf("unknown asset kind %q", asset.Kind)
		}
	}

	tx, err := solana.NewTransaction(instructions, solana.Hash{}, solana.TransactionPayer(sender))
	if err != nil {
		return nil, fmt.Errorf("assemble transfer transaction: %w", err)
	}

	b.logger.Debug("built transfer batch",
		"asset", asset.Label(),
		"recipients", len(batch),
	)
	return tx, nil
}

// BuildCreationBatch builds one unsigned transaction creating every receiving
// account in the work list, funded by payer. The create-idempotent form is
// used so an account created concurrently by an external actor is treated as
// already satisfied rather than failing the transaction.
func (b *InstructionBuilder) BuildCreationBatch(
	payer solana.PublicKey,
	work []ReceivingAccountWork,
	asset AssetDescriptor,
) (*solana.Transaction, error) {
	if len(work) == 0 {
		return nil, fmt.Errorf("empty creation batch")
	}

	instructions := make([]solana.Instruction, 0, len(work))
	for _, w := range work {
		wallet, err := solana.PublicKeyFromBase58(w.Recipient.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient address %q: %w", w.Recipient.Address, err)
		}
		instructions = append(instructions,
			newCreateIdempotentInstruction(payer, wallet, w.Mint, w.Account, asset.OwnerProgram))
	}

	tx, err := solana.NewTransaction(instructions, solana.Hash{}, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("assemble creation transaction: %w", err)
	}

	b.logger.Debug("built creation batch",
		"asset", asset.Label(),
		"accounts", len(work),
	)
	return tx, nil
}

// newCreateIdempotentInstruction builds the associated-token-account
// CreateIdempotent instruction (discriminator 1). Unlike plain Create it
// succeeds when the account already exists.
func newCreateIdempotentInstruction(payer, wallet, mint, ata, tokenProgram solana.PublicKey) solana.Instruction {
	if tokenProgram.IsZero() {
		tokenProgram = solana.TokenProgramID
	}
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(ata).WRITE(),
			solana.Meta(wallet),
			solana.Meta(mint),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(tokenProgram),
		},
		[]byte{1},
	)
}

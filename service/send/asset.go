package send

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// AssetKind distinguishes native SOL from SPL token assets. The kind decides
// which instruction family and account-derivation rule applies, and how many
// recipients fit in one transaction.
type AssetKind string

const (
	AssetNative   AssetKind = "native"
	AssetFungible AssetKind = "fungible"
)

// AssetDescriptor identifies one asset being distributed.
type AssetDescriptor struct {
	Kind     AssetKind
	Mint     solana.PublicKey // zero for native
	Decimals uint8
	// OwnerProgram is the token program that owns the mint. It participates
	// in associated-token-account derivation, so a Token-2022 mint resolves
	// to different receiving accounts than a legacy mint would.
	OwnerProgram solana.PublicKey
}

// NativeAsset describes SOL (9 decimals, lamport base unit).
func NativeAsset() AssetDescriptor {
	return AssetDescriptor{
		Kind:     AssetNative,
		Decimals: 9,
	}
}

// FungibleAsset describes an SPL token mint. If ownerProgram is the zero key,
// the legacy SPL token program is assumed.
func FungibleAsset(mint solana.PublicKey, decimals uint8, ownerProgram solana.PublicKey) AssetDescriptor {
	if ownerProgram.IsZero() {
		ownerProgram = solana.TokenProgramID
	}
	return AssetDescriptor{
		Kind:         AssetFungible,
		Mint:         mint,
		Decimals:     decimals,
		OwnerProgram: ownerProgram,
	}
}

// Label returns a human-readable identifier used in status messages and logs.
func (a AssetDescriptor) Label() string {
	if a.Kind == AssetNative {
		return "SOL"
	}
	return a.Mint.String()
}

// Validate checks the descriptor is internally consistent.
func (a AssetDescriptor) Validate() error {
	switch a.Kind {
	case AssetNative:
		return nil
	case AssetFungible:
		if a.Mint.IsZero() {
			return fmt.Errorf("fungible asset requires a mint")
		}
		return nil
	default:
		return fmt.Errorf("unknown asset kind %q", a.Kind)
	}
}

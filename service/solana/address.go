package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// IsValidAddress reports whether s is a well-formed base58 Solana public key.
// Pure check, no network calls; malformed input returns false rather than
// an error so callers can use it as a filter.
func IsValidAddress(s string) bool {
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}

// DeriveAssociatedTokenAddress derives the associated token account for a
// wallet and mint under the given token program. The derivation is
// deterministic; no network calls are made and existence is not checked.
func DeriveAssociatedTokenAddress(wallet, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			wallet.Bytes(),
			tokenProgram.Bytes(),
			mint.Bytes(),
		},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated token address for %s: %w", wallet, err)
	}
	return addr, nil
}

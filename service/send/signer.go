package send

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Signer is the locally held signing authority. It signs whole transactions
// when the sender pays its own fees, and adds a partial signature to
// transactions already countersigned by a fee sponsor.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(tx *solana.Transaction) error
	PartialSign(tx *solana.Transaction) error
}

// KeypairSigner signs with an in-process private key. Suitable for
// provisioning and automation contexts; interactive applications supply
// their own Signer backed by a wallet adapter.
type KeypairSigner struct {
	key solana.PrivateKey
}

// NewKeypairSigner wraps a private key.
func NewKeypairSigner(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

// NewKeypairSignerFromFile loads a Solana keygen JSON file.
func NewKeypairSignerFromFile(path string) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair from %s: %w", path, err)
	}
	return &KeypairSigner{key: key}, nil
}

func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

func (s *KeypairSigner) Sign(tx *solana.Transaction) error {
	_, err := tx.Sign(s.getter)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	return nil
}

func (s *KeypairSigner) PartialSign(tx *solana.Transaction) error {
	_, err := tx.PartialSign(s.getter)
	if err != nil {
		return fmt.Errorf("partial-sign transaction: %w", err)
	}
	return nil
}

func (s *KeypairSigner) getter(key solana.PublicKey) *solana.PrivateKey {
	if key.Equals(s.key.PublicKey()) {
		return &s.key
	}
	return nil
}

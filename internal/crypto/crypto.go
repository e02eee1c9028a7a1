// Package crypto wraps the cryptographic primitives the ledger core
// depends on but does not reimplement: Ed25519 keypairs (RFC 8032) via the
// standard library, and base58 (Bitcoin alphabet) address/signature
// encoding via mr-tron/base58.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/empower1/ledgercore/internal/chainerrors"
)

// SystemAddress is the sentinel sender of coinbase transactions.
const SystemAddress Address = "0"

// Address is the base58 encoding of a 32-byte Ed25519 public key, or the
// sentinel "0" denoting the system.
type Address string

// String implements fmt.Stringer.
func (a Address) String() string {
	return string(a)
}

// ToPublicKey decodes the address as base58 and parses it as an Ed25519
// public key. Fails with ErrInvalidPublicKey if the decoded bytes are not
// exactly ed25519.PublicKeySize long.
func (a Address) ToPublicKey() (ed25519.PublicKey, error) {
	raw, err := base58.Decode(string(a))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrDecoding, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", chainerrors.ErrInvalidPublicKey, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// AddressFromPublicKey derives the base58 address for an Ed25519 public key.
func AddressFromPublicKey(pub ed25519.PublicKey) Address {
	return Address(base58.Encode(pub))
}

// DigitalSignature is the base58 encoding of a 64-byte Ed25519 signature.
type DigitalSignature string

// String implements fmt.Stringer.
func (s DigitalSignature) String() string {
	return string(s)
}

func (s DigitalSignature) toBytes() ([]byte, error) {
	raw, err := base58.Decode(string(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrDecoding, err)
	}
	if len(raw) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", chainerrors.ErrInvalidSignature, ed25519.SignatureSize, len(raw))
	}
	return raw, nil
}

func signatureFromBytes(raw []byte) DigitalSignature {
	return DigitalSignature(base58.Encode(raw))
}

// Wallet is an Ed25519 keypair plus its derived address. It is owned
// exclusively by its holder and is never stored by the ledger core.
type Wallet struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	address Address
}

// NewWallet generates a fresh keypair from a cryptographically secure RNG.
func NewWallet() (*Wallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chainerrors.ErrKeypairGeneration, err)
	}
	return &Wallet{
		private: priv,
		public:  pub,
		address: AddressFromPublicKey(pub),
	}, nil
}

// WalletFromSecretKey deterministically reconstructs a wallet from a
// 32-byte Ed25519 seed. Fails with ErrInvalidPrivateKey if len(seed) != 32.
func WalletFromSecretKey(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", chainerrors.ErrInvalidPrivateKey, ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{
		private: priv,
		public:  pub,
		address: AddressFromPublicKey(pub),
	}, nil
}

// Address returns the wallet's derived address.
func (w *Wallet) Address() Address {
	return w.address
}

// PublicKey returns the wallet's Ed25519 public key.
func (w *Wallet) PublicKey() ed25519.PublicKey {
	return w.public
}

// ExportSecretKey returns the wallet's 32-byte Ed25519 seed. Callers must
// treat the result as sensitive; the core never persists it.
func (w *Wallet) ExportSecretKey() []byte {
	seed := w.private.Seed()
	out := make([]byte, len(seed))
	copy(out, seed)
	return out
}

// Sign produces an Ed25519 signature over msg.
func (w *Wallet) Sign(msg []byte) (DigitalSignature, error) {
	sig := ed25519.Sign(w.private, msg)
	return signatureFromBytes(sig), nil
}

// VerifySignature returns true iff sig is a valid Ed25519 signature over
// msg under pub. It returns false (not an error) on cryptographic
// mismatch; it only errors on malformed input.
func VerifySignature(msg []byte, sig DigitalSignature, pub ed25519.PublicKey) (bool, error) {
	raw, err := sig.toBytes()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, msg, raw), nil
}

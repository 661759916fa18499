package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part used when rendering identities.
type AddressPrefix string

const (
	// VaultPrefix is used for every principal known to the custody service:
	// admins, payees and custody accounts alike.
	VaultPrefix AddressPrefix = "dqv"

	// IdentityLength is the size of an identity in bytes.
	IdentityLength = 32
)

// Address represents a 32-byte identity with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  [IdentityLength]byte
}

// NewAddress wraps raw identity bytes. It panics if the slice is not exactly
// IdentityLength bytes.
func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != IdentityLength {
		panic("identity must be 32 bytes long")
	}
	addr := Address{prefix: prefix}
	copy(addr.bytes[:], b)
	return addr
}

// FromIdentity renders a raw identity with the vault prefix.
func FromIdentity(id [IdentityLength]byte) Address {
	return Address{prefix: VaultPrefix, bytes: id}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	out := make([]byte, IdentityLength)
	copy(out, a.bytes[:])
	return out
}

// Identity returns the raw 32-byte identity.
func (a Address) Identity() [IdentityLength]byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != IdentityLength {
		return Address{}, fmt.Errorf("identity must be %d bytes, got %d", IdentityLength, len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// ParseIdentity decodes a bech32 identity and enforces the vault prefix.
func ParseIdentity(addrStr string) ([IdentityLength]byte, error) {
	addr, err := DecodeAddress(addrStr)
	if err != nil {
		return [IdentityLength]byte{}, err
	}
	if addr.Prefix() != VaultPrefix {
		return [IdentityLength]byte{}, fmt.Errorf("unexpected identity prefix %q", addr.Prefix())
	}
	return addr.Identity(), nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address derives the identity as the keccak256 digest of the uncompressed
// public key (without the 0x04 marker).
func (k *PublicKey) Address() Address {
	raw := crypto.FromECDSAPub(k.PublicKey)
	return NewAddress(VaultPrefix, crypto.Keccak256(raw[1:]))
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

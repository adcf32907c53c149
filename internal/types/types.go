// types.go - Shared value types for the privatepay ledger, proof cache and orchestrator.
//
// Addresses identify accounts and token contracts. The zero address doubles as the
// null recipient and as the native-asset sentinel.

package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// AddressLength is the byte length of an account or token address.
const AddressLength = 20

// HashLength is the byte length of every derived identifier (execution ids,
// fingerprints, noise fingerprints, commitments).
const HashLength = 32

var errHexLength = errors.New("invalid hex length")

// Address identifies an account or a token contract.
type Address [AddressLength]byte

// AssetID selects the asset a balance is held in. The zero value is the native asset.
type AssetID = Address

// NativeAsset is the sentinel asset id for the native asset.
var NativeAsset AssetID

// ZeroAddress is the null address. It is never a valid recipient.
var ZeroAddress Address

// IsZero reports whether a is the null address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Hex returns the 0x-prefixed lowercase hex form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses a hex address, with or without the 0x prefix.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := decodeHex(s, AddressLength)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(a[:], b)
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests. It panics on malformed input.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Hash is a 256-bit derived identifier.
type Hash [HashLength]byte

// IsZero reports whether h is all zero bytes.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Hex returns the 0x-prefixed lowercase hex form.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

// Big interprets h as a big-endian unsigned integer.
func (h Hash) Big() *big.Int {
	return new(big.Int).SetBytes(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash parses a 32-byte hex value, with or without the 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := decodeHex(s, HashLength)
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	copy(h[:], b)
	return h, nil
}

// Commitment is the opaque one-time-use token that binds a settlement request.
type Commitment = Hash

// Fingerprint keys a proof verdict: a digest over a proof blob and its public inputs.
type Fingerprint = Hash

// ExecutionID keys a transfer execution record.
type ExecutionID = Hash

func decodeHex(s string, size int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, errHexLength
	}
	return b, nil
}

package types

import (
	"encoding/hex"
	"fmt"
)

// Address is a 32-byte account address on the registry ledger.
type Address [32]byte

// Hash32 is a 32-byte content digest supplied by callers. The core never
// computes content hashes itself; it stores them verbatim.
type Hash32 [32]byte

var zeroAddress Address

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == zeroAddress
}

func (a Address) Bytes() []byte {
	return a[:]
}

// AddressFromHex parses a 64-character hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("invalid address length: got %d bytes, want %d", len(b), len(a))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := AddressFromHex(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (h Hash32) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash32) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("invalid hash: %w", err)
	}
	if len(b) != len(h) {
		return fmt.Errorf("invalid hash length: got %d bytes, want 32", len(b))
	}
	copy(h[:], b)
	return nil
}

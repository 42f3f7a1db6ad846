// Package solana holds chain-level helpers shared across the pipeline.
package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// DecodeAddress decodes a base58 address and verifies it is 32 bytes.
func DecodeAddress(address string) ([]byte, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("address must be 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

// IsValidMint reports whether the string is a well-formed mint address.
func IsValidMint(mint string) bool {
	_, err := DecodeAddress(mint)
	return err == nil
}

// ValidateWalletAddress checks that the address is a well-formed ed25519
// public key. Program-derived addresses live off the curve and cannot sign
// transactions, so they are rejected as wallet inputs.
func ValidateWalletAddress(address string) error {
	raw, err := DecodeAddress(address)
	if err != nil {
		return err
	}
	if !isOnCurve(raw) {
		return fmt.Errorf("address %s is off the ed25519 curve (program-derived)", address)
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

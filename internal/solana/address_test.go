package solana

import (
	"strings"
	"testing"
)

func TestDecodeAddress_Valid(t *testing.T) {
	// System program: 32 zero bytes.
	raw, err := DecodeAddress("11111111111111111111111111111111")
	if err != nil {
		t.Fatalf("DecodeAddress failed: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("Expected 32 bytes, got %d", len(raw))
	}
	for i, b := range raw {
		if b != 0 {
			t.Errorf("Expected zero byte at %d, got %d", i, b)
		}
	}
}

func TestDecodeAddress_InvalidBase58(t *testing.T) {
	// 0, O, I and l are not in the base58 alphabet.
	_, err := DecodeAddress("0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl")
	if err == nil {
		t.Error("Expected error for invalid base58 characters")
	}
}

func TestDecodeAddress_WrongLength(t *testing.T) {
	// 31 zero bytes.
	_, err := DecodeAddress(strings.Repeat("1", 31))
	if err == nil {
		t.Error("Expected error for short address")
	}

	// 33 zero bytes.
	_, err = DecodeAddress(strings.Repeat("1", 33))
	if err == nil {
		t.Error("Expected error for long address")
	}

	_, err = DecodeAddress("")
	if err == nil {
		t.Error("Expected error for empty address")
	}
}

func TestValidateWalletAddress(t *testing.T) {
	if err := ValidateWalletAddress("11111111111111111111111111111111"); err != nil {
		t.Errorf("Expected valid wallet address, got: %v", err)
	}

	if err := ValidateWalletAddress("not-an-address"); err == nil {
		t.Error("Expected error for malformed address")
	}
}

func TestIsValidMint(t *testing.T) {
	if !IsValidMint("So11111111111111111111111111111111111111112") {
		t.Error("Expected WSOL mint to be valid")
	}
	if IsValidMint("short") {
		t.Error("Expected short string to be invalid")
	}
}

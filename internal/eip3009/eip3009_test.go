package eip3009

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// testPrivateKey is the Foundry/Anvil first default account private key.
// This is a well-known test key - NEVER use in production.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func TestGenerateNonce(t *testing.T) {
	t.Run("returns 32 byte nonce", func(t *testing.T) {
		nonce, err := GenerateNonce()
		if err != nil {
			t.Fatalf("Failed to generate nonce: %v", err)
		}
		if len(nonce[:]) != 32 {
			t.Errorf("expected 32 byte nonce, got %d bytes", len(nonce[:]))
		}
	})

	t.Run("generates unique nonces", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			nonce, err := GenerateNonce()
			if err != nil {
				t.Fatalf("Failed to generate nonce: %v", err)
			}
			key := hex.EncodeToString(nonce[:])
			if seen[key] {
				t.Errorf("duplicate nonce generated: %s", key)
			}
			seen[key] = true
		}
	})

	t.Run("generates non-zero nonces", func(t *testing.T) {
		var zero [32]byte
		for i := 0; i < 10; i++ {
			nonce, err := GenerateNonce()
			if err != nil {
				t.Fatalf("Failed to generate nonce: %v", err)
			}
			if bytes.Equal(nonce[:], zero[:]) {
				t.Error("generated zero nonce")
			}
		}
	})
}

func TestNewAuthorization(t *testing.T) {
	from := common.HexToAddress(testAddress)
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	value := big.NewInt(1000000)
	timeout := 300

	before := time.Now().Unix()
	auth, err := NewAuthorization(from, to, value, timeout)
	after := time.Now().Unix()
	if err != nil {
		t.Fatalf("NewAuthorization: %v", err)
	}

	if auth.From != from {
		t.Errorf("from = %s, want %s", auth.From.Hex(), from.Hex())
	}
	if auth.To != to {
		t.Errorf("to = %s, want %s", auth.To.Hex(), to.Hex())
	}
	if auth.Value.Cmp(value) != 0 {
		t.Errorf("value = %s, want %s", auth.Value, value)
	}

	validAfter := auth.ValidAfter.Int64()
	if validAfter < before || validAfter > after {
		t.Errorf("validAfter = %d, want in [%d,%d]", validAfter, before, after)
	}

	wantValidBefore := validAfter + int64(timeout)
	if auth.ValidBefore.Int64() != wantValidBefore {
		t.Errorf("validBefore = %d, want %d", auth.ValidBefore.Int64(), wantValidBefore)
	}
}

func TestSignAuthorization(t *testing.T) {
	privateKey, err := crypto.HexToECDSA(testPrivateKey)
	if err != nil {
		t.Fatalf("HexToECDSA: %v", err)
	}

	from := crypto.PubkeyToAddress(privateKey.PublicKey)
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	tokenAddress := common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")

	auth, err := NewAuthorization(from, to, big.NewInt(100000), 600)
	if err != nil {
		t.Fatalf("NewAuthorization: %v", err)
	}

	sig, err := SignAuthorization(privateKey, tokenAddress, big.NewInt(84532), auth, "USDC", "2")
	if err != nil {
		t.Fatalf("SignAuthorization: %v", err)
	}

	if !strings.HasPrefix(sig, "0x") {
		t.Fatalf("signature missing 0x prefix: %s", sig)
	}
	raw, err := hex.DecodeString(sig[2:])
	if err != nil {
		t.Fatalf("signature not hex: %v", err)
	}
	if len(raw) != 65 {
		t.Fatalf("signature length = %d, want 65", len(raw))
	}

	// signing the same authorization twice must produce the same signature
	sig2, err := SignAuthorization(privateKey, tokenAddress, big.NewInt(84532), auth, "USDC", "2")
	if err != nil {
		t.Fatalf("SignAuthorization (2nd): %v", err)
	}
	if sig != sig2 {
		t.Errorf("signature not deterministic for identical input: %s vs %s", sig, sig2)
	}
}

func TestForExternalSigning(t *testing.T) {
	from := common.HexToAddress(testAddress)
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	tokenAddress := common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")

	auth, err := NewAuthorization(from, to, big.NewInt(100000), 600)
	if err != nil {
		t.Fatalf("NewAuthorization: %v", err)
	}

	fields := ForExternalSigning(tokenAddress, 84532, auth, "USDC", "2")

	if fields.Message["value"] != "100000" {
		t.Errorf("message.value = %q, want %q", fields.Message["value"], "100000")
	}
	if fields.Message["from"] != from.Hex() {
		t.Errorf("message.from = %q, want %q", fields.Message["from"], from.Hex())
	}
	if fields.PrimaryType != "TransferWithAuthorization" {
		t.Errorf("primaryType = %q", fields.PrimaryType)
	}
	if fields.Domain["chainId"].(int64) != 84532 {
		t.Errorf("domain.chainId = %v", fields.Domain["chainId"])
	}
}

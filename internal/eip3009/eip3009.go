// Package eip3009 builds and signs ERC-3009 TransferWithAuthorization
// messages under EIP-712. Adapted from the teacher's internal/eip3009
// package: same domain-hash-then-keccak signing path over go-ethereum's
// apitypes, with validAfter/validBefore computed the way the broker's
// single-shot fetch needs them (spec 4.6.2) rather than the small backdated
// window the teacher used for its generic client.
package eip3009

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Authorization is the ERC-3009 TransferWithAuthorization message.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// NewAuthorization builds an authorization valid from now until
// now+maxTimeoutSeconds, with a fresh random nonce, per spec 4.6.2 step 2.
func NewAuthorization(from, to common.Address, value *big.Int, maxTimeoutSeconds int) (*Authorization, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, fmt.Errorf("eip3009: generate nonce: %w", err)
	}

	now := time.Now().Unix()
	return &Authorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  big.NewInt(now),
		ValidBefore: big.NewInt(now + int64(maxTimeoutSeconds)),
		Nonce:       nonce,
	}, nil
}

// GenerateNonce returns 32 cryptographically random bytes.
func GenerateNonce() ([32]byte, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, err
	}
	return nonce, nil
}

// typedData builds the EIP-712 TypedData for a TransferWithAuthorization
// message under the USDC domain for tokenAddress/chainID.
func typedData(tokenAddress common.Address, chainID *big.Int, auth *Authorization, name, version string) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: tokenAddress.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"validAfter":  (*math.HexOrDecimal256)(auth.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(auth.ValidBefore),
			"nonce":       common.BytesToHash(auth.Nonce[:]).Hex(),
		},
	}
}

// Digest computes the EIP-712 signing digest (0x19 0x01 || domainSeparator
// || structHash) for an authorization. Exported so externally-signing
// adapters (the two-phase flow) can hand the same domain/types/message to a
// browser wallet and verify what comes back matches.
func Digest(tokenAddress common.Address, chainID *big.Int, auth *Authorization, name, version string) ([]byte, error) {
	td := typedData(tokenAddress, chainID, auth, name, version)

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("eip3009: hash domain: %w", err)
	}
	messageHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("eip3009: hash message: %w", err)
	}

	raw := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	return crypto.Keccak256(raw), nil
}

// SignAuthorization signs auth under the USDC EIP-712 domain with privateKey
// and returns the 65-byte signature as 0x-hex.
func SignAuthorization(privateKey *ecdsa.PrivateKey, tokenAddress common.Address, chainID *big.Int, auth *Authorization, name, version string) (string, error) {
	digest, err := Digest(tokenAddress, chainID, auth, name, version)
	if err != nil {
		return "", err
	}

	signature, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return "", fmt.Errorf("eip3009: sign: %w", err)
	}
	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}

// TypedDataFields describes the domain/types/message a caller needs to hand
// an external signer (e.g. a browser wallet) for the two-phase flow, with
// every numeric message field already rendered as a decimal string per the
// wire protocol (spec §6).
type TypedDataFields struct {
	Domain      map[string]interface{} `json:"domain"`
	Types       map[string][]TypeField `json:"types"`
	PrimaryType string                 `json:"primaryType"`
	Message     map[string]string      `json:"message"`
}

// TypeField is one field of an EIP-712 type definition.
type TypeField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ForExternalSigning renders the typed-data fields for handing to an
// externally-signing adapter (spec 4.6.3 prepare step).
func ForExternalSigning(tokenAddress common.Address, chainID int64, auth *Authorization, name, version string) TypedDataFields {
	return TypedDataFields{
		Domain: map[string]interface{}{
			"name":              name,
			"version":           version,
			"chainId":           chainID,
			"verifyingContract": tokenAddress.Hex(),
		},
		Types: map[string][]TypeField{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": {
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Message: map[string]string{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       auth.Value.String(),
			"validAfter":  auth.ValidAfter.String(),
			"validBefore": auth.ValidBefore.String(),
			"nonce":       common.BytesToHash(auth.Nonce[:]).Hex(),
		},
	}
}

// FromFields parses the domain/message rendered by ForExternalSigning back
// into a tokenAddress/chainID/Authorization/name/version tuple. Used by the
// local-key adapter, which receives the same TypedDataFields shape every
// other adapter variant does but can sign locally rather than delegating
// to a remote signer.
func FromFields(fields TypedDataFields) (tokenAddress common.Address, chainID *big.Int, auth *Authorization, name, version string, err error) {
	name, _ = fields.Domain["name"].(string)
	version, _ = fields.Domain["version"].(string)

	verifyingContract, _ := fields.Domain["verifyingContract"].(string)
	if verifyingContract == "" {
		return common.Address{}, nil, nil, "", "", fmt.Errorf("eip3009: missing domain.verifyingContract")
	}
	tokenAddress = common.HexToAddress(verifyingContract)

	chainID, err = parseChainID(fields.Domain["chainId"])
	if err != nil {
		return common.Address{}, nil, nil, "", "", err
	}

	value, ok := new(big.Int).SetString(fields.Message["value"], 10)
	if !ok {
		return common.Address{}, nil, nil, "", "", fmt.Errorf("eip3009: malformed message.value")
	}
	validAfter, ok := new(big.Int).SetString(fields.Message["validAfter"], 10)
	if !ok {
		return common.Address{}, nil, nil, "", "", fmt.Errorf("eip3009: malformed message.validAfter")
	}
	validBefore, ok := new(big.Int).SetString(fields.Message["validBefore"], 10)
	if !ok {
		return common.Address{}, nil, nil, "", "", fmt.Errorf("eip3009: malformed message.validBefore")
	}

	nonceBytes, err := hex.DecodeString(trimHexPrefix(fields.Message["nonce"]))
	if err != nil || len(nonceBytes) != 32 {
		return common.Address{}, nil, nil, "", "", fmt.Errorf("eip3009: malformed message.nonce")
	}
	var nonce [32]byte
	copy(nonce[:], nonceBytes)

	auth = &Authorization{
		From:        common.HexToAddress(fields.Message["from"]),
		To:          common.HexToAddress(fields.Message["to"]),
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       nonce,
	}
	return tokenAddress, chainID, auth, name, version, nil
}

func parseChainID(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case int64:
		return big.NewInt(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case float64:
		return big.NewInt(int64(n)), nil
	case string:
		id, ok := new(big.Int).SetString(n, 10)
		if !ok {
			return nil, fmt.Errorf("eip3009: malformed domain.chainId %q", n)
		}
		return id, nil
	default:
		return nil, fmt.Errorf("eip3009: missing or malformed domain.chainId")
	}
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

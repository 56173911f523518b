package walletadapter

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/eip3009"
	"github.com/clawlet-dev/clawlet/internal/store"
)

// LocalKey is the self-custodial variant: a private key held in process
// memory (and persisted in the state document) that signs locally.
type LocalKey struct {
	mu         sync.Mutex
	privateKey *ecdsaPrivateKeyHolder
	address    string
	chain      chainBalancer
}

// ecdsaPrivateKeyHolder keeps the private key as unprefixed hex;
// SignTypedData parses it again on every call.
type ecdsaPrivateKeyHolder struct {
	hex string
}

// NewLocalKey constructs a local-key adapter. If cfg carries an existing
// private key, it is loaded immediately; otherwise Provision generates one.
func NewLocalKey(cfg *store.LocalKeyConfig, chain chainBalancer) (*LocalKey, error) {
	a := &LocalKey{chain: chain}
	if cfg != nil && cfg.PrivateKeyHex != "" {
		if err := a.load(cfg.PrivateKeyHex); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *LocalKey) load(hexKey string) error {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return apperror.ErrValidation("malformed local private key")
	}
	a.privateKey = &ecdsaPrivateKeyHolder{hex: strings.TrimPrefix(hexKey, "0x")}
	a.address = crypto.PubkeyToAddress(key.PublicKey).Hex()
	return nil
}

func (a *LocalKey) Provision(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.privateKey != nil {
		return a.address, nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return "", apperror.ErrInternal("generate local key", err)
	}
	hexKey := hexEncodePrivateKey(key)
	a.privateKey = &ecdsaPrivateKeyHolder{hex: hexKey}
	a.address = crypto.PubkeyToAddress(key.PublicKey).Hex()
	return a.address, nil
}

func (a *LocalKey) Address() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.privateKey == nil {
		return "", apperror.ErrNotInitialized("local-key wallet has not been provisioned")
	}
	return a.address, nil
}

func (a *LocalKey) IsInitialized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.privateKey != nil
}

func (a *LocalKey) Balance(ctx context.Context, network string) (string, error) {
	addr, err := a.Address()
	if err != nil {
		return "", err
	}
	return balanceOf(ctx, a.chain, network, addr)
}

func (a *LocalKey) SignTypedData(ctx context.Context, data TypedData) (string, error) {
	a.mu.Lock()
	keyHex := ""
	if a.privateKey != nil {
		keyHex = a.privateKey.hex
	}
	a.mu.Unlock()
	if keyHex == "" {
		return "", apperror.ErrNotInitialized("local-key wallet has not been provisioned")
	}

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return "", apperror.ErrInternal("parse stored local key", err)
	}

	tokenAddress, chainID, auth, name, version, err := eip3009.FromFields(data)
	if err != nil {
		return "", apperror.ErrValidation(err.Error())
	}

	sig, err := eip3009.SignAuthorization(key, tokenAddress, chainID, auth, name, version)
	if err != nil {
		return "", apperror.ErrInternal("sign authorization", err)
	}
	return sig, nil
}

func (a *LocalKey) Serialize() store.AdapterConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	keyHex := ""
	if a.privateKey != nil {
		keyHex = a.privateKey.hex
	}
	return store.AdapterConfig{
		Kind:     store.AdapterLocalKey,
		LocalKey: &store.LocalKeyConfig{PrivateKeyHex: keyHex},
	}
}

func hexEncodePrivateKey(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.FromECDSA(key))
}

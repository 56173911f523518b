// Package walletadapter implements the uniform wallet-adapter contract
// (spec §4.4) over five variants: a self-custodial local key and four
// externally-signing or provider-managed kinds. Grounded on the teacher's
// Signer interface (v2/signer.go) and its EVM implementation
// (v2/signers/evm/signer.go), generalized from "sign an x402 payload" to
// the broader provision/address/balance/signTypedData/serialize contract
// this spec requires.
package walletadapter

import (
	"context"

	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/chainio"
	"github.com/clawlet-dev/clawlet/internal/chainreg"
	"github.com/clawlet-dev/clawlet/internal/eip3009"
	"github.com/clawlet-dev/clawlet/internal/store"
)

// TypedData is the subset of EIP-712 typed data an adapter needs to sign:
// the domain, the type definitions, the primary type name, and the message
// fields (already rendered as the strings the wire protocol expects).
type TypedData = eip3009.TypedDataFields

// Adapter is the uniform contract every wallet-adapter variant satisfies.
type Adapter interface {
	// Provision creates or claims the underlying wallet and returns its
	// address. Idempotent if already provisioned.
	Provision(ctx context.Context) (string, error)

	// Address returns the wallet address, failing with *not-initialized*
	// if Provision has not run.
	Address() (string, error)

	// IsInitialized reports whether the adapter has an address yet.
	IsInitialized() bool

	// Balance queries the USDC balance on network (a CAIP-2 id).
	Balance(ctx context.Context, network string) (string, error)

	// SignTypedData produces a 65-byte EIP-712 signature as 0x-hex.
	// The browser variant always fails with *must-sign-client-side*.
	SignTypedData(ctx context.Context, data TypedData) (string, error)

	// Serialize returns the persistable adapter configuration, including
	// any fields discovered during Provision (wallet id, address).
	Serialize() store.AdapterConfig
}

// chainBalancer is the subset of internal/chainio used for ERC-20 balance
// lookups, factored out so adapters can be tested without a live RPC.
type chainBalancer interface {
	USDCBalance(ctx context.Context, network string, address string) (string, error)
}

var _ chainBalancer = (*chainio.Client)(nil)

// balanceOf is a small shared helper every provider-backed adapter uses
// once it has an address.
func balanceOf(ctx context.Context, chain chainBalancer, network, address string) (string, error) {
	if !chainreg.IsRecognizedEVMNetwork(network) {
		return "", apperror.ErrValidation("unrecognized network " + network)
	}
	return chain.USDCBalance(ctx, network, address)
}

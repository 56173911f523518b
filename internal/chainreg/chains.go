// Package chainreg holds the static chain registry: CAIP-2 network
// identifiers, the USDC contract address per chain, RPC endpoints, and the
// EIP-712 domain parameters ERC-3009 signatures are bound to. The table is
// built once at init and is read-only for the lifetime of the process.
package chainreg

import "fmt"

// Network is the short network selector persisted in the state document
// ("base" / "base-sepolia"), distinct from the CAIP-2 identifier used on
// the wire.
type Network string

const (
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia"
)

// ChainConfig describes everything the broker needs to negotiate and sign
// a payment on one chain.
type ChainConfig struct {
	// Network is the short selector ("base", "base-sepolia").
	Network Network

	// CAIP2 is the chain's CAIP-2 identifier, e.g. "eip155:8453".
	CAIP2 string

	// ChainID is the EVM chain id used in the EIP-712 domain.
	ChainID int64

	// USDCAddress is the Circle USDC contract address on this chain.
	USDCAddress string

	// EIP3009Name and EIP3009Version are the EIP-712 domain "name"/"version"
	// fields for USDC's TransferWithAuthorization on this chain.
	EIP3009Name    string
	EIP3009Version string

	// RPCURL is the default JSON-RPC endpoint for balance queries.
	RPCURL string
}

// Decimals is fixed for USDC across every supported chain.
const Decimals = 6

var registry = map[Network]ChainConfig{
	NetworkBase: {
		Network:        NetworkBase,
		CAIP2:          "eip155:8453",
		ChainID:        8453,
		USDCAddress:    "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
		RPCURL:         "https://mainnet.base.org",
	},
	NetworkBaseSepolia: {
		Network:        NetworkBaseSepolia,
		CAIP2:          "eip155:84532",
		ChainID:        84532,
		USDCAddress:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
		RPCURL:         "https://sepolia.base.org",
	},
}

var caip2ToNetwork = map[string]Network{
	"eip155:8453":  NetworkBase,
	"eip155:84532": NetworkBaseSepolia,
}

// ErrUnknownNetwork is returned for a network selector or CAIP-2 id this
// registry does not recognize.
var ErrUnknownNetwork = fmt.Errorf("chainreg: unknown network")

// ByNetwork returns the chain configuration for a short network selector.
func ByNetwork(network Network) (ChainConfig, error) {
	cfg, ok := registry[network]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
	return cfg, nil
}

// ByCAIP2 returns the chain configuration for a CAIP-2 network identifier.
func ByCAIP2(caip2 string) (ChainConfig, error) {
	network, ok := caip2ToNetwork[caip2]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, caip2)
	}
	return registry[network], nil
}

// CAIP2ForNetwork maps the short network selector to its CAIP-2 identifier.
func CAIP2ForNetwork(network Network) (string, error) {
	cfg, err := ByNetwork(network)
	if err != nil {
		return "", err
	}
	return cfg.CAIP2, nil
}

// IsValidNetwork reports whether s is one of the recognized short network
// selectors ("base", "base-sepolia").
func IsValidNetwork(s string) bool {
	_, ok := registry[Network(s)]
	return ok
}

// IsRecognizedEVMNetwork reports whether the CAIP-2 identifier names one of
// the chains this registry supports.
func IsRecognizedEVMNetwork(caip2 string) bool {
	_, ok := caip2ToNetwork[caip2]
	return ok
}

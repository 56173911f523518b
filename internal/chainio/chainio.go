// Package chainio performs the broker's only outbound chain reads: ERC-20
// balanceOf/decimals queries against the USDC contract on a CAIP-2 network
// (spec §4.8). Grounded on the pack's raw ABI-pack-then-CallContract style
// (vitwit-x402-go/clients/ethereum.go), rather than an abigen-generated
// binding, since no code generation step is available here.
package chainio

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/clawlet-dev/clawlet/internal/amountfmt"
	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/chainreg"
)

// erc20ABI is the static fragment this client needs: balanceOf and
// decimals, nothing else.
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

var parsedERC20ABI = mustParseABI(erc20ABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("chainio: invalid embedded ERC-20 ABI: " + err.Error())
	}
	return parsed
}

// Client dials one ethclient.Client per recognized network, lazily, and
// caches it for the life of the process.
type Client struct {
	mu       sync.Mutex
	rpcByNet map[chainreg.Network]string
	conns    map[chainreg.Network]*ethclient.Client
	log      zerolog.Logger
}

// Option configures optional Client behavior at construction time.
type Option func(*Client)

// WithLogger attaches a logger the client uses to record dial/query
// failures (spec §10.2).
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// NewClient builds a chain-I/O client. rpcOverrides lets configuration
// replace the built-in default RPC endpoint per network (empty string
// keeps the default from the chain registry).
func NewClient(rpcOverrides map[chainreg.Network]string, opts ...Option) *Client {
	c := &Client{
		rpcByNet: rpcOverrides,
		conns:    map[chainreg.Network]*ethclient.Client{},
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) dial(ctx context.Context, network chainreg.Network) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[network]; ok {
		return conn, nil
	}

	cfg, err := chainreg.ByNetwork(network)
	if err != nil {
		return nil, apperror.ErrValidation(err.Error())
	}

	rpcURL := cfg.RPCURL
	if override, ok := c.rpcByNet[network]; ok && override != "" {
		rpcURL = override
	}

	conn, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		c.log.Error().Str("network", string(network)).Str("rpcUrl", rpcURL).Err(err).Msg("chain RPC dial failed")
		return nil, apperror.ErrUpstream("dial chain RPC", err)
	}
	c.conns[network] = conn
	return conn, nil
}

// USDCBalance queries balanceOf and decimals on the USDC contract for
// network (a CAIP-2 id) and formats the result per §4.6.4's rules, using
// the contract's own reported decimals rather than assuming 6.
func (c *Client) USDCBalance(ctx context.Context, caip2 string, address string) (string, error) {
	cfg, err := chainreg.ByCAIP2(caip2)
	if err != nil {
		return "", apperror.ErrValidation(err.Error())
	}

	conn, err := c.dial(ctx, cfg.Network)
	if err != nil {
		return "", err
	}

	token := common.HexToAddress(cfg.USDCAddress)
	owner := common.HexToAddress(address)

	balance, err := c.callUint(ctx, conn, token, "balanceOf", owner)
	if err != nil {
		return "", apperror.ErrUpstream("query USDC balanceOf", err)
	}

	decimalsBig, err := c.callUint(ctx, conn, token, "decimals")
	if err != nil {
		return "", apperror.ErrUpstream("query USDC decimals", err)
	}

	return amountfmt.FormatAtomic(balance, int(decimalsBig.Int64())), nil
}

func (c *Client) callUint(ctx context.Context, conn *ethclient.Client, contract common.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := parsedERC20ABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	out, err := conn.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}

	results, err := parsedERC20ABI.Unpack(method, out)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, apperror.ErrInternal("unexpected ABI unpack result", nil)
	}

	switch v := results[0].(type) {
	case *big.Int:
		return v, nil
	case uint8:
		return big.NewInt(int64(v)), nil
	default:
		return nil, apperror.ErrInternal("unexpected ABI result type", nil)
	}
}

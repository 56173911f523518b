package walletadapter

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/clawlet-dev/clawlet/internal/eip3009"
	"github.com/clawlet-dev/clawlet/internal/store"
)

func TestLocalKeyProvisionIsIdempotent(t *testing.T) {
	a, err := NewLocalKey(nil, nil)
	require.NoError(t, err)
	require.False(t, a.IsInitialized())

	addr1, err := a.Provision(context.Background())
	require.NoError(t, err)
	require.True(t, a.IsInitialized())

	addr2, err := a.Provision(context.Background())
	require.NoError(t, err)
	require.Equal(t, addr1, addr2)
}

func TestLocalKeyAddressBeforeProvisionFails(t *testing.T) {
	a, err := NewLocalKey(nil, nil)
	require.NoError(t, err)
	_, err = a.Address()
	require.Error(t, err)
}

func TestLocalKeySignTypedDataRoundTrips(t *testing.T) {
	cfg := &store.LocalKeyConfig{PrivateKeyHex: "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"}
	a, err := NewLocalKey(cfg, nil)
	require.NoError(t, err)

	from := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	token := common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")

	auth, err := eip3009.NewAuthorization(from, to, big.NewInt(100000), 600)
	require.NoError(t, err)
	fields := eip3009.ForExternalSigning(token, 84532, auth, "USDC", "2")

	sig, err := a.SignTypedData(context.Background(), fields)
	require.NoError(t, err)
	require.True(t, len(sig) > 2 && sig[:2] == "0x")
}

func TestBrowserAdapterRequiresAddress(t *testing.T) {
	_, err := NewBrowser(nil, nil)
	require.Error(t, err)

	a, err := NewBrowser(&store.BrowserConfig{Address: "0xabc"}, nil)
	require.NoError(t, err)
	require.True(t, a.IsInitialized())

	_, err = a.SignTypedData(context.Background(), eip3009.TypedDataFields{})
	require.Error(t, err)
}

package mcpapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/clawlet-dev/clawlet/internal/broker"
	"github.com/clawlet-dev/clawlet/internal/ledger"
	"github.com/clawlet-dev/clawlet/internal/rules"
	"github.com/clawlet-dev/clawlet/internal/store"
	"github.com/clawlet-dev/clawlet/internal/tools"
	"github.com/clawlet-dev/clawlet/internal/walletmanager"
)

func newTestCatalog(t *testing.T) *tools.Catalog {
	t.Helper()
	s, err := store.Load(t.TempDir())
	require.NoError(t, err)
	l := ledger.New(s)
	r := rules.New(s, l)
	m := walletmanager.New(s, nil)
	b := broker.New(s, l, r, m)
	return tools.New(s, l, r, m, b, false)
}

func callTool(fn func(ctx context.Context, args map[string]interface{}) (interface{}, error), args map[string]interface{}) (*mcp.CallToolResult, error) {
	return handle(fn)(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
}

func TestHandleWrapsSuccessAsJSONText(t *testing.T) {
	catalog := newTestCatalog(t)
	result, err := callTool(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.Config(), nil
	}, nil)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	require.Equal(t, false, decoded["demoMode"])
}

func TestHandleWrapsAppErrorAsErrorResult(t *testing.T) {
	catalog := newTestCatalog(t)
	result, err := callTool(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.CreateWallet(ctx, tools.CreateWalletInput{})
	}, nil)
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestNewServerReturnsServer(t *testing.T) {
	catalog := newTestCatalog(t)
	srv := NewServer("clawlet", "test", catalog)
	require.NotNil(t, srv)
}

func TestStringSliceArgParsesJSONArray(t *testing.T) {
	require.Equal(t, []string{"a.example", "b.example"}, stringSliceArg(`["a.example","b.example"]`))
	require.Equal(t, []string{}, stringSliceArg("not json"))
}

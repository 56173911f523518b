// Package mcpapi binds the tool catalog to the MCP tool-invocation
// protocol with mark3labs/mcp-go. NewServer returns a transport-agnostic
// server; cmd/clawletd serves it over streamable HTTP only, and no stdio
// transport is started anywhere. Grounded on the teacher's v2/mcp/server
// (mcp.NewTool + mcpserver.NewMCPServer().AddTool(tool, handler)) — adapted
// from a single x402-gated tool pair to the full fixed operation catalog,
// none of which needs payment-gating itself since gating is the broker's
// job, not this binding's.
package mcpapi

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/rules"
	"github.com/clawlet-dev/clawlet/internal/store"
	"github.com/clawlet-dev/clawlet/internal/tools"
	"github.com/clawlet-dev/clawlet/internal/walletmanager"
)

// NewServer builds the MCP server exposing every tool-catalog operation.
func NewServer(name, version string, catalog *tools.Catalog) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(name, version)

	s.AddTool(mcp.NewTool("config", mcp.WithDescription("Report whether demo mode is active")),
		handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return catalog.Config(), nil
		}))

	s.AddTool(mcp.NewTool("listWallets", mcp.WithDescription("List every wallet and the active wallet id")),
		handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return catalog.ListWallets()
		}))

	s.AddTool(mcp.NewTool("createWallet",
		mcp.WithDescription("Provision a new wallet under one of the adapter kinds"),
		mcp.WithString("adapter", mcp.Required(), mcp.Description("local-key, privy, coinbase-cdp, crossmint, or browser")),
		mcp.WithString("label", mcp.Description("Display label")),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.CreateWallet(ctx, tools.CreateWalletInput{
			Adapter: store.AdapterKind(stringArg(args, "adapter")),
			Label:   stringArg(args, "label"),
		})
	}))

	s.AddTool(mcp.NewTool("switchWallet",
		mcp.WithDescription("Make a wallet active"),
		mcp.WithString("walletId", mcp.Required()),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.SwitchWallet(stringArg(args, "walletId"))
	}))

	s.AddTool(mcp.NewTool("renameWallet",
		mcp.WithDescription("Relabel the active wallet"),
		mcp.WithString("label", mcp.Required()),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.RenameWallet(stringArg(args, "label"))
	}))

	s.AddTool(mcp.NewTool("removeWallet",
		mcp.WithDescription("Delete a wallet"),
		mcp.WithString("walletId", mcp.Required()),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.RemoveWallet(stringArg(args, "walletId"))
	}))

	s.AddTool(mcp.NewTool("getWallet", mcp.WithDescription("Get the active wallet summary")),
		handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return catalog.GetWallet()
		}))

	s.AddTool(mcp.NewTool("getNetwork", mcp.WithDescription("Get the selected network")),
		handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return catalog.GetNetwork(), nil
		}))

	s.AddTool(mcp.NewTool("setNetwork",
		mcp.WithDescription("Select base or base-sepolia"),
		mcp.WithString("network", mcp.Required()),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.SetNetwork(stringArg(args, "network"))
	}))

	s.AddTool(mcp.NewTool("getBalance",
		mcp.WithDescription("Read the active wallet's USDC balance"),
		mcp.WithString("network", mcp.Description("Optional network override")),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.GetBalance(ctx, stringArg(args, "network"))
	}))

	s.AddTool(mcp.NewTool("getRules", mcp.WithDescription("Get the active wallet's spending rules")),
		handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return catalog.GetRules()
		}))

	s.AddTool(mcp.NewTool("setRules",
		mcp.WithDescription("Partially update the active wallet's spending rules"),
		mcp.WithString("maxPerTransaction", mcp.Description("USDC decimal string, or omit for no change")),
		mcp.WithString("dailyCap", mcp.Description("USDC decimal string, or omit for no change")),
		mcp.WithString("allowedServices", mcp.Description("JSON array of hostnames; replaces the allowlist, omit to leave unchanged")),
		mcp.WithString("blockedServices", mcp.Description("JSON array of hostnames; replaces the blocklist, omit to leave unchanged")),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		patch := rules.Patch{}
		if v, ok := args["maxPerTransaction"].(string); ok {
			patch.MaxPerTransaction = &v
		}
		if v, ok := args["dailyCap"].(string); ok {
			patch.DailyCap = &v
		}
		if v, ok := args["allowedServices"].(string); ok {
			patch.HasAllowedServices = true
			patch.AllowedServices = stringSliceArg(v)
		}
		if v, ok := args["blockedServices"].(string); ok {
			patch.HasBlockedServices = true
			patch.BlockedServices = stringSliceArg(v)
		}
		return catalog.SetRules(patch)
	}))

	s.AddTool(mcp.NewTool("listTransactions",
		mcp.WithDescription("List the active wallet's transactions, newest first"),
		mcp.WithNumber("limit", mcp.Description("Capped at 200")),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.ListTransactions(intArg(args, "limit"))
	}))

	s.AddTool(mcp.NewTool("todaySpent", mcp.WithDescription("Sum today's settled spend in atomic units")),
		handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return catalog.TodaySpent()
		}))

	s.AddTool(mcp.NewTool("getAgentIdentity", mcp.WithDescription("Get the active wallet's agent identity")),
		handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return catalog.GetAgentIdentity()
		}))

	s.AddTool(mcp.NewTool("setAgentIdentity",
		mcp.WithDescription("Create or update the active wallet's agent identity"),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("description", mcp.Description("")),
		mcp.WithString("agentId", mcp.Description("")),
		mcp.WithString("agentRegistry", mcp.Description("")),
		mcp.WithString("metadataUri", mcp.Description("")),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.SetAgentIdentity(walletmanager.IdentityPatch{
			Name:          stringArg(args, "name"),
			Description:   optionalStringArg(args, "description"),
			AgentID:       optionalStringArg(args, "agentId"),
			AgentRegistry: optionalStringArg(args, "agentRegistry"),
			MetadataURI:   optionalStringArg(args, "metadataUri"),
		})
	}))

	s.AddTool(mcp.NewTool("pay",
		mcp.WithDescription("Fetch an x402-gated URL, paying with USDC if a 402 is returned"),
		mcp.WithString("url", mcp.Required()),
		mcp.WithString("method", mcp.Description("Defaults to GET")),
		mcp.WithString("body", mcp.Description("")),
		mcp.WithString("reason", mcp.Description("Human-readable purpose, recorded on the ledger entry")),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.Pay(ctx, payInputFromArgs(args))
	}))

	s.AddTool(mcp.NewTool("payPrepare",
		mcp.WithDescription("Negotiate payment and return a session for an externally-signing wallet"),
		mcp.WithString("url", mcp.Required()),
		mcp.WithString("method", mcp.Description("Defaults to GET")),
		mcp.WithString("body", mcp.Description("")),
		mcp.WithString("reason", mcp.Description("")),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.PayPrepare(ctx, payInputFromArgs(args))
	}))

	s.AddTool(mcp.NewTool("payComplete",
		mcp.WithDescription("Complete a prepared payment session with an externally produced signature"),
		mcp.WithString("sessionId", mcp.Required()),
		mcp.WithString("signature", mcp.Required()),
	), handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return catalog.PayComplete(ctx, stringArg(args, "sessionId"), stringArg(args, "signature"))
	}))

	s.AddTool(mcp.NewTool("freeze", mcp.WithDescription("Freeze the active wallet, blocking all broker operations")),
		handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return catalog.Freeze(true)
		}))

	s.AddTool(mcp.NewTool("unfreeze", mcp.WithDescription("Unfreeze the active wallet")),
		handle(func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return catalog.Freeze(false)
		}))

	return s
}

// handle adapts a catalog call returning (interface{}, error) into an
// mcp-go ToolHandlerFunc, marshaling successful results to JSON text and
// mapping AppError into an error-flagged tool result rather than a
// transport-level failure (spec §7: every operation surfaces its error as
// a human-readable string to the agent, never a protocol break).
func handle(fn func(ctx context.Context, args map[string]interface{}) (interface{}, error)) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := fn(ctx, req.GetArguments())
		if err != nil {
			return errorResult(err), nil
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return errorResult(err), nil
		}
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(string(raw))}}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	message := err.Error()
	if appErr, ok := err.(*apperror.AppError); ok {
		message = appErr.Message
	}
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.NewTextContent(message)}}
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func optionalStringArg(args map[string]interface{}, key string) *string {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func intArg(args map[string]interface{}, key string) int {
	v, ok := args[key].(float64)
	if !ok {
		return 0
	}
	return int(v)
}

// stringSliceArg parses a JSON array of strings handed in as a raw string
// argument (the MCP tool schema only declares scalar string parameters).
func stringSliceArg(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}

func payInputFromArgs(args map[string]interface{}) tools.PayInput {
	var body []byte
	if b := stringArg(args, "body"); b != "" {
		body = []byte(b)
	}
	method := stringArg(args, "method")
	if method == "" {
		method = "GET"
	}
	return tools.PayInput{
		URL:    stringArg(args, "url"),
		Method: method,
		Body:   body,
		Reason: stringArg(args, "reason"),
	}
}

// Package httpapi binds the tool catalog to JSON-over-HTTP with gin,
// grounded on the teacher pack's v2/http/gin middleware for request/response
// conventions (gin.H JSON bodies, c.AbortWithStatusJSON on failure) adapted
// from payment-gating middleware to a plain REST-style JSON router over the
// broker's own operations instead of gating gin's own handler chain.
package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clawlet-dev/clawlet/internal/apperror"
	"github.com/clawlet-dev/clawlet/internal/rules"
	"github.com/clawlet-dev/clawlet/internal/store"
	"github.com/clawlet-dev/clawlet/internal/tools"
	"github.com/clawlet-dev/clawlet/internal/walletmanager"
)

// NewRouter builds the gin engine exposing every tool-catalog operation.
func NewRouter(catalog *tools.Catalog) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/config", handleConfig(catalog))

	r.GET("/wallets", handleListWallets(catalog))
	r.POST("/wallets", handleCreateWallet(catalog))
	r.GET("/wallet", handleGetWallet(catalog))
	r.POST("/wallets/active", handleSwitchWallet(catalog))
	r.PATCH("/wallets/active", handleRenameWallet(catalog))
	r.DELETE("/wallets/:id", handleRemoveWallet(catalog))

	r.GET("/network", handleGetNetwork(catalog))
	r.PUT("/network", handleSetNetwork(catalog))

	r.GET("/balance", handleGetBalance(catalog))

	r.GET("/rules", handleGetRules(catalog))
	r.PUT("/rules", handleSetRules(catalog))

	r.GET("/transactions", handleListTransactions(catalog))
	r.GET("/spent/today", handleTodaySpent(catalog))

	r.GET("/agent-identity", handleGetAgentIdentity(catalog))
	r.PUT("/agent-identity", handleSetAgentIdentity(catalog))

	r.POST("/pay", handlePay(catalog))
	r.POST("/pay/prepare", handlePayPrepare(catalog))
	r.POST("/pay/complete", handlePayComplete(catalog))

	r.POST("/freeze", handleFreeze(catalog, true))
	r.POST("/unfreeze", handleFreeze(catalog, false))

	return r
}

// respondError maps an AppError to its HTTP status; anything else is an
// internal error (spec §7).
func respondError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "INTERNAL"})
}

func handleConfig(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, catalog.Config())
	}
}

func handleListWallets(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := catalog.ListWallets()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type createWalletRequest struct {
	Adapter     store.AdapterKind        `json:"adapter"`
	Label       string                   `json:"label"`
	LocalKey    *store.LocalKeyConfig    `json:"localKey,omitempty"`
	Privy       *store.PrivyConfig       `json:"privy,omitempty"`
	CoinbaseCDP *store.CoinbaseCDPConfig `json:"coinbaseCdp,omitempty"`
	Crossmint   *store.CrossmintConfig   `json:"crossmint,omitempty"`
	Browser     *store.BrowserConfig     `json:"browser,omitempty"`
}

func handleCreateWallet(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWalletRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperror.ErrValidation("malformed request body"))
			return
		}
		summary, err := catalog.CreateWallet(c.Request.Context(), tools.CreateWalletInput{
			Adapter:     req.Adapter,
			Label:       req.Label,
			LocalKey:    req.LocalKey,
			Privy:       req.Privy,
			CoinbaseCDP: req.CoinbaseCDP,
			Crossmint:   req.Crossmint,
			Browser:     req.Browser,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, summary)
	}
}

func handleGetWallet(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := catalog.GetWallet()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleSwitchWallet(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			WalletID string `json:"walletId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperror.ErrValidation("malformed request body"))
			return
		}
		result, err := catalog.SwitchWallet(req.WalletID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleRenameWallet(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Label string `json:"label"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperror.ErrValidation("malformed request body"))
			return
		}
		result, err := catalog.RenameWallet(req.Label)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleRemoveWallet(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := catalog.RemoveWallet(c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleGetNetwork(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, catalog.GetNetwork())
	}
}

func handleSetNetwork(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Network string `json:"network"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperror.ErrValidation("malformed request body"))
			return
		}
		result, err := catalog.SetNetwork(req.Network)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleGetBalance(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := catalog.GetBalance(c.Request.Context(), c.Query("network"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleGetRules(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := catalog.GetRules()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type setRulesRequest struct {
	MaxPerTransaction  *string  `json:"maxPerTransaction"`
	DailyCap           *string  `json:"dailyCap"`
	AllowedServices    []string `json:"allowedServices"`
	HasAllowedServices bool     `json:"hasAllowedServices"`
	BlockedServices    []string `json:"blockedServices"`
	HasBlockedServices bool     `json:"hasBlockedServices"`
}

func handleSetRules(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setRulesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperror.ErrValidation("malformed request body"))
			return
		}
		result, err := catalog.SetRules(rules.Patch{
			MaxPerTransaction:  req.MaxPerTransaction,
			DailyCap:           req.DailyCap,
			AllowedServices:    req.AllowedServices,
			HasAllowedServices: req.HasAllowedServices,
			BlockedServices:    req.BlockedServices,
			HasBlockedServices: req.HasBlockedServices,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleListTransactions(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			parsed, err := parsePositiveInt(raw)
			if err != nil {
				respondError(c, apperror.ErrValidation("malformed limit"))
				return
			}
			limit = parsed
		}
		result, err := catalog.ListTransactions(limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleTodaySpent(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := catalog.TodaySpent()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleGetAgentIdentity(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := catalog.GetAgentIdentity()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"agentIdentity": identity})
	}
}

func handleSetAgentIdentity(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch walletmanager.IdentityPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			respondError(c, apperror.ErrValidation("malformed request body"))
			return
		}
		identity, err := catalog.SetAgentIdentity(patch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, identity)
	}
}

type payRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
	Reason  string            `json:"reason"`
}

func (req payRequest) toPayInput() tools.PayInput {
	var body []byte
	if req.Body != "" {
		body = []byte(req.Body)
	}
	return tools.PayInput{URL: req.URL, Method: req.Method, Body: body, Headers: req.Headers, Reason: req.Reason}
}

func handlePay(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperror.ErrValidation("malformed request body"))
			return
		}
		result, err := catalog.Pay(c.Request.Context(), req.toPayInput())
		if err != nil {
			respondPaymentError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handlePayPrepare(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperror.ErrValidation("malformed request body"))
			return
		}
		result, err := catalog.PayPrepare(c.Request.Context(), req.toPayInput())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handlePayComplete(catalog *tools.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			SessionID string `json:"sessionId"`
			Signature string `json:"signature"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperror.ErrValidation("malformed request body"))
			return
		}
		result, err := catalog.PayComplete(c.Request.Context(), req.SessionID, req.Signature)
		if err != nil {
			respondPaymentError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// respondPaymentError emits the normalized payment envelope for
// negotiation/signing failures instead of a bare error body (spec §7:
// "{status:0, error, body:null, payment:null}").
func respondPaymentError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	httpStatus := http.StatusInternalServerError
	message := err.Error()
	if errors.As(err, &appErr) {
		httpStatus = appErr.HTTPStatus
		message = appErr.Message
	}
	c.JSON(httpStatus, gin.H{"status": 0, "error": message, "body": nil, "payment": nil})
}

func handleFreeze(catalog *tools.Catalog, frozen bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := catalog.Freeze(frozen)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, io.ErrUnexpectedEOF
		}
		n = n*10 + int(ch-'0')
	}
	return n, nil
}

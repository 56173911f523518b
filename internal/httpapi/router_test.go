package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/clawlet-dev/clawlet/internal/broker"
	"github.com/clawlet-dev/clawlet/internal/ledger"
	"github.com/clawlet-dev/clawlet/internal/rules"
	"github.com/clawlet-dev/clawlet/internal/store"
	"github.com/clawlet-dev/clawlet/internal/tools"
	"github.com/clawlet-dev/clawlet/internal/walletmanager"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, demoMode bool) *gin.Engine {
	t.Helper()
	s, err := store.Load(t.TempDir())
	require.NoError(t, err)
	l := ledger.New(s)
	r := rules.New(s, l)
	m := walletmanager.New(s, nil)
	b := broker.New(s, l, r, m)
	catalog := tools.New(s, l, r, m, b, demoMode)
	return NewRouter(catalog)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestConfigEndpoint(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doJSON(t, router, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"demoMode":true`)
}

func TestCreateWalletEndpoint(t *testing.T) {
	router := newTestRouter(t, false)
	rec := doJSON(t, router, http.MethodPost, "/wallets", map[string]interface{}{
		"adapter":  "local-key",
		"label":    "Primary",
		"localKey": map[string]string{},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/wallet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Primary")
}

func TestDemoModeWriteRejected(t *testing.T) {
	router := newTestRouter(t, true)
	rec := doJSON(t, router, http.MethodPost, "/wallets", map[string]interface{}{
		"adapter":  "local-key",
		"localKey": map[string]string{},
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPayEndpointReturnsPaymentEnvelopeOnError(t *testing.T) {
	router := newTestRouter(t, false)
	rec := doJSON(t, router, http.MethodPost, "/pay", map[string]interface{}{
		"url": "http://example.invalid/resource",
	})
	require.NotEqual(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"payment":null`)
}

func TestSetNetworkRejectsUnknownNetwork(t *testing.T) {
	router := newTestRouter(t, false)
	rec := doJSON(t, router, http.MethodPut, "/network", map[string]string{"network": "ethereum-mainnet"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

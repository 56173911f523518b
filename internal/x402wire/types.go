// Package x402wire defines the x402 payment-required/payment-payload wire
// shapes and their header/body encoding (spec §6), grounded on the
// teacher's v2 types (v2/types.go) and HTTP helpers
// (v2/http/internal/helpers/helpers.go), adapted to this system's wire
// details: lowercase header names, dual PAYMENT-SIGNATURE/X-PAYMENT retry
// headers, and the payment-response/x-payment-response receipt header.
package x402wire

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// PaymentRequirements is one acceptable payment option from a 402 response's
// "accepts" array.
type PaymentRequirements struct {
	Scheme            string                 `json:"scheme"`
	Network           string                 `json:"network"`
	Asset             string                 `json:"asset"`
	Amount            string                 `json:"amount"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// Resource optionally describes the protected resource named in a 402
// response.
type Resource struct {
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// PaymentRequired is the 402 response body (spec §6).
type PaymentRequired struct {
	X402Version int                    `json:"x402Version"`
	Accepts     []PaymentRequirements  `json:"accepts"`
	Resource    *Resource              `json:"resource,omitempty"`
}

// EVMAuthorization carries the ERC-3009 authorization fields as the
// decimal/hex strings the wire protocol requires (spec §6).
type EVMAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// EVMPayload is the signed payment payload for the "exact" scheme on EVM.
type EVMPayload struct {
	Signature     string           `json:"signature"`
	Authorization EVMAuthorization `json:"authorization"`
}

// PaymentPayload is the retry request's signed payment document.
type PaymentPayload struct {
	X402Version int                  `json:"x402Version"`
	Resource    *string              `json:"resource,omitempty"`
	Accepted    PaymentRequirements  `json:"accepted"`
	Payload     EVMPayload           `json:"payload"`
}

// Receipt is the server's settlement receipt (spec §6: read from either
// "transaction" or "txHash").
type Receipt struct {
	Transaction string `json:"transaction,omitempty"`
	TxHash      string `json:"txHash,omitempty"`
}

// Hash returns whichever of transaction/txHash is set.
func (r Receipt) Hash() string {
	if r.Transaction != "" {
		return r.Transaction
	}
	return r.TxHash
}

// headerValue looks up name case-insensitively among a fixed set of header
// name candidates, since servers in the wild disagree on casing (spec §9).
func headerValue(h http.Header, candidates ...string) string {
	for _, name := range candidates {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// ParsePaymentRequired extracts the 402 document from either the
// payment-required header (base64 JSON) or, if absent, the response body.
func ParsePaymentRequired(headers http.Header, body []byte) (*PaymentRequired, error) {
	if raw := headerValue(headers, "payment-required", "Payment-Required", "PAYMENT-REQUIRED"); raw != "" {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, err
		}
		body = decoded
	}

	var doc PaymentRequired
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// EncodePaymentPayload base64-encodes a PaymentPayload for the retry
// request's PAYMENT-SIGNATURE/X-PAYMENT headers.
func EncodePaymentPayload(p PaymentPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// SetPaymentHeaders sets both header spellings observed in the wild (spec
// §4.6.2 step 5).
func SetPaymentHeaders(req *http.Request, encoded string) {
	req.Header.Set("PAYMENT-SIGNATURE", encoded)
	req.Header.Set("X-PAYMENT", encoded)
}

// ParseReceipt extracts the settlement receipt from either
// payment-response or x-payment-response (either casing), base64-decoding
// and parsing the JSON. Returns nil if absent or unparseable — a parse
// failure degrades txHash to null rather than failing the call (spec §7).
func ParseReceipt(headers http.Header) *Receipt {
	raw := headerValue(headers, "payment-response", "Payment-Response", "x-payment-response", "X-Payment-Response", "X-PAYMENT-RESPONSE")
	if raw == "" {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var r Receipt
	if err := json.Unmarshal(decoded, &r); err != nil {
		return nil
	}
	return &r
}

// HostOf returns the host portion of a URL string, used to compute the
// "service" rules are enforced against (spec §4.6.1 step 6).
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Host)
}

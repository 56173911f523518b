// Package apperror provides the structured error taxonomy used across the
// broker (spec §7), grounded on the teacher pack's pkg/apperror: a single
// error type carrying a stable code, a human message, an HTTP status, and
// an optional wrapped cause.
package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps cleanly to an HTTP response and
// to the payment envelope's {status:0, error} shape.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(code, message string, httpStatus int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// ---- validation ----

func ErrValidation(message string) *AppError {
	return New("VALIDATION", message, http.StatusBadRequest)
}

// ---- not-initialized ----

func ErrNotInitialized(message string) *AppError {
	return New("NOT_INITIALIZED", message, http.StatusNotFound)
}

// ---- frozen ----

func ErrFrozen() *AppError {
	return New("FROZEN", "active wallet is frozen", http.StatusForbidden)
}

// ---- rule-violation ----

func ErrOverPerTx(limit, amount string) *AppError {
	return New("OVER_PER_TX", fmt.Sprintf("amount %s exceeds per-transaction limit %s", amount, limit), http.StatusBadRequest)
}

func ErrOverDailyCap(limit, wouldBeSpent string) *AppError {
	return New("OVER_DAILY", fmt.Sprintf("amount would bring today's spend to %s, exceeding daily cap %s", wouldBeSpent, limit), http.StatusBadRequest)
}

func ErrBlocked(service, pattern string) *AppError {
	return New("BLOCKED", fmt.Sprintf("service %s matches blocked pattern %s", service, pattern), http.StatusBadRequest)
}

func ErrNotAllowed(service string) *AppError {
	return New("NOT_ALLOWED", fmt.Sprintf("service %s is not in the allowlist", service), http.StatusBadRequest)
}

// ---- negotiation ----

func ErrNoCompatibleOption() *AppError {
	return New("NO_COMPATIBLE_OPTION", "no payment option matches scheme=exact, a recognized network, and the USDC asset", http.StatusUnprocessableEntity)
}

func ErrNetworkMismatch(selected, offered string) *AppError {
	return New("NETWORK_MISMATCH", fmt.Sprintf("selected network %s does not match offered network %s", selected, offered), http.StatusUnprocessableEntity)
}

// ---- adapters ----

func ErrSDKNotInstalled(provider string) *AppError {
	return New("SDK_NOT_INSTALLED", fmt.Sprintf("%s SDK is not available", provider), http.StatusNotImplemented)
}

func ErrMustSignClientSide() *AppError {
	return New("MUST_SIGN_CLIENT_SIDE", "browser adapter cannot sign server-side", http.StatusBadRequest)
}

// ---- two-phase sessions ----

func ErrSessionNotFound() *AppError {
	return New("SESSION_NOT_FOUND", "payment session not found or already completed", http.StatusGone)
}

func ErrSessionExpired() *AppError {
	return New("SESSION_EXPIRED", "payment session expired", http.StatusGone)
}

// ---- programming errors ----

func ErrNot402() *AppError {
	return New("NOT_402", "prepare was called on a non-402 response", http.StatusInternalServerError)
}

// ---- upstream ----

func ErrUpstream(message string, err error) *AppError {
	return Wrap("UPSTREAM", message, http.StatusBadGateway, err)
}

// ---- persistence ----

func ErrPersistence(message string, err error) *AppError {
	return Wrap("PERSISTENCE", message, http.StatusInternalServerError, err)
}

// ---- not found (generic entity) ----

func ErrNotFound(entity string) *AppError {
	return New("NOT_FOUND", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- demo mode ----

func ErrDemoWrite() *AppError {
	return New("WRITE_DISABLED", "write operations are disabled in demo mode", http.StatusForbidden)
}

// ---- internal (should be impossible) ----

func ErrInternal(message string, err error) *AppError {
	return Wrap("INTERNAL", message, http.StatusInternalServerError, err)
}

package server

import (
	"encoding/json"
	"net/http"

	"credit-ledger-go/internal/ledger"

	"go.uber.org/zap"
)

// Envelope is the standard API response wrapper used across handlers.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Error kinds produced by the HTTP layer itself
const (
	kindUnauthorized     = "unauthorized"
	kindForbidden        = "forbidden"
	kindInvalidSignature = "invalid_signature"
)

func respondJSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Code: status, Message: message, Data: data})
}

func respondKind(w http.ResponseWriter, status int, kind, message string) {
	write(w, status, Envelope{Code: status, Message: message, Kind: kind})
}

// respondError maps a service error to its status code and stable kind
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := ledger.Kind(err)
	status := statusForKind(kind)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		zap.L().Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", kind),
			zap.Error(err))
		message = http.StatusText(status)
	}
	respondKind(w, status, kind, message)
}

func statusForKind(kind string) int {
	switch kind {
	case ledger.KindInsufficientCredits:
		return http.StatusPaymentRequired
	case ledger.KindUnknownPackage, ledger.KindInvalidArgument:
		return http.StatusBadRequest
	case ledger.KindConcurrencyExhausted, ledger.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case ledger.KindPaymentAccountMismatch:
		return http.StatusConflict
	case ledger.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func write(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

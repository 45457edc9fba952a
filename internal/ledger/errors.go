package ledger

import (
	"errors"

	"credit-ledger-go/internal/catalog"
	"credit-ledger-go/internal/store"
)

// Sentinel errors returned by the ledger service.
var (
	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrConcurrencyExhausted   = errors.New("too many concurrent modifications")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrPaymentAccountMismatch = errors.New("external payment id already credited to another account")
)

// Stable error kinds exposed to clients.
const (
	KindInsufficientCredits    = "insufficient_credits"
	KindUnknownPackage         = "unknown_package"
	KindConcurrencyExhausted   = "concurrency_exhausted"
	KindStoreUnavailable       = "store_unavailable"
	KindInvalidArgument        = "invalid_argument"
	KindPaymentAccountMismatch = "payment_account_mismatch"
	KindNotFound               = "not_found"
	KindInternal               = "internal"
)

// Kind classifies err into one of the stable kinds. nil has no kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientCredits):
		return KindInsufficientCredits
	case errors.Is(err, catalog.ErrUnknownPackage):
		return KindUnknownPackage
	case errors.Is(err, ErrConcurrencyExhausted):
		return KindConcurrencyExhausted
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrPaymentAccountMismatch):
		return KindPaymentAccountMismatch
	case IsNotFound(err):
		return KindNotFound
	case errors.Is(err, store.ErrStoreUnavailable):
		return KindStoreUnavailable
	}
	return KindInternal
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrAccountNotFound) ||
		errors.Is(err, store.ErrTransactionNotFound) ||
		errors.Is(err, store.ErrSessionNotFound)
}

// IsRetryable returns true if the caller may retry the whole request later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyExhausted) ||
		errors.Is(err, store.ErrStoreUnavailable)
}

package domain

import "errors"

// Sentinel errors forming the error taxonomy from the error-handling design
// (each wrapped with context via fmt.Errorf("...: %w", ...) at the call site).
var (
	ErrValidation        = errors.New("validation error")
	ErrProviderTransient = errors.New("provider transient error")
	ErrProviderConfig    = errors.New("provider configuration error")
	ErrQuoteNotFound     = errors.New("quote not found")
	ErrRateLimitExceeded = errors.New("provider rate limit exceeded")
	ErrCapitalGate       = errors.New("capital gate rejected trade")
	ErrOrderReject       = errors.New("order rejected")
	ErrOrderFillTimeout  = errors.New("order fill timeout")
	ErrStoreError        = errors.New("play store error")
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

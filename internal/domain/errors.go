// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates a request failed input validation.
var ErrValidation = errors.New("validation failed")

// ErrDuplicateEvent indicates a webhook event was already processed.
// It is not a failure: callers acknowledge and skip re-applying effects.
var ErrDuplicateEvent = errors.New("event already processed")

// ErrSignatureInvalid indicates a webhook payload failed signature verification.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// ErrSubdomainExhausted indicates subdomain generation ran out of candidates.
var ErrSubdomainExhausted = errors.New("subdomain candidates exhausted")

// ErrProviderUnavailable indicates a payment provider API call failed transiently.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

package domain

import (
	"errors"
)

var (
	// ErrNotFound signals a missing (or unreadable) task or transcript.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals malformed input: empty query, bad ids, vector dimension mismatch.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized signals that the principal may not access the requested scope.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrProviderUnavailable signals that the LLM capability is not configured.
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	// ErrProviderError signals a failed call to the LLM provider.
	ErrProviderError = errors.New("llm provider error")
	// ErrQuotaExceeded signals an exhausted LLM token budget.
	ErrQuotaExceeded = errors.New("llm quota exceeded")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

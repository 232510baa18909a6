package taskctx

import "github.com/kailas-cloud/taskctx/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound            = domain.ErrNotFound
	ErrInvalidInput        = domain.ErrInvalidInput
	ErrUnauthorized        = domain.ErrUnauthorized
	ErrProviderUnavailable = domain.ErrProviderUnavailable
	ErrProviderError       = domain.ErrProviderError
	ErrQuotaExceeded       = domain.ErrQuotaExceeded
	ErrRateLimited         = domain.ErrRateLimited
)

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrCollectionNotFound signals a missing vector collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrValidation signals malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrVectorStore signals a vector store failure.
	ErrVectorStore = errors.New("vector store error")
	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrAuthentication signals rejected provider credentials.
	ErrAuthentication = errors.New("authentication failed")
	// ErrCacheCapacity signals a single cache entry exceeding the size ceiling.
	ErrCacheCapacity = errors.New("cache entry exceeds size limit")
)

// ValidationError reports a malformed input field with enough context
// for the caller to self-diagnose without consulting logs.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: field %q = %v: %s", ErrValidation.Error(), e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for a single field.
func NewValidationError(field string, value any, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValueOutOfRange creates a validation error for a field outside [min, max].
func NewValueOutOfRange(field string, value, minVal, maxVal any) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: fmt.Sprintf("must be between %v and %v", minVal, maxVal),
	}
}

// ProviderError wraps an embedding provider failure with the HTTP-level
// status code, the provider error code, and the raw payload for diagnostics.
type ProviderError struct {
	StatusCode int
	Code       string
	Body       string
	cause      error
}

// NewProviderError creates a typed provider error.
func NewProviderError(statusCode int, code, body string, cause error) *ProviderError {
	return &ProviderError{StatusCode: statusCode, Code: code, Body: body, cause: cause}
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %d (%s): %s", e.StatusCode, e.Code, e.Body)
	}
	return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps the status code onto the matching sentinel so callers can
// branch with errors.Is without inspecting codes themselves.
func (e *ProviderError) Unwrap() error {
	switch {
	case e.StatusCode == 429:
		return ErrRateLimited
	case e.StatusCode == 401 || e.StatusCode == 403:
		return ErrAuthentication
	default:
		return ErrEmbeddingProvider
	}
}

// Cause returns the original transport error, if any.
func (e *ProviderError) Cause() error { return e.cause }

// Retryable reports whether the caller may retry with backoff.
// Rate limits and server-side failures are retryable; auth errors are not.
// Status 0 means the request never reached the provider (network error).
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500 || e.StatusCode == 0
}

// RateLimited reports whether the provider throttled the request.
func (e *ProviderError) RateLimited() bool { return e.StatusCode == 429 }

// CapacityError reports a cache write rejected for exceeding the
// per-entry size ceiling. This is the only cache error that propagates,
// since an oversized payload indicates caller misuse.
type CapacityError struct {
	Key   string
	Size  int64
	Limit int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: key %s: %d bytes > limit %d", ErrCacheCapacity.Error(), e.Key, e.Size, e.Limit)
}

func (e *CapacityError) Unwrap() error { return ErrCacheCapacity }

// EngineError wraps an unexpected failure from an orchestration step with
// contextual metadata. Already-typed domain errors are never re-wrapped.
type EngineError struct {
	Op         string
	Collection string
	QueryLen   int
	Limit      int
	Err        error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s failed (collection=%s query_len=%d limit=%d): %v",
		e.Op, e.Collection, e.QueryLen, e.Limit, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// WrapEngineError wraps err with operation context unless it is already a
// domain error, which passes through untouched.
func WrapEngineError(op, collection string, queryLen, limit int, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &EngineError{Op: op, Collection: collection, QueryLen: queryLen, Limit: limit, Err: err}
}

// IsDomainError reports whether err already carries domain typing.
func IsDomainError(err error) bool {
	var (
		ve *ValidationError
		pe *ProviderError
		ce *CapacityError
		ee *EngineError
	)
	if errors.As(err, &ve) || errors.As(err, &pe) || errors.As(err, &ce) || errors.As(err, &ee) {
		return true
	}
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCollectionNotFound) ||
		errors.Is(err, ErrVectorStore) ||
		errors.Is(err, ErrValidation)
}

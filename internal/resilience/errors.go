package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// ProviderErrorKind classifies a failed model or search gateway call.
type ProviderErrorKind string

const (
	KindTimeout       ProviderErrorKind = "timeout"
	KindRateLimit     ProviderErrorKind = "rate_limit"
	KindAuth          ProviderErrorKind = "auth"
	KindContentPolicy ProviderErrorKind = "content_policy"
	KindNetwork       ProviderErrorKind = "network"
	KindMalformed     ProviderErrorKind = "malformed"
)

// ProviderError wraps a gateway failure. Provider errors are always
// recoverable: the fallback chain advances to the next candidate.
type ProviderError struct {
	Provider   string
	Kind       ProviderErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return string(e.Kind) + " from " + e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err as a classified provider failure.
func NewProviderError(provider string, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// ClassifyProviderError derives a ProviderError from a raw gateway error,
// using the HTTP status code when one is known (0 if not).
func ClassifyProviderError(provider string, statusCode int, err error) *ProviderError {
	kind := KindNetwork
	switch {
	case statusCode == 401 || statusCode == 403:
		kind = KindAuth
	case statusCode == 429:
		kind = KindRateLimit
	case statusCode == 400 && containsAny(err, "content_policy", "content policy", "safety"):
		kind = KindContentPolicy
	case statusCode >= 500:
		kind = KindNetwork
	case isTimeout(err):
		kind = KindTimeout
	}
	return &ProviderError{Provider: provider, Kind: kind, StatusCode: statusCode, Err: err}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return containsAny(err, "deadline exceeded", "i/o timeout")
}

func containsAny(err error, patterns ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, a rate-limit/timeout/network ProviderError, or matches
// common transient network patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case KindTimeout, KindRateLimit, KindNetwork:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	return containsAny(err,
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	)
}

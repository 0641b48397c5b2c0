package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry (429, 5xx, network
// timeout). Quota marks errors caused by an exhausted API quota, which the
// lookup circuit breaker counts separately.
type TransientError struct {
	Err        error
	StatusCode int
	Quota      bool
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

// NewQuotaError wraps an error as a transient quota exhaustion.
func NewQuotaError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode, Quota: true}
}

// IsQuota reports whether err (or any error in its chain) is a quota error.
func IsQuota(err error) bool {
	var te *TransientError
	return errors.As(err, &te) && te.Quota
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
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
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"unexpected eof",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// Package connerr defines the error taxonomy shared across the connector.
package connerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for pool and retry state.
var (
	// ErrPoolExhausted is returned when no connection becomes available
	// within the configured pool timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrPoolClosed is returned when acquiring from a closed pool.
	ErrPoolClosed = errors.New("connection pool closed")

	// ErrRetryExhausted is returned when an operation keeps failing after
	// its full retry budget.
	ErrRetryExhausted = errors.New("retry budget exhausted")
)

// ConfigurationError reports a missing or unusable configuration value.
// It is raised before any connection attempt.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// ValidationError reports a configuration value that is present but out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

// ConnectionError wraps a connect-phase or pool-level failure.
type ConnectionError struct {
	Attempts int
	Cause    error
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("failed to connect after %d attempts: %v", e.Attempts, e.Cause)
	}
	return fmt.Sprintf("connection error: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// QueryError wraps a statement execution or fetch failure.
type QueryError struct {
	Statement string
	Cause     error
}

func (e *QueryError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("query failed: %v (statement: %s)", e.Cause, e.Statement)
	}
	return fmt.Sprintf("query failed: %v", e.Cause)
}

func (e *QueryError) Unwrap() error { return e.Cause }

// UploadError wraps a failure reported by an object-store collaborator.
type UploadError struct {
	Target string
	Cause  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to %s failed: %v", e.Target, e.Cause)
}

func (e *UploadError) Unwrap() error { return e.Cause }

// CredentialError wraps an SSO or credential refresh failure.
type CredentialError struct {
	Cause error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error: %v", e.Cause)
}

func (e *CredentialError) Unwrap() error { return e.Cause }

// IsConfiguration reports whether err is a configuration or validation error.
func IsConfiguration(err error) bool {
	var cfg *ConfigurationError
	var val *ValidationError
	return errors.As(err, &cfg) || errors.As(err, &val)
}

// IsConnection reports whether err is a connection-phase error.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsQuery reports whether err is a query execution error.
func IsQuery(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// retryablePatterns match connectivity-class failures reported by drivers.
// The underlying drivers expose no common error types, so classification
// falls back to message matching.
var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"connection timed out",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"communication link failure",
	"server closed the connection",
	"driver: bad connection",
	"i/o timeout",
	"too many connections",
	"timeout expired",
	"eof",
}

// fatalPatterns match failures that retrying cannot fix, checked before
// the retryable set so that e.g. "permission denied" wins over a
// coincidental substring.
var fatalPatterns = []string{
	"syntax error",
	"permission denied",
	"access denied",
	"authentication failed",
	"password authentication",
	"does not exist",
	"unknown column",
	"unknown table",
	"duplicate key",
	"constraint",
}

// IsConnectivity reports whether err indicates the underlying connection
// itself is unusable, as opposed to a statement-level failure. Connections
// that fail this way are discarded rather than returned to the pool.
func IsConnectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return Retryable(err)
}

// Retryable reports whether an operation that failed with err is worth
// retrying. Context cancellation and deadline expiry are never retryable:
// the caller has already given up.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

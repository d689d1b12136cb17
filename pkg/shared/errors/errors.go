// Package errors provides a small set of constructors for consistently
// formatted, wrappable errors shared across the QA intelligence core.
package errors

import (
	"fmt"
	"strings"
)

// OperationError describes a failed operation with optional component and
// resource context plus an optional underlying cause.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to %s", e.Operation)
	if e.Component != "" {
		fmt.Fprintf(&b, ", component: %s", e.Component)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, ", resource: %s", e.Resource)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ", cause: %s", e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds a simple "failed to <action>[: cause]" error.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return fmt.Errorf("failed to %s", action)
	}
	return fmt.Errorf("failed to %s: %w", action, cause)
}

// FailedToWithDetails builds an *OperationError carrying component and
// resource context.
func FailedToWithDetails(operation, component, resource string, cause error) error {
	return &OperationError{
		Operation: operation,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf wraps err with additional context, returning nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// DatabaseError builds a database-component operation error.
func DatabaseError(operation string, cause error) error {
	return &OperationError{Operation: operation, Component: "database", Cause: cause}
}

// NetworkError builds a network-component operation error carrying the
// remote endpoint as the resource.
func NetworkError(operation, endpoint string, cause error) error {
	return &OperationError{Operation: operation, Component: "network", Resource: endpoint, Cause: cause}
}

// ValidationError reports a field-scoped validation failure.
func ValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, reason)
}

// ConfigurationError reports an invalid configuration setting.
func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

// TimeoutError reports an operation that exceeded its deadline.
func TimeoutError(operation, duration string) error {
	return fmt.Errorf("timeout while %s after %s", operation, duration)
}

// AuthenticationError reports a failed authentication attempt.
func AuthenticationError(reason string) error {
	return fmt.Errorf("authentication failed: %s", reason)
}

// AuthorizationError reports an authorization failure for an action on a
// resource.
func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

// ParseError reports a failure to parse a document as a given format.
func ParseError(subject, format string, cause error) error {
	return &OperationError{Operation: fmt.Sprintf("parse %s as %s", subject, format), Cause: cause}
}

// retryableSubstrings are fragments that, when present in an error message,
// indicate the failure is transient and worth retrying.
var retryableSubstrings = []string{
	"timeout",
	"connection refused",
	"service unavailable",
}

// IsRetryable reports whether err looks like a transient failure worth
// retrying, based on message content. A nil error is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Chain joins the messages of non-nil errors into a single error. Nil inputs
// are skipped. A single remaining message is returned without the "multiple
// errors" prefix; zero is nil. The result does not wrap the inputs.
func Chain(errs ...error) error {
	var nonNil []string
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e.Error())
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s", nonNil[0])
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(nonNil, "; "))
	}
}

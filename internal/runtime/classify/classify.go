// Package classify maps delivery failures onto a category and a severity.
//
// Transports report failures as plain Go errors. The typed wrappers in this
// package (Timeout, Permission, Throttled, Serialization, Critical) let a
// transport or an operator state what went wrong explicitly; everything else
// is recognised through errors.Is/As, AWS smithy API error codes and, as a
// last resort, the error text for throttling signals.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/drblury/retailstream/internal/runtime/breaker"
)

// Category groups failures by cause.
type Category string

const (
	CategoryNetwork        Category = "NETWORK"
	CategoryAuthentication Category = "AUTHENTICATION"
	CategoryThrottling     Category = "THROTTLING"
	CategorySerialization  Category = "SERIALIZATION"
	CategoryUnknown        Category = "UNKNOWN"
)

// Categories lists every category in reporting order.
func Categories() []Category {
	return []Category{
		CategoryNetwork,
		CategoryAuthentication,
		CategoryThrottling,
		CategorySerialization,
		CategoryUnknown,
	}
}

// Severity decides what the engine does with a failure.
type Severity string

const (
	// SeverityTransient failures are parked in the dead-letter queue.
	SeverityTransient Severity = "TRANSIENT"
	// SeverityPermanent failures are parked as well but will not heal on retry.
	SeverityPermanent Severity = "PERMANENT"
	// SeverityCritical halts streaming.
	SeverityCritical Severity = "CRITICAL"
)

// StreamingError is a classified delivery failure.
type StreamingError struct {
	Severity  Severity
	Category  Category
	Retryable bool
	Message   string
	Err       error
}

func (e *StreamingError) Error() string {
	return string(e.Category) + "/" + string(e.Severity) + ": " + e.Message
}

func (e *StreamingError) Unwrap() error {
	return e.Err
}

// Classifier turns an error into a StreamingError. Classify is the default.
type Classifier func(error) *StreamingError

var (
	ErrTimeout          = errors.New("retailstream: timeout")
	ErrPermissionDenied = errors.New("retailstream: permission denied")
	ErrThrottled        = errors.New("retailstream: throttled")
	ErrSerialization    = errors.New("retailstream: serialization failed")
)

// kindError tags a cause with one of the sentinel kinds above.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func tag(kind, cause error) error {
	return &kindError{kind: kind, cause: cause}
}

// Timeout marks cause as a timeout.
func Timeout(cause error) error { return tag(ErrTimeout, cause) }

// Permission marks cause as an authorization failure. Such errors are
// classified as AUTHENTICATION whatever their message says.
func Permission(cause error) error { return tag(ErrPermissionDenied, cause) }

// Throttled marks cause as rate limiting by the downstream.
func Throttled(cause error) error { return tag(ErrThrottled, cause) }

// Serialization marks cause as an encoding failure.
func Serialization(cause error) error { return tag(ErrSerialization, cause) }

// Critical classifies cause as CRITICAL. Nothing the engine observes on its
// own is critical; this is how an operator or a custom transport asks for a
// halt.
func Critical(cause error) *StreamingError {
	msg := "critical failure"
	if cause != nil {
		msg = cause.Error()
	}
	return &StreamingError{
		Severity:  SeverityCritical,
		Category:  CategoryUnknown,
		Retryable: false,
		Message:   msg,
		Err:       cause,
	}
}

var authCodes = map[string]struct{}{
	"AccessDenied":                {},
	"AccessDeniedException":       {},
	"UnauthorizedOperation":       {},
	"AuthorizationError":          {},
	"InvalidClientTokenId":        {},
	"ExpiredToken":                {},
	"ExpiredTokenException":       {},
	"UnrecognizedClientException": {},
}

var throttleHints = []string{"throttl", "rate limit", "rate exceeded", "too many requests"}

// Classify inspects err. First match wins: pre-classified errors, timeouts
// and breaker rejections, authorization, throttling, serialization, unknown.
func Classify(err error) *StreamingError {
	if err == nil {
		return nil
	}

	var classified *StreamingError
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case isTimeout(err), errors.Is(err, breaker.ErrCircuitOpen):
		return newError(err, CategoryNetwork, SeverityTransient, true)
	case isPermission(err):
		return newError(err, CategoryAuthentication, SeverityPermanent, false)
	case isThrottling(err):
		return newError(err, CategoryThrottling, SeverityTransient, true)
	case isSerialization(err):
		return newError(err, CategorySerialization, SeverityPermanent, false)
	default:
		return newError(err, CategoryUnknown, SeverityTransient, true)
	}
}

func newError(err error, category Category, severity Severity, retryable bool) *StreamingError {
	return &StreamingError{
		Severity:  severity,
		Category:  category,
		Retryable: retryable,
		Message:   err.Error(),
		Err:       err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isPermission(err error) bool {
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, fs.ErrPermission) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		_, ok := authCodes[apiErr.ErrorCode()]
		return ok
	}
	return false
}

func isThrottling(err error) bool {
	if errors.Is(err, ErrThrottled) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if strings.Contains(code, "Throttl") || code == "TooManyRequestsException" || code == "RequestLimitExceeded" {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range throttleHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

func isSerialization(err error) bool {
	if errors.Is(err, ErrSerialization) {
		return true
	}
	var (
		unsupportedType  *json.UnsupportedTypeError
		unsupportedValue *json.UnsupportedValueError
		marshalerErr     *json.MarshalerError
		syntaxErr        *json.SyntaxError
	)
	return errors.As(err, &unsupportedType) ||
		errors.As(err, &unsupportedValue) ||
		errors.As(err, &marshalerErr) ||
		errors.As(err, &syntaxErr)
}

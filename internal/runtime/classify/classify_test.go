package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/retailstream/internal/runtime/breaker"
)

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }

func unsupportedJSON() error {
	_, err := json.Marshal(make(chan int))
	return err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		category  Category
		severity  Severity
		retryable bool
	}{
		{"typed timeout", Timeout(errors.New("no ack")), CategoryNetwork, SeverityTransient, true},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), CategoryNetwork, SeverityTransient, true},
		{"net timeout", netTimeout{}, CategoryNetwork, SeverityTransient, true},
		{"breaker open", fmt.Errorf("%w: kafka", breaker.ErrCircuitOpen), CategoryNetwork, SeverityTransient, true},
		{"permission", Permission(errors.New("denied")), CategoryAuthentication, SeverityPermanent, false},
		{"fs permission", fs.ErrPermission, CategoryAuthentication, SeverityPermanent, false},
		{"aws access denied", &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "nope"}, CategoryAuthentication, SeverityPermanent, false},
		{"typed throttling", Throttled(nil), CategoryThrottling, SeverityTransient, true},
		{"aws throttling", &smithy.GenericAPIError{Code: "ThrottlingException"}, CategoryThrottling, SeverityTransient, true},
		{"rate limit text", errors.New("Rate limit exceeded for topic"), CategoryThrottling, SeverityTransient, true},
		{"typed serialization", Serialization(errors.New("message too large")), CategorySerialization, SeverityPermanent, false},
		{"json unsupported", unsupportedJSON(), CategorySerialization, SeverityPermanent, false},
		{"unknown", errors.New("broker said no"), CategoryUnknown, SeverityTransient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.severity, got.Severity)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestPermissionWinsOverMessage(t *testing.T) {
	err := Permission(errors.New("too many requests from this principal"))

	got := Classify(err)
	assert.Equal(t, CategoryAuthentication, got.Category)
	assert.Equal(t, SeverityPermanent, got.Severity)
	assert.ErrorIs(t, got, ErrPermissionDenied)
}

func TestPreclassifiedErrorReturnedAsIs(t *testing.T) {
	critical := Critical(errors.New("operator halt"))
	wrapped := fmt.Errorf("flush: %w", critical)

	got := Classify(wrapped)
	assert.Same(t, critical, got)
	assert.Equal(t, SeverityCritical, got.Severity)
	assert.False(t, got.Retryable)
}

func TestNothingIsCriticalByItself(t *testing.T) {
	for _, err := range []error{
		errors.New("fatal: disk on fire"),
		Timeout(nil),
		Permission(nil),
		&smithy.GenericAPIError{Code: "InternalFailure"},
	} {
		assert.NotEqual(t, SeverityCritical, Classify(err).Severity, err.Error())
	}
}

func TestStreamingErrorMessage(t *testing.T) {
	got := Classify(Timeout(errors.New("no ack")))
	assert.Equal(t, "NETWORK/TRANSIENT: retailstream: timeout: no ack", got.Error())
}

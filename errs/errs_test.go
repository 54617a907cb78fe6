package errs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableClassification(t *testing.T) {
	retryable := []Kind{KindRateLimited, KindTimeout, KindNetworkError}
	for _, k := range retryable {
		assert.Truef(t, k.Retryable(), "%s should be retryable", k)
	}

	notRetryable := []Kind{
		KindInvalidRequest, KindPermissionDenied, KindSchemaViolation,
		KindProviderError, KindToolExecutionError, KindPlanningError,
		KindInvalidParameters, KindSecurityViolation, KindStoreCorruption,
		KindUnknown,
	}
	for _, k := range notRetryable {
		assert.Falsef(t, k.Retryable(), "%s should not be retryable", k)
	}
}

func TestKindOfUnwrapsWrappedError(t *testing.T) {
	base := New(KindProviderError, "bad response")
	wrapped := Wrap(KindProviderError, base, "outer")
	assert.Equal(t, KindProviderError, KindOf(wrapped))
}

func TestKindOfNonStructuredErrorIsUnknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "plain error" }

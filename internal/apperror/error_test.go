package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DefaultsFromCode(t *testing.T) {
	err := New(CodeRelayExhausted, WithContext("3 relays"))

	assert.Equal(t, "No relay accepted the bundle", err.Message)
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Contains(t, err.Error(), "RELAY_EXHAUSTED")
	assert.Contains(t, err.Error(), "3 relays")
}

func TestAppError_UnwrapAndIs(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("probe: %w", External(CodeChainConnectionFailed, "rpc", cause))

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, New(CodeChainConnectionFailed))
	assert.Equal(t, CodeChainConnectionFailed, GetCode(err))
	assert.Equal(t, CodeUnknownError, GetCode(cause))
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		code Code
		want Category
	}{
		{CodePriceStale, CategoryStaleness},
		{CodeReorgDetected, CategoryConsensus},
		{CodeNonceConflict, CategoryConflict},
		{CodeEmergencyStop, CategoryRiskBreach},
		{CodeProfitBelowMinimum, CategoryRejection},
		{CodeRelayConnectionFailed, CategoryInfrastructure},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryOf(tt.code))
		})
	}
}

func TestEscalates(t *testing.T) {
	assert.True(t, Escalates(New(CodeRiskLimitBreached)))
	assert.False(t, Escalates(New(CodeReorgDetected)))
	assert.False(t, Escalates(errors.New("plain")))
}

func TestWrap_KeepsExistingAppError(t *testing.T) {
	orig := New(CodePriceStale)
	wrapped := Wrap(orig, CodeInternalError, "oracle")

	assert.Same(t, orig, wrapped)
	assert.Equal(t, "oracle", wrapped.Context)
	assert.Nil(t, Wrap(nil, CodeInternalError, ""))
}

func TestStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, New(CodeInvalidQuote).StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, New(CodeChainTimeout).StatusCode)
	assert.Equal(t, http.StatusLocked, New(CodeEmergencyStop).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, New(CodeRateLimitExceeded).StatusCode)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "Maximum concurrent trades (3) reached",
		Reason(New(CodeRiskLimitBreached, WithContext("Maximum concurrent trades (3) reached"))))
	assert.Equal(t, "custom", Reason(New(CodeRelayExhausted, WithMessage("custom"))))
	assert.Equal(t, "plain", Reason(errors.New("plain")))
}

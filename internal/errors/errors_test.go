package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("connect: %w", NetworkMismatch(80001, 1))

	assert.True(t, stderrors.Is(err, ErrNetworkMismatch))
	assert.False(t, stderrors.Is(err, ErrUserRejected))
	assert.Equal(t, CodeNetworkMismatch, CodeOf(err))
}

func TestServiceError_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("execution reverted")
	err := ContractCallFailed("joinGame", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrContractCallFailed)
	assert.Contains(t, err.Error(), "joinGame")
	assert.Contains(t, err.Error(), "execution reverted")
}

func TestServiceError_WithDetailsCopies(t *testing.T) {
	base := InvalidInput("entry_fee", "negative")
	extended := base.WithDetails("value", "-1")

	assert.NotContains(t, base.Details, "value")
	assert.Equal(t, "-1", extended.Details["value"])
	assert.Equal(t, "entry_fee", extended.Details["field"])
}

func TestConstructors_HTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *ServiceError
		status int
	}{
		{"network mismatch", NetworkMismatch(1, 2), http.StatusConflict},
		{"user rejected", UserRejected(nil), http.StatusForbidden},
		{"indexer", IndexerFetchFailed(nil), http.StatusBadGateway},
		{"invalid input", InvalidInput("x", "y"), http.StatusBadRequest},
		{"not connected", NotConnected(), http.StatusPreconditionFailed},
		{"busy", Busy("joinGame"), http.StatusConflict},
		{"rate limited", RateLimited(5, "1s"), http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}

func TestGetServiceError(t *testing.T) {
	require.Nil(t, GetServiceError(stderrors.New("plain")))
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("plain")))

	se := GetServiceError(fmt.Errorf("wrap: %w", Busy("startGame")))
	require.NotNil(t, se)
	assert.Equal(t, CodeBusy, se.Code)
}

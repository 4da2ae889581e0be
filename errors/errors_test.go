package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForEveryKind(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{CacheUnavailable, http.StatusOK},
		{CacheWriteFailure, http.StatusOK},
		{CacheDecodeFailure, http.StatusInternalServerError},
		{ServiceDegraded, http.StatusServiceUnavailable},
		{StoreFailure, http.StatusInternalServerError},
		{NotFound, http.StatusNotFound},
		{InvalidRequest, http.StatusBadRequest},
		{Unknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusFor(tt.kind), "kind %d", tt.kind)
	}
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := fmt.Errorf("reader: %w", New("models.GetAllFoods", StoreFailure, "store query failed", cause))

	assert.True(t, stderrors.Is(err, ErrStoreFailure))
	assert.False(t, stderrors.Is(err, ErrServiceDegraded))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, StoreFailure, KindOf(err))
	assert.Equal(t, Unknown, KindOf(cause))

	var pe *PantryError
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, StoreError, pe.ErrorCode)
	assert.Equal(t, http.StatusInternalServerError, pe.HTTPStatus())
	assert.Equal(t, "store query failed: dial tcp: connection refused", pe.Error())
}

func TestSentinelsMatchTheirKind(t *testing.T) {
	tests := []struct {
		sentinel error
		kind     Kind
	}{
		{ErrCacheUnavailable, CacheUnavailable},
		{ErrCacheWriteFailure, CacheWriteFailure},
		{ErrCacheDecodeFailure, CacheDecodeFailure},
		{ErrServiceDegraded, ServiceDegraded},
		{ErrStoreFailure, StoreFailure},
		{ErrNotFound, NotFound},
		{ErrInvalidRequest, InvalidRequest},
	}

	for _, tt := range tests {
		err := New("test", tt.kind, "wrapped", nil)
		assert.True(t, stderrors.Is(err, tt.sentinel), "kind %d", tt.kind)
		assert.Equal(t, tt.kind, KindOf(tt.sentinel))

		for _, other := range tests {
			if other.kind != tt.kind {
				assert.False(t, stderrors.Is(err, other.sentinel), "kind %d", tt.kind)
			}
		}
	}
}

func TestNewWithCode(t *testing.T) {
	err := NewWithCode("models.GetCalories", InvalidRequest, OutOfRange, "food ID must be positive", nil)

	var pe *PantryError
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, OutOfRange, pe.ErrorCode)
	assert.Equal(t, http.StatusBadRequest, pe.HTTPStatus())
	assert.True(t, stderrors.Is(err, ErrInvalidRequest))

	err = New("controller.GetInt64RouteVar", InvalidRequest, "not a number", nil)
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, UnexpectedType, pe.ErrorCode)
}

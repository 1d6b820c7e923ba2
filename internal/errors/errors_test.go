package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	base := NewNotFoundError("level not found", nil)
	wrapped := fmt.Errorf("browse: %w", base)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))

	apiErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
}

func TestNewRequestErrorCodes(t *testing.T) {
	assert.Equal(t, http.StatusConflict, NewRequestError("dup", http.StatusConflict, nil).Code)
	assert.Equal(t, http.StatusBadGateway, NewRequestError("boom", http.StatusInternalServerError, nil).Code)
	assert.Equal(t, http.StatusBadGateway, NewRequestError("odd", http.StatusOK, nil).Code)
}

func TestWrapKeepsAPIErrors(t *testing.T) {
	identity := NewIdentityResolutionError("no user", nil)
	assert.Same(t, identity, Wrap(fmt.Errorf("export: %w", identity), "ignored"))

	plain := Wrap(fmt.Errorf("disk"), "failed")
	assert.Equal(t, ErrorTypeInternal, plain.Type)
	assert.Equal(t, "failed", plain.Message)
}

func TestErrorStringIncludesInternal(t *testing.T) {
	err := NewTransientNetworkError("backend unreachable", fmt.Errorf("dial tcp"))
	assert.Contains(t, err.Error(), "transient_network")
	assert.Contains(t, err.Error(), "dial tcp")
	assert.True(t, IsTransient(err))
}

package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("openai")

	assert.Equal(t, ErrUpstreamError, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, root)
	assert.Equal(t, "[UPSTREAM_ERROR] upstream failed: root", err.Error())
}

func TestError_HelpersSeeThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := BackendFailure("generation failed", errors.New("boom"))
	wrapped := fmt.Errorf("advance: %w", inner)

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Same(t, inner, e)
	assert.True(t, IsRetryable(wrapped))
	assert.True(t, IsErrorCode(wrapped, ErrBackend))
}

func TestError_Constructors(t *testing.T) {
	t.Parallel()

	nc := NotConfigured("discussion %s is %s", "d1", "completed")
	assert.Equal(t, ErrNotConfigured, nc.Code)
	assert.Equal(t, "discussion d1 is completed", nc.Message)
	assert.False(t, nc.Retryable)

	ir := InvalidRequest("mode %q", "loud")
	assert.Equal(t, ErrInvalidRequest, ir.Code)

	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil))

	inner := NotConfigured("not initialized")
	assert.Same(t, inner, WrapError(fmt.Errorf("advance: %w", inner)))

	plain := errors.New("boom")
	wrapped := WrapError(plain)
	assert.Equal(t, ErrInternalError, wrapped.Code)
	assert.ErrorIs(t, wrapped, plain)
}

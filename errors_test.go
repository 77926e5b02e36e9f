package toolrack

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientError(t *testing.T) {
	err := &ClientError{Reason: "bad enum value", Err: ErrValidation}
	assert.Equal(t, "invalid tool input: bad enum value", err.Error())
	assert.ErrorIs(t, err, ErrValidation)
	assert.True(t, IsClientError(err))
	assert.False(t, IsSystemError(err))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsClientError(wrapped))
	assert.ErrorIs(t, wrapped, ErrValidation)
}

func TestSystemError(t *testing.T) {
	cause := errors.New("worker process exited")
	err := &SystemError{Err: cause}
	assert.Equal(t, "internal system error during tool execution", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsSystemError(err))
	assert.False(t, IsClientError(err))
}

func TestErrMessage(t *testing.T) {
	assert.Equal(t, "bad input", errMessage(&ClientError{Reason: "bad input"}))
	assert.Equal(t, "disk full", errMessage(&SystemError{Err: errors.New("disk full")}))
	assert.Equal(t, "plain", errMessage(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", &ClientError{Reason: "inner reason"})
	assert.Equal(t, "inner reason", errMessage(wrapped))
}

func TestWrapJSONParseError(t *testing.T) {
	err := wrapJSONParseError(errors.New("unexpected end of JSON input"))
	require.True(t, IsClientError(err))
	assert.Contains(t, err.Error(), "json parse error")
}

func TestPanicError(t *testing.T) {
	e := &panicError{p: "boom"}
	assert.Equal(t, "panic: boom", e.Error())
}

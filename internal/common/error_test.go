package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "coded", err: NewError(CodeExpired, "expired", nil), want: CodeExpired},
		{name: "wrapped coded", err: fmt.Errorf("outer: %w", NewError(CodeConflict, "dup", nil)), want: CodeConflict},
		{name: "plain error", err: errors.New("boom"), want: CodeInternal},
		{name: "nil", err: nil, want: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestCode_String(t *testing.T) {
	assert.Equal(t, "invalid_input", CodeInvalidInput.String())
	assert.Equal(t, "not_found", CodeNotFound.String())
	assert.Equal(t, "internal", Code(99).String())
}

func TestIs(t *testing.T) {
	err := NewError(CodeForbidden, "banned", nil)
	assert.True(t, Is(err, CodeForbidden))
	assert.False(t, Is(err, CodeInvalidToken))
	assert.False(t, Is(errors.New("x"), CodeInternal))
}

func TestError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("db down")
	err := NewError(CodeInternal, "failed to load user", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal: failed to load user: db down", err.Error())
	assert.Equal(t, "failed to load user", MessageOf(err))
	assert.Equal(t, "internal error", MessageOf(cause))
}

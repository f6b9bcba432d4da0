package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code", func(t *testing.T) {
		err := New(CodeNotFound, "control not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("wrapped by fmt", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", New(CodeValidation, "identifier is required"))
		assert.True(t, HasCode(err, CodeValidation))
	})

	t.Run("nested domain errors", func(t *testing.T) {
		inner := New(CodeConflict, "duplicate request id")
		outer := Wrap(inner, CodeInternal, "failed to create control")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeConflict))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "store unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store unavailable: connection refused", err.Error())
	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "x")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("x")))
}

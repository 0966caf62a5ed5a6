package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	t.Run("wrapped coded error keeps its code", func(t *testing.T) {
		base := New(CodeNotFound, "draft not found")
		wrapped := fmt.Errorf("load: %w", base)

		assert.True(t, HasCode(wrapped, CodeNotFound))
		assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
		assert.False(t, HasCode(nil, CodeInternal))
	})

	t.Run("wrap preserves cause", func(t *testing.T) {
		cause := errors.New("disk full")
		err := Wrap(cause, CodeStorage, "failed to store file")

		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to store file: disk full", err.Error())
		assert.Nil(t, Wrap(nil, CodeStorage, "unused"))
	})
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeUnauthorized:    http.StatusUnauthorized,
		CodeValidation:      http.StatusUnprocessableEntity,
		CodeUnsupportedFile: http.StatusUnsupportedMediaType,
		CodeFileTooLarge:    http.StatusRequestEntityTooLarge,
		CodeStorage:         http.StatusBadGateway,
		CodeForbidden:       http.StatusForbidden,
		Code("unknown"):     http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatus(code), string(code))
	}
}

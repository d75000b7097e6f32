package derrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeLocked, "form is locked")
		assert.True(t, HasCode(err, CodeLocked))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		inner := New(CodeConflict, "duplicate document type")
		outer := Wrap(inner, CodeInternal, "upload failed")
		assert.True(t, HasCode(outer, CodeConflict))
		assert.True(t, HasCode(outer, CodeInternal))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeNotFound, "record not found"))
		assert.True(t, HasCode(err, CodeNotFound))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(NewValidation("missing fields", "client_name")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestValidationItems(t *testing.T) {
	err := NewValidation("submit precondition unmet", "Financial Statement 2023", "Municipal Registration")
	require.Len(t, ItemsOf(err), 2)
	assert.Contains(t, ItemsOf(err), "Municipal Registration")
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeUnavailable, "save failed")
	assert.ErrorIs(t, err, cause)
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeLocked:       http.StatusForbidden,
		CodeValidation:   http.StatusUnprocessableEntity,
		CodeConflict:     http.StatusConflict,
		CodeNotFound:     http.StatusNotFound,
		CodeUnavailable:  http.StatusServiceUnavailable,
		CodeBadRequest:   http.StatusBadRequest,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeInternal:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}

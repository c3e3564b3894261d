package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	base := New(CodeNotFound, "record not found")
	wrapped := fmt.Errorf("loading: %w", base)

	assert.True(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(wrapped, CodeConflict))
	assert.False(t, HasCode(fmt.Errorf("plain"), CodeInternal))
}

func TestErrorIs(t *testing.T) {
	err := Wrap(fmt.Errorf("dial tcp: refused"), CodeBadGateway, "predictor unavailable")

	require.ErrorIs(t, err, New(CodeBadGateway, "predictor unavailable"))
	require.ErrorIs(t, err, &Error{Code: CodeBadGateway})
	require.NotErrorIs(t, err, New(CodeBadGateway, "other"))
	assert.Equal(t, "predictor unavailable: dial tcp: refused", err.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "bad")))
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("boom")))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:         http.StatusBadRequest,
		CodeValidation:         http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeConflict:           http.StatusConflict,
		CodeBadGateway:         http.StatusBadGateway,
		CodeTimeout:            http.StatusGatewayTimeout,
		CodeInvariantViolation: http.StatusUnprocessableEntity,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInvalidArgument, CodeOf(New(CodeInvalidArgument, "missing field")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("raw collaborator error")))

	// Wrapped errors keep their code.
	wrapped := fmt.Errorf("process turn: %w", New(CodeUnauthenticated, "no caller"))
	assert.Equal(t, CodeUnauthenticated, CodeOf(wrapped))
}

func TestMessageOfSanitizesUnclassified(t *testing.T) {
	assert.Equal(t, "internal error", MessageOf(errors.New("surrealdb: connection refused at 10.0.0.3")))
	assert.Equal(t, "model call failed", MessageOf(Internal("model call failed", errors.New("429 too many requests"))))
}

func TestInternalKeepsCauseForLogs(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Internal("store unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dial tcp")
	// Caller-visible message stays clean.
	assert.Equal(t, "store unavailable", MessageOf(err))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeInvalidArgument))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(CodeUnauthenticated))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeInternal))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Code("unknown")))
}

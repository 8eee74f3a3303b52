package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetServiceErrorThroughWrap(t *testing.T) {
	base := NotFound("trip", "t1")
	wrapped := fmt.Errorf("load: %w", base)

	se := GetServiceError(wrapped)
	if assert.NotNil(t, se) {
		assert.Equal(t, CodeNotFound, se.Code)
		assert.Equal(t, "t1", se.Details["id"])
	}
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))
	assert.True(t, stderrors.Is(wrapped, ErrNotFound))
	assert.False(t, stderrors.Is(wrapped, ErrForbidden))
}

func TestHTTPStatusDefaults(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("boom")))
	assert.Nil(t, GetServiceError(stderrors.New("boom")))
}

func TestWithDetailsDoesNotMutate(t *testing.T) {
	orig := Conflict("taken")
	withDetail := orig.WithDetails("field", "username")
	assert.Nil(t, orig.Details)
	assert.Equal(t, "username", withDetail.Details["field"])
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Internal("store failed", stderrors.New("disk full"))
	assert.Equal(t, "store failed: disk full", err.Error())
	assert.EqualError(t, stderrors.Unwrap(err), "disk full")
	assert.Equal(t, "rate limit exceeded", RateLimitExceeded(5, "1s").Error())
}

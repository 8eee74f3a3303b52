package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelties/service_layer/pkg/logger"
)

func newToolkit(t *testing.T, status int, body string) (*EmailVerifier, *map[string]string) {
	t.Helper()
	got := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts:update", r.URL.Path)
		assert.Equal(t, "web-key", r.URL.Query().Get("key"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewEmailVerifier(srv.URL, "web-key", nil, logger.NewWithWriter("verify", &bytes.Buffer{})), &got
}

func TestApplyCode_Success(t *testing.T) {
	v, got := newToolkit(t, http.StatusOK, `{"email":"ana@example.com","emailVerified":true}`)

	email, err := v.ApplyCode(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", email)
	assert.Equal(t, "code-1", (*got)["oobCode"])
}

func TestApplyCode_MapsErrors(t *testing.T) {
	tests := []struct {
		message string
		want    error
	}{
		{"EXPIRED_OOB_CODE", ErrCodeExpired},
		{"INVALID_OOB_CODE", ErrCodeInvalid},
		{"USER_DISABLED", ErrUserDisabled},
		{"EMAIL_NOT_FOUND", ErrUserNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.message, func(t *testing.T) {
			v, _ := newToolkit(t, http.StatusBadRequest, `{"error":{"code":400,"message":"`+tc.message+`"}}`)
			_, err := v.ApplyCode(context.Background(), "code")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestApplyCode_UnknownReason(t *testing.T) {
	v, _ := newToolkit(t, http.StatusBadRequest, `{"error":{"message":"TOO_MANY_ATTEMPTS_TRY_LATER : slow down"}}`)
	_, err := v.ApplyCode(context.Background(), "code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOO_MANY_ATTEMPTS_TRY_LATER")
	assert.Contains(t, FriendlyMessage(err), "Something went wrong")
}

func TestApplyCode_NotConfigured(t *testing.T) {
	v := NewEmailVerifier("http://127.0.0.1:0", "", nil, nil)
	_, err := v.ApplyCode(context.Background(), "code")
	require.Error(t, err)
	assert.Contains(t, FriendlyMessage(err), "not available")
}

func TestFriendlyMessage(t *testing.T) {
	assert.Contains(t, FriendlyMessage(nil), "verified")
	assert.Contains(t, FriendlyMessage(ErrCodeExpired), "expired")
	assert.Contains(t, FriendlyMessage(ErrCodeInvalid), "invalid")
}

package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Client Tests
// =============================================================================

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://localhost:8080/"})

	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.Equal(t, 2, client.maxRetries)
	assert.Equal(t, 200*time.Millisecond, client.backoff)
}

func TestClient_GetDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Headers: http.Header{"X-Api-Key": []string{"k"}}})
	resp, err := client.Get(context.Background(), "/test")
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, DecodeResponse(resp, &out))
	assert.Equal(t, "ok", out["status"])
}

func TestClient_PostSendsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc", body["oobCode"])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL})
	resp, err := client.Post(context.Background(), "/v1/accounts:update", map[string]string{"oobCode": "abc"})
	require.NoError(t, err)
	require.NoError(t, DecodeResponse(resp, nil))
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Backoff: time.Millisecond})
	resp, err := client.Get(context.Background(), "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"INVALID_OOB_CODE"}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Backoff: time.Millisecond})
	resp, err := client.Get(context.Background(), "/")
	require.NoError(t, err)

	err = DecodeResponse(resp, nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, string(statusErr.Body), "INVALID_OOB_CODE")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_AbsoluteURLBypassesBase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: "http://invalid.invalid"})
	resp, err := client.Get(context.Background(), server.URL+"/x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestReadAllStrict(t *testing.T) {
	data, err := ReadAllStrict(strings.NewReader("hello"), 10)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = ReadAllStrict(strings.NewReader("hello world"), 5)
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	data, truncated, err := ReadAllWithLimit(strings.NewReader("hello world"), 5)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Equal(t, "hello", string(data))
}

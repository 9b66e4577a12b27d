// ABOUTME: Tests for the 401 refresh-retry protocol and error translation
// ABOUTME: Exercises send through real HTTP round trips against httptest

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docent-ai/docent/internal/session"
)

func TestDo_RetriesOnceAfterRefresh(t *testing.T) {
	tokens := &tokenStub{access: "stale", refreshed: "fresh"}

	var requests atomic.Int64
	c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 1, "username": "alice", "email": ""}`))
	})

	var out wireUser
	err := c.do(context.Background(), "GET", "/auth/me", nil, &out)
	require.NoError(t, err)

	assert.Equal(t, "alice", out.Username)
	assert.Equal(t, 1, tokens.calls())
	assert.Equal(t, int64(2), requests.Load())
}

func TestDo_RefreshFailureSurfacesSessionExpired(t *testing.T) {
	tokens := &tokenStub{access: "stale", refreshErr: session.ErrSessionExpired}

	var requests atomic.Int64
	c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := c.do(context.Background(), "GET", "/agents/", nil, nil)
	require.ErrorIs(t, err, session.ErrSessionExpired)

	// The failed refresh short-circuits the retry.
	assert.Equal(t, int64(1), requests.Load())
	assert.Equal(t, 1, tokens.calls())
}

func TestDo_SecondUnauthorizedSurfacesUnchanged(t *testing.T) {
	tokens := &tokenStub{access: "stale", refreshed: "fresh"}

	var requests atomic.Int64
	c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := c.do(context.Background(), "GET", "/agents/", nil, nil)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnauthorized, reqErr.Status)

	// Exactly one refresh and one retry, never more.
	assert.Equal(t, 1, tokens.calls())
	assert.Equal(t, int64(2), requests.Load())
}

func TestDo_BackendDetailBecomesRequestError(t *testing.T) {
	tokens := &tokenStub{access: "good"}

	c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail": "not yours"}`))
	})

	err := c.do(context.Background(), "DELETE", "/agents/xyz/", nil, nil)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusForbidden, reqErr.Status)
	assert.Equal(t, "not yours", reqErr.Message)
	assert.Equal(t, 0, tokens.calls())
}

func TestDoPublic_SendsNoAuthAndNeverRetries(t *testing.T) {
	tokens := &tokenStub{access: "should-not-be-used", refreshed: "nope"}

	var requests atomic.Int64
	c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "bad credentials"}`))
	})

	err := c.doPublic(context.Background(), "POST", "/auth/login", loginRequest{Username: "a", Password: "b"}, nil)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "bad credentials", reqErr.Message)
	assert.Equal(t, 0, tokens.calls())
	assert.Equal(t, int64(1), requests.Load())
}

func TestUpload_ReplaysBodyAfterRefresh(t *testing.T) {
	tokens := &tokenStub{access: "stale", refreshed: "fresh"}

	var requests atomic.Int64
	c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "the payload", string(content))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(wireDocument{ID: 7, Name: "notes.txt"})
	})

	var out wireDocument
	err := c.upload(context.Background(), "/documents/", "notes.txt", strings.NewReader("the payload"), &out)
	require.NoError(t, err)

	assert.Equal(t, 7, out.ID)
	assert.Equal(t, int64(2), requests.Load())
	assert.Equal(t, 1, tokens.calls())
}

func TestDo_ContextCancellation(t *testing.T) {
	tokens := &tokenStub{access: "good"}

	c := newTestClient(t, tokens, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.do(ctx, "GET", "/models", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// ABOUTME: Tests for document list, upload, and delete
// ABOUTME: Upload is exercised end to end through a multipart round trip

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocuments(t *testing.T) {
	c := newTestClient(t, &tokenStub{access: "good"}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]wireDocument{
			{ID: 2, Name: "new.pdf", File: "uploads/new.pdf", CreatedAt: "2026-08-30T10:00:00Z"},
			{ID: 1, Name: "old.pdf", File: "uploads/old.pdf", CreatedAt: "2026-08-01T10:00:00Z"},
		})
	})

	docs, err := c.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, 2, docs[0].ID)
	assert.Equal(t, "uploads/new.pdf", docs[0].StorageRef)
	assert.False(t, docs[0].CreatedAt.IsZero())
}

func TestUploadDocument(t *testing.T) {
	c := newTestClient(t, &tokenStub{access: "good"}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/documents/", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "handbook.pdf", header.Filename)

		_ = json.NewEncoder(w).Encode(wireDocument{ID: 9, Name: "handbook.pdf"})
	})

	doc, err := c.UploadDocument(context.Background(), "handbook.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, 9, doc.ID)
}

func TestUploadDocument_Validation(t *testing.T) {
	var requests atomic.Int64
	c := newTestClient(t, &tokenStub{access: "good"}, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	})

	var verr *ValidationError

	_, err := c.UploadDocument(context.Background(), "", strings.NewReader("x"))
	require.ErrorAs(t, err, &verr)

	_, err = c.UploadDocument(context.Background(), "x.txt", nil)
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, int64(0), requests.Load())
}

func TestDeleteDocument(t *testing.T) {
	c := newTestClient(t, &tokenStub{access: "good"}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		assert.Equal(t, "/documents/7/", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteDocument(context.Background(), 7))
}

func TestDeleteDocument_RejectsNonPositiveID(t *testing.T) {
	var requests atomic.Int64
	c := newTestClient(t, &tokenStub{access: "good"}, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	})

	var verr *ValidationError
	require.ErrorAs(t, c.DeleteDocument(context.Background(), 0), &verr)
	require.ErrorAs(t, c.DeleteDocument(context.Background(), -3), &verr)
	assert.Equal(t, int64(0), requests.Load())
}

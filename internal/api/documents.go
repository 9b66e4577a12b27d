// ABOUTME: Document operations: list, upload, delete
// ABOUTME: Uploads are multipart; the file name becomes the document name server-side

package api

import (
	"context"
	"fmt"
	"io"

	"github.com/docent-ai/docent/internal/kb"
)

// Documents lists the account's uploaded documents, newest first.
func (c *Client) Documents(ctx context.Context) ([]kb.Document, error) {
	var resp []wireDocument
	if err := c.do(ctx, "GET", "/documents/", nil, &resp); err != nil {
		return nil, err
	}

	docs := make([]kb.Document, len(resp))
	for i, d := range resp {
		docs[i] = d.toDomain()
	}
	return docs, nil
}

// UploadDocument uploads file content under the given name and returns the
// materialized document.
func (c *Client) UploadDocument(ctx context.Context, filename string, content io.Reader) (kb.Document, error) {
	if filename == "" {
		return kb.Document{}, &ValidationError{Field: "filename", Message: "must not be empty"}
	}
	if content == nil {
		return kb.Document{}, &ValidationError{Field: "content", Message: "must not be empty"}
	}

	var resp wireDocument
	if err := c.upload(ctx, "/documents/", filename, content, &resp); err != nil {
		return kb.Document{}, err
	}
	return resp.toDomain(), nil
}

// DeleteDocument removes a document. Callers are responsible for pruning the
// id from any agent selection that referenced it (the kb controller does this
// as part of the same mutation).
func (c *Client) DeleteDocument(ctx context.Context, id int) error {
	if id <= 0 {
		return &ValidationError{Field: "id", Message: "must be a positive document id"}
	}
	return c.do(ctx, "DELETE", fmt.Sprintf("/documents/%d/", id), nil, nil)
}

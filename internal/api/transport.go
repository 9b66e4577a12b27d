// ABOUTME: Request execution with bearer stamping and the 401 refresh-retry protocol
// ABOUTME: A request is retried at most once after a shared token refresh

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// do executes an authenticated JSON request against path (relative to the
// base URL) and decodes a 2xx response body into out (pass nil to discard).
// On a 401 the token source performs its single-flight refresh and the
// request is retried exactly once; a second failure surfaces unchanged.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := marshalBody(body)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, "application/json", payload, out, true)
}

// doPublic executes an unauthenticated JSON request. Login, register, and
// refresh use it; these endpoints never enter the retry path.
func (c *Client) doPublic(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := marshalBody(body)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, "application/json", payload, out, false)
}

// upload executes an authenticated multipart file upload. The file content
// is buffered so the request can be replayed after a token refresh.
func (c *Client) upload(ctx context.Context, path, filename string, content io.Reader, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("reading upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("building multipart body: %w", err)
	}

	return c.send(ctx, http.MethodPost, path, mw.FormDataContentType(), buf.Bytes(), out, true)
}

// send drives sendOnce with the retry-once policy.
func (c *Client) send(ctx context.Context, method, path, contentType string, payload []byte, out interface{}, authed bool) error {
	return c.sendWithRetry(ctx, method, path, contentType, payload, out, authed, false)
}

// sendWithRetry is the internal implementation of send with a retry flag to
// prevent more than one retry per request.
func (c *Client) sendWithRetry(ctx context.Context, method, path, contentType string, payload []byte, out interface{}, authed, isRetry bool) error {
	token := ""
	if authed {
		var err error
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return err
		}
	}

	status, body, err := c.sendOnce(ctx, method, path, contentType, payload, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && authed && !isRetry {
		// The refresh is single-flight: concurrent requests hitting this
		// branch at once produce one refresh call between them.
		if _, err := c.tokens.Refresh(ctx, token); err != nil {
			return err
		}
		return c.sendWithRetry(ctx, method, path, contentType, payload, out, authed, true)
	}

	if status < 200 || status >= 300 {
		c.logger.Debug("request failed",
			"method", method,
			"path", path,
			"status", status,
			"retried", isRetry)
		return &RequestError{Status: status, Message: extractMessage(body)}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}

// sendOnce performs a single HTTP round trip and reads the full body.
func (c *Client) sendOnce(ctx context.Context, method, path, contentType string, payload []byte, token string) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}

	return resp.StatusCode, body, nil
}

func marshalBody(body interface{}) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	return payload, nil
}

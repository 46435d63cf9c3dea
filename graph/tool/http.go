package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxBodyBytes bounds how much of a response body HTTPTool reads.
const DefaultMaxBodyBytes = 4 << 20

// ErrBodyTooLarge is returned when a response body exceeds the tool's limit.
// The partial body is discarded rather than handed on as if it were complete.
var ErrBodyTooLarge = errors.New("response body too large")

// HTTPTool performs GET and POST requests.
//
// Input keys:
//   - "url" (string, required)
//   - "method" (string, GET or POST, default GET)
//   - "headers" (map[string]string or map[string]interface{})
//   - "body" (string, POST only)
//
// Output keys: "status_code" (int), "headers" (map[string]interface{}),
// "body" (string). Non-2xx responses are returned, not treated as errors.
type HTTPTool struct {
	client       *http.Client
	maxBodyBytes int64
}

// NewHTTPTool returns an HTTPTool using client, or a client with a 30s
// timeout when nil.
func NewHTTPTool(client *http.Client) *HTTPTool {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTool{client: client, maxBodyBytes: DefaultMaxBodyBytes}
}

// Name returns the tool identifier.
func (h *HTTPTool) Name() string {
	return "http_request"
}

// Call executes an HTTP request with the provided parameters.
//
// Input parameters:
//   - url (string, required)
//   - method (string, optional): GET or POST, default GET
//   - headers (map[string]string or map[string]interface{}, optional)
//   - body (string, optional): request body
//
// The result holds status_code, headers and body. A body larger than the
// tool's limit is an ErrBodyTooLarge error; a partial body is never returned.
func (h *HTTPTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	urlStr, ok := input["url"].(string)
	if !ok || urlStr == "" {
		return nil, fmt.Errorf("url parameter required (string)")
	}

	method := http.MethodGet
	if m, ok := input["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("unsupported HTTP method: %s (supported: GET, POST)", method)
	}

	var body io.Reader
	if s, ok := input["body"].(string); ok && s != "" {
		body = bytes.NewBufferString(s)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	switch headers := input["headers"].(type) {
	case map[string]string:
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	case map[string]interface{}:
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(respBody)) > h.maxBodyBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrBodyTooLarge, urlStr, h.maxBodyBytes)
	}

	respHeaders := make(map[string]interface{}, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) == 1 {
			respHeaders[key] = values[0]
		} else {
			respHeaders[key] = values
		}
	}

	return map[string]interface{}{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	}, nil
}

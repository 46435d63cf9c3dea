package tool

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPTool_Name(t *testing.T) {
	if got := NewHTTPTool(nil).Name(); got != "http_request" {
		t.Errorf("Name() = %q, want %q", got, "http_request")
	}
}

func TestHTTPTool_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET request, got %s", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github.raw" {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("X-Test", "yes")
		_, _ = w.Write([]byte("# readme"))
	}))
	defer server.Close()

	result, err := NewHTTPTool(nil).Call(context.Background(), map[string]interface{}{
		"url":     server.URL,
		"headers": map[string]string{"Accept": "application/vnd.github.raw"},
	})
	if err != nil {
		t.Fatalf("Call() error = %v, want nil", err)
	}
	if got := result["status_code"].(int); got != 200 {
		t.Errorf("status_code = %d, want 200", got)
	}
	if got := result["body"].(string); got != "# readme" {
		t.Errorf("body = %q, want %q", got, "# readme")
	}
	headers := result["headers"].(map[string]interface{})
	if headers["X-Test"] != "yes" {
		t.Errorf("expected X-Test header, got %v", headers["X-Test"])
	}
}

func TestHTTPTool_POST(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST request, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"name":"test"}` {
			t.Errorf("request body = %q", body)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	result, err := NewHTTPTool(nil).Call(context.Background(), map[string]interface{}{
		"method":  "post",
		"url":     server.URL,
		"body":    `{"name":"test"}`,
		"headers": map[string]interface{}{"Content-Type": "application/json"},
	})
	if err != nil {
		t.Fatalf("Call() error = %v, want nil", err)
	}
	if got := result["status_code"].(int); got != 201 {
		t.Errorf("status_code = %d, want 201", got)
	}
}

func TestHTTPTool_ServerErrorIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	result, err := NewHTTPTool(nil).Call(context.Background(), map[string]interface{}{"url": server.URL})
	if err != nil {
		t.Fatalf("Call() error = %v, want nil", err)
	}
	if got := result["status_code"].(int); got != 500 {
		t.Errorf("status_code = %d, want 500", got)
	}
}

func TestHTTPTool_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	h := NewHTTPTool(nil)
	h.maxBodyBytes = 100
	result, err := h.Call(context.Background(), map[string]interface{}{"url": server.URL})
	if err != nil {
		t.Fatalf("Call() at the limit error = %v", err)
	}
	if got := len(result["body"].(string)); got != 100 {
		t.Errorf("expected the full 100 byte body, got %d", got)
	}

	h.maxBodyBytes = 10
	result, err = h.Call(context.Background(), map[string]interface{}{"url": server.URL})
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if result != nil {
		t.Errorf("expected no partial result, got %v", result)
	}
}

func TestHTTPTool_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := NewHTTPTool(nil).Call(ctx, map[string]interface{}{"url": server.URL}); err == nil {
		t.Error("Call() error = nil, want timeout error")
	}
}

func TestHTTPTool_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]interface{}
	}{
		{"missing url", map[string]interface{}{"method": "GET"}},
		{"non-string url", map[string]interface{}{"url": 42}},
		{"invalid url", map[string]interface{}{"url": "://invalid-url"}},
		{"unsupported method", map[string]interface{}{"url": "http://example.com", "method": "DELETE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewHTTPTool(nil).Call(context.Background(), tt.input); err == nil {
				t.Error("Call() error = nil, want error")
			}
		})
	}
}

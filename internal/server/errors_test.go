package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"example.com/staticserve/internal/logger"
)

func TestPrefersJSON(t *testing.T) {
	cases := []struct {
		name   string
		accept string
		want   bool
	}{
		{name: "empty header", accept: "", want: false},
		{name: "json only", accept: "application/json", want: true},
		{name: "html only", accept: "text/html", want: false},
		{name: "json with params", accept: "application/json; charset=utf-8", want: true},
		{name: "json higher q", accept: "text/html;q=0.5, application/json", want: true},
		{name: "html higher q", accept: "application/json;q=0.5, text/html", want: false},
		{name: "wildcard only", accept: "*/*", want: false},
		{name: "json beats wildcard at equal q", accept: "*/*, application/json", want: true},
		{name: "json beats application wildcard", accept: "application/*, application/json", want: true},
		{name: "json rejected", accept: "application/json;q=0, text/html", want: false},
		{name: "equal q header order", accept: "text/html, application/json", want: false},
		{name: "case insensitive", accept: "Application/JSON", want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PrefersJSON(tc.accept); got != tc.want {
				t.Errorf("PrefersJSON(%q) = %v, want %v", tc.accept, got, tc.want)
			}
		})
	}
}

func TestWriteError_HTMLDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	rec := httptest.NewRecorder()
	WriteError(rec, req, http.StatusNotFound, "File not found.", logger.NewDiscardLogger())

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Expected HTML content type, got %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache, no-store, must-revalidate" {
		t.Errorf("Error responses must be uncacheable, got %q", cc)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "404 Not Found") {
		t.Errorf("Expected default 404 page, got: %s", body)
	}
	if cl := rec.Header().Get("Content-Length"); cl != strconv.Itoa(len(body)) {
		t.Errorf("Content-Length %s does not match body length %d", cl, len(body))
	}
}

func TestWriteError_JSONWhenPreferred(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	WriteError(rec, req, http.StatusNotFound, "File not found.", logger.NewDiscardLogger())

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("Expected JSON content type, got %q", ct)
	}
	var parsed ErrorResponseJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("Response body is not valid JSON: %v", err)
	}
	if parsed.Error.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status_code 404, got %d", parsed.Error.StatusCode)
	}
	if parsed.Error.Detail != "File not found." {
		t.Errorf("Expected detail to round-trip, got %q", parsed.Error.Detail)
	}
}

func TestWriteError_HeadHasNoBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodHead, "/missing", nil)
	rec := httptest.NewRecorder()
	WriteError(rec, req, http.StatusNotFound, "File not found.", logger.NewDiscardLogger())

	if rec.Body.Len() != 0 {
		t.Errorf("HEAD error response must have no body, got %d bytes", rec.Body.Len())
	}
	if cl := rec.Header().Get("Content-Length"); cl == "" || cl == "0" {
		t.Errorf("HEAD error response should still declare the body length, got %q", cl)
	}
}

func TestWriteError_UnknownStatusUsesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	WriteError(rec, req, http.StatusTeapot, "short and stout", logger.NewDiscardLogger())

	if rec.Code != http.StatusTeapot {
		t.Fatalf("Expected status 418, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "short and stout") {
		t.Errorf("Expected detail in generic page, got: %s", rec.Body.String())
	}
}

func TestWriteError_JSONMarshalFailureFallsBackToHTML(t *testing.T) {
	restore := TestingOnlySetJSONMarshal(func(v interface{}) ([]byte, error) {
		return nil, fmt.Errorf("marshal exploded")
	})
	defer TestingOnlySetJSONMarshal(restore)

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	WriteError(rec, req, http.StatusNotFound, "File not found.", logger.NewDiscardLogger())

	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Expected HTML fallback content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "404 Not Found") {
		t.Errorf("Expected HTML fallback page, got: %s", rec.Body.String())
	}
}

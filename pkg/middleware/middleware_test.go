package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// ============================================================================
// Request ID Tests
// ============================================================================

func TestRequestID_Generated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("no request ID in handler context")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header %q, context value %q; want them equal", got, seen)
	}
}

func TestRequestID_ClientProvided(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "client-supplied-id" {
		t.Errorf("request ID = %q, client-supplied IDs must be honored", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "client-supplied-id" {
		t.Errorf("response header = %q, want client-supplied-id", got)
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() = %q on empty context, want empty", got)
	}
}

// ============================================================================
// Recovery Tests
// ============================================================================

func TestRecovery_AnswersPanic(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["error"] != "internal_error" {
		t.Errorf("error = %q, want internal_error", body["error"])
	}
}

func TestRecovery_PassThrough(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, healthy handlers must pass through untouched", rec.Code)
	}
}

// ============================================================================
// Logging Tests
// ============================================================================

func TestLogging_SetsStartTime(t *testing.T) {
	var start time.Time
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start = GetStartTime(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if start.IsZero() {
		t.Error("start time not set in request context")
	}
}

func TestGetStartTime_Missing(t *testing.T) {
	if got := GetStartTime(context.Background()); !got.IsZero() {
		t.Errorf("GetStartTime() = %v on empty context, want zero", got)
	}
}

// ============================================================================
// Response Writer Tests
// ============================================================================

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusNotFound)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want 404", rw.statusCode)
	}

	// Later writes must not clobber the recorded status.
	rw.WriteHeader(http.StatusOK)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, first WriteHeader wins", rw.statusCode)
	}
}

func TestResponseWriter_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	if _, err := rw.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, bare Write implies 200", rw.statusCode)
	}
	if rec.Body.String() != "hello" {
		t.Errorf("body = %q, want hello", rec.Body.String())
	}
}

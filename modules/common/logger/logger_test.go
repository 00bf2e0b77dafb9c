package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareKeepsStatusAndHijacker(t *testing.T) {
	var hijackable bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hijackable = w.(http.Hijacker)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if !hijackable {
		t.Fatalf("wrapped writer must implement http.Hijacker")
	}
}

func TestSetupFallsBackToInfo(t *testing.T) {
	Setup("not-a-level", "json")
	Setup("", "console")
}

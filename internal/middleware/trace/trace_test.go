package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var seen string
	h := NewMiddleware(nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("unexpected request id %q", seen)
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header %q does not match context id %q", rr.Header().Get(HeaderRequestID), seen)
	}
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status not passed through: %d", rr.Code)
	}
}

func TestMiddlewareKeepsValidIncomingID(t *testing.T) {
	h := NewMiddleware(nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	cases := map[string]bool{
		"abc-123":                   true,
		"has space":                 false,
		strings.Repeat("x", 65):     false,
		"<script>alert(1)</script>": false,
	}
	for id, kept := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderRequestID, id)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		if got := rr.Header().Get(HeaderRequestID) == id; got != kept {
			t.Fatalf("%q: kept=%v, want %v", id, got, kept)
		}
	}
}

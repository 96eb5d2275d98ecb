package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONHandlerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentLedger, Handler: NewHandler(&buf, slog.LevelInfo, "json")})

	fields := NewFields().
		WithLedger("u1", "2024-03").
		WithTransaction("INCOME", "Salary", "1000").
		WithOperation(OpSubmit).
		ToSlice()
	l.InfoContext(context.Background(), "Transaction submitted", fields...)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%s)", err, buf.String())
	}
	if rec[FieldComponent] != ComponentLedger {
		t.Fatalf("component = %v", rec[FieldComponent])
	}
	if rec[FieldUserID] != "u1" || rec[FieldMonthYear] != "2024-03" {
		t.Fatalf("ledger fields missing: %v", rec)
	}
}

func TestTextHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: "test", Handler: NewHandler(&buf, slog.LevelWarn, "text")})
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestRequestIDMiddlewareEnrichesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentHTTP, Handler: NewHandler(&buf, slog.LevelInfo, "json")})

	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("handled")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%s)", err, buf.String())
	}
	if rec[FieldRequestID] != "req-1" || rec[FieldComponent] != ComponentHTTP {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestFromContextDefaultsToSlog(t *testing.T) {
	l := FromContext(context.Background())
	if l.Logger != slog.Default() || l.Component() != "unknown" {
		t.Fatalf("unexpected default logger: %+v", l)
	}
}

func TestWithErrorSkipsNil(t *testing.T) {
	f := NewFields().WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Fatalf("nil error should not add a field")
	}
	f = NewFields().WithError(errors.New("boom"))
	if f[FieldError] != "boom" {
		t.Fatalf("error field = %v", f[FieldError])
	}
}

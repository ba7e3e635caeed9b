package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/scriptingcat/scriptingcat/pkg/catalog"
	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
	"github.com/scriptingcat/scriptingcat/storage/memory"
)

func newTestService(t *testing.T) *entitlement.Service {
	t.Helper()
	evaluator := entitlement.NewEvaluator(catalog.Default(), time.Now)
	service, err := entitlement.NewService(memory.New(), evaluator, entitlement.ServiceConfig{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestMiddlewareAllowsEntitledSession(t *testing.T) {
	service := newTestService(t)
	next, called := okHandler()

	mw := Middleware(Config{
		Service:      service,
		GetSessionID: FromHeader("X-Session-ID"),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Session-ID", "sess-1")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !*called {
		t.Errorf("status = %d, called = %v", rec.Code, *called)
	}
}

func TestMiddlewareRejectsMissingSession(t *testing.T) {
	service := newTestService(t)
	next, called := okHandler()

	mw := Middleware(Config{
		Service:      service,
		GetSessionID: FromHeader("X-Session-ID"),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if *called {
		t.Error("next handler should not run without a session")
	}
}

func TestMiddlewareDeniesExhaustedSession(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := service.Commit(ctx, "sess-1"); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	next, called := okHandler()
	mw := Middleware(Config{
		Service:      service,
		GetSessionID: FromHeader("X-Session-ID"),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Session-ID", "sess-1")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402", rec.Code)
	}
	if *called {
		t.Error("next handler should not run when quota is exhausted")
	}
}

func TestMiddlewareDoesNotConsume(t *testing.T) {
	service := newTestService(t)
	next, _ := okHandler()
	mw := Middleware(Config{
		Service:      service,
		GetSessionID: FromHeader("X-Session-ID"),
	})

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Session-ID", "sess-1")
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}

	quota, err := service.Quota(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}
	if quota.Used != 0 {
		t.Errorf("Used = %d, want 0: checks must not consume", quota.Used)
	}
}

func TestMiddlewareCustomDeniedHandler(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := service.Commit(ctx, "sess-1"); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	deniedTier := ""
	next, _ := okHandler()
	mw := Middleware(Config{
		Service:      service,
		GetSessionID: FromHeader("X-Session-ID"),
		OnDenied: func(w http.ResponseWriter, _ *http.Request, record *entitlement.Record, _ error) {
			deniedTier = record.Tier
			w.WriteHeader(http.StatusTeapot)
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Session-ID", "sess-1")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want custom handler status", rec.Code)
	}
	if deniedTier != "free" {
		t.Errorf("deniedTier = %q, want free", deniedTier)
	}
}

func TestFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?session=abc", nil)
	if got := FromQuery("session")(req); got != "abc" {
		t.Errorf("FromQuery = %q, want abc", got)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	next, _ := okHandler()
	mw := RequestLogger(logger)

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	out := buf.String()
	for _, want := range []string{`"method":"GET"`, `"path":"/usage"`, `"status":200`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

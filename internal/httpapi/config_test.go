package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSetMaxBodyBytes(t *testing.T) {
	SetMaxBodyBytes(64)
	t.Cleanup(func() { SetMaxBodyBytes(0) })
	e := newTestEnv(t, Options{})
	body := `{"messages":[{"role":"user","content":"` + strings.Repeat("x", 200) + `"}]}`
	if w := e.do(http.MethodPost, "/v1/chat/completions", body); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", w.Code)
	}
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 4<<20 {
		t.Fatalf("reset to default failed: %d", maxBodyBytes)
	}
}

func TestCORSPreflight(t *testing.T) {
	SetCORSOptions(true, []string{"http://example.test"}, nil, nil)
	t.Cleanup(func() { SetCORSOptions(false, nil, nil, nil) })
	e := newTestEnv(t, Options{})
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.test" {
		t.Fatalf("allow-origin=%q status=%d", got, w.Code)
	}
}

func TestWorkContextFollowsBaseContext(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	SetBaseContext(base)
	t.Cleanup(func() { SetBaseContext(nil) })
	ctx, release := workContext(httptest.NewRequest(http.MethodGet, "/", nil))
	defer release()
	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("work context not canceled on shutdown")
	}
	if !shuttingDown() {
		t.Fatalf("expected shuttingDown")
	}
}

func TestWorkContextTimeout(t *testing.T) {
	SetCompletionTimeoutSeconds(1)
	t.Cleanup(func() { SetCompletionTimeoutSeconds(0) })
	ctx, release := workContext(httptest.NewRequest(http.MethodGet, "/", nil))
	defer release()
	dl, ok := ctx.Deadline()
	if !ok || time.Until(dl) > time.Second {
		t.Fatalf("deadline=%v ok=%v", dl, ok)
	}
	SetCompletionTimeoutSeconds(-5)
	if completionTimeout != 0 {
		t.Fatalf("negative timeout not clamped")
	}
	ctx2, release2 := workContext(httptest.NewRequest(http.MethodGet, "/", nil))
	release2()
	if !errors.Is(ctx2.Err(), context.Canceled) {
		t.Fatalf("release did not cancel: %v", ctx2.Err())
	}
}

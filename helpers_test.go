package goIdem

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TTL = time.Hour
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	engine, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr
}

// countingHandler returns a fixed JSON response and counts invocations.
type countingHandler struct {
	calls  atomic.Int64
	status int
	body   string
	delay  time.Duration
}

func (h *countingHandler) handle(ctx context.Context) (*Response, error) {
	h.calls.Add(1)
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Set-Cookie", "session=secret")
	header.Set("X-Trace-Id", "trace-1")
	status := h.status
	if status == 0 {
		status = http.StatusCreated
	}
	return &Response{StatusCode: status, Header: header, Body: []byte(h.body)}, nil
}

func paymentRequest(key, body string) Request {
	return Request{
		CallerID:       "key_123",
		Method:         http.MethodPost,
		Path:           "/payments",
		IdempotencyKey: key,
		Body:           []byte(body),
	}
}

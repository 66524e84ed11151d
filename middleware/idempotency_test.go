package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	goIdem "github.com/MrEthical07/goIdem"
	"github.com/MrEthical07/goIdem/identity"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestEngine(t *testing.T, cfg goIdem.Config) (*goIdem.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	engine, err := goIdem.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return engine, mr
}

// paymentsHandler echoes the request body and counts executions.
func paymentsHandler(calls *atomic.Int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", fmt.Sprintf("/payments/pay_%d", n))
		w.Header().Set("Set-Cookie", "sid=abc")
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"id":"pay_%d","request":%s}`, n, body)
	})
}

func send(t *testing.T, h http.Handler, method, path, key, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v (%q)", err, rr.Body.String())
	}
	return body
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	engine, _ := newTestEngine(t, goIdem.DefaultConfig())
	var calls atomic.Int64
	h := Idempotency(engine)(paymentsHandler(&calls))

	first := send(t, h, http.MethodPost, "/payments", "abc-1", `{"amount":10}`, "X-API-Key", "key_123")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	if first.Header().Get("X-Idempotent-Replay") != "false" {
		t.Fatalf("expected fresh marker, got %q", first.Header().Get("X-Idempotent-Replay"))
	}
	if first.Header().Get("Set-Cookie") != "" {
		t.Fatal("fresh response must carry only replayable headers")
	}

	second := send(t, h, http.MethodPost, "/payments", "abc-1", `{"amount":10}`, "X-API-Key", "key_123")
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatal("expected replay marker")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body %q differs from %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Location") != first.Header().Get("Location") {
		t.Fatal("expected Location to be replayed")
	}
	if second.Header().Get("Set-Cookie") != "" {
		t.Fatal("Set-Cookie must not be replayed")
	}
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times", calls.Load())
	}
}

func TestIdempotencyFreshAndReplayHeadersMatch(t *testing.T) {
	engine, _ := newTestEngine(t, goIdem.DefaultConfig())
	var calls atomic.Int64
	h := Idempotency(engine)(paymentsHandler(&calls))

	first := send(t, h, http.MethodPost, "/payments", "abc-1", `{"amount":10}`, "X-API-Key", "key_123")
	second := send(t, h, http.MethodPost, "/payments", "abc-1", `{"amount":10}`, "X-API-Key", "key_123")

	withoutMarker := func(hdr http.Header) http.Header {
		out := hdr.Clone()
		out.Del("X-Idempotent-Replay")
		return out
	}
	fresh, replay := withoutMarker(first.Header()), withoutMarker(second.Header())
	if !reflect.DeepEqual(fresh, replay) {
		t.Fatalf("headers differ beyond the marker:\nfresh:  %v\nreplay: %v", fresh, replay)
	}
	if first.Code != second.Code || first.Body.String() != second.Body.String() {
		t.Fatalf("status/body differ: %d %q vs %d %q", first.Code, first.Body.String(), second.Code, second.Body.String())
	}
}

func TestIdempotencyPayloadMismatch(t *testing.T) {
	engine, _ := newTestEngine(t, goIdem.DefaultConfig())
	var calls atomic.Int64
	h := Idempotency(engine)(paymentsHandler(&calls))

	send(t, h, http.MethodPost, "/payments", "abc-1", `{"amount":10}`)
	rr := send(t, h, http.MethodPost, "/payments", "abc-1", `{"amount":20}`)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	body := decodeError(t, rr)
	if body.Code != CodeKeyReused || body.Hint == "" {
		t.Fatalf("unexpected error body: %+v", body)
	}
	if rr.Header().Get("X-Idempotent-Replay") != "false" {
		t.Fatal("rejections carry the replay marker")
	}
	if calls.Load() != 1 {
		t.Fatalf("handler ran %d times", calls.Load())
	}
}

func TestIdempotencyInFlightConflict(t *testing.T) {
	engine, _ := newTestEngine(t, goIdem.DefaultConfig())

	started := make(chan struct{})
	release := make(chan struct{})
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
	})
	h := Idempotency(engine)(slow)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "dup-1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		done <- rr
	}()

	<-started
	rr := send(t, h, http.MethodPost, "/accounts", "dup-1", `{}`)
	close(release)
	first := <-done

	if first.Code != http.StatusCreated {
		t.Fatalf("expected first request to complete, got %d", first.Code)
	}
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if decodeError(t, rr).Code != CodeInProgress {
		t.Fatalf("unexpected code: %s", rr.Body.String())
	}
	if rr.Header().Get("Retry-After") != "5" {
		t.Fatalf("expected Retry-After 5, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestIdempotencyMissingKey(t *testing.T) {
	engine, _ := newTestEngine(t, goIdem.DefaultConfig())
	var calls atomic.Int64
	h := Idempotency(engine)(paymentsHandler(&calls))

	rr := send(t, h, http.MethodPost, "/payments", "", `{}`)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != CodeKeyMissing {
		t.Fatalf("expected 400 %s, got %d %s", CodeKeyMissing, rr.Code, rr.Body.String())
	}
	if calls.Load() != 0 {
		t.Fatal("handler must not run")
	}
}

func TestIdempotencyKeyTooLong(t *testing.T) {
	engine, _ := newTestEngine(t, goIdem.DefaultConfig())
	var calls atomic.Int64
	h := Idempotency(engine)(paymentsHandler(&calls))

	rr := send(t, h, http.MethodPost, "/payments", strings.Repeat("x", 256), `{}`)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != CodeKeyInvalid {
		t.Fatalf("expected 400 %s, got %d %s", CodeKeyInvalid, rr.Code, rr.Body.String())
	}
}

func TestIdempotencyBodyTooLarge(t *testing.T) {
	cfg := goIdem.DefaultConfig()
	cfg.MaxBodyBytes = 8
	engine, _ := newTestEngine(t, cfg)
	var calls atomic.Int64
	h := Idempotency(engine)(paymentsHandler(&calls))

	rr := send(t, h, http.MethodPost, "/payments", "big-1", `{"amount":1000000}`)
	if rr.Code != http.StatusRequestEntityTooLarge || decodeError(t, rr).Code != CodeTooLarge {
		t.Fatalf("expected 413, got %d %s", rr.Code, rr.Body.String())
	}
	if calls.Load() != 0 {
		t.Fatal("handler must not run")
	}
}

func TestIdempotencyMissingKeyBeatsOversizedBody(t *testing.T) {
	cfg := goIdem.DefaultConfig()
	cfg.MaxBodyBytes = 8
	cfg.Metrics.Enabled = true
	engine, _ := newTestEngine(t, cfg)
	var calls atomic.Int64
	h := Idempotency(engine)(paymentsHandler(&calls))

	rr := send(t, h, http.MethodPost, "/payments", "", `{"amount":1000000}`)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != CodeKeyMissing {
		t.Fatalf("expected 400 %s, got %d %s", CodeKeyMissing, rr.Code, rr.Body.String())
	}
	if calls.Load() != 0 {
		t.Fatal("handler must not run")
	}
	if engine.MetricsSnapshot().Counters[goIdem.MetricMissingKey] != 1 {
		t.Fatal("expected missing key to be counted by the engine")
	}
}

func TestIdempotencyStoreUnavailable(t *testing.T) {
	engine, mr := newTestEngine(t, goIdem.DefaultConfig())
	var calls atomic.Int64
	h := Idempotency(engine)(paymentsHandler(&calls))

	mr.Close()
	rr := send(t, h, http.MethodPost, "/payments", "down-1", `{}`)
	if rr.Code != http.StatusServiceUnavailable || decodeError(t, rr).Code != CodeStoreUnavailable {
		t.Fatalf("expected 503, got %d %s", rr.Code, rr.Body.String())
	}
	if calls.Load() != 0 {
		t.Fatal("handler must not run unprotected")
	}
}

func TestIdempotencyPassesThroughSafeMethods(t *testing.T) {
	engine, _ := newTestEngine(t, goIdem.DefaultConfig())
	h := Idempotency(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := send(t, h, http.MethodGet, "/payments/pay_1", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Idempotent-Replay") != "" {
		t.Fatal("unprotected methods are not touched")
	}
}

func TestIdempotencyHandlerSeesOriginalBody(t *testing.T) {
	engine, _ := newTestEngine(t, goIdem.DefaultConfig())
	var seen string
	h := Idempotency(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))

	raw := "{ \"b\": 2,\n \"a\": 1 }"
	rr := send(t, h, http.MethodPost, "/transactions", "body-1", raw)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if seen != raw {
		t.Fatalf("handler saw %q, want byte-identical %q", seen, raw)
	}
}

func TestIdempotencyScopesByCaller(t *testing.T) {
	engine, _ := newTestEngine(t, goIdem.DefaultConfig())
	var calls atomic.Int64
	h := Idempotency(engine)(paymentsHandler(&calls))

	send(t, h, http.MethodPost, "/payments", "shared", `{}`, "X-API-Key", "key_a")
	rr := send(t, h, http.MethodPost, "/payments", "shared", `{}`, "X-API-Key", "key_b")
	if rr.Header().Get("X-Idempotent-Replay") != "false" || calls.Load() != 2 {
		t.Fatalf("distinct callers must execute independently, calls=%d", calls.Load())
	}
}

func TestIdempotencyRejectsInvalidBearer(t *testing.T) {
	engine, _ := newTestEngine(t, goIdem.DefaultConfig())
	bearer, err := identity.NewBearerJWT(identity.JWTConfig{
		SigningMethod: identity.MethodHS256,
		Secret:        []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("NewBearerJWT failed: %v", err)
	}
	var calls atomic.Int64
	h := Idempotency(engine, WithResolver(identity.Chain(bearer, identity.Default())))(paymentsHandler(&calls))

	rr := send(t, h, http.MethodPost, "/payments", "jwt-1", `{}`, "Authorization", "Bearer forged")
	if rr.Code != http.StatusUnauthorized || decodeError(t, rr).Code != CodeInvalidCaller {
		t.Fatalf("expected 401, got %d %s", rr.Code, rr.Body.String())
	}

	token, err := bearer.Issue("user_7", time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	rr = send(t, h, http.MethodPost, "/payments", "jwt-1", `{}`, "Authorization", "Bearer "+token)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 for valid token, got %d", rr.Code)
	}
}

func TestIdempotencyCustomPathFunc(t *testing.T) {
	engine, _ := newTestEngine(t, goIdem.DefaultConfig())
	var calls atomic.Int64
	h := Idempotency(engine, WithPathFunc(func(*http.Request) string { return "/payments" }))(paymentsHandler(&calls))

	send(t, h, http.MethodPost, "/payments?src=web", "p-1", `{}`)
	rr := send(t, h, http.MethodPost, "/v2/payments", "p-1", `{}`)
	if rr.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatal("expected custom path to share the scope")
	}
}

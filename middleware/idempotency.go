package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	goIdem "github.com/MrEthical07/goIdem"
	"github.com/MrEthical07/goIdem/identity"
)

// Option customizes Idempotency.
type Option func(*options)

type options struct {
	resolver identity.Resolver
	path     func(*http.Request) string
}

// WithResolver sets the caller identity resolver. The default reads X-API-Key.
func WithResolver(resolver identity.Resolver) Option {
	return func(o *options) {
		if resolver != nil {
			o.resolver = resolver
		}
	}
}

// WithPathFunc overrides the path used in the scope key and fingerprint.
// The default is r.URL.Path.
func WithPathFunc(fn func(*http.Request) string) Option {
	return func(o *options) {
		if fn != nil {
			o.path = fn
		}
	}
}

// Idempotency coordinates requests whose method the engine protects.
// Other methods pass through untouched.
func Idempotency(engine *goIdem.Engine, opts ...Option) func(http.Handler) http.Handler {
	o := options{
		resolver: identity.Default(),
		path:     func(r *http.Request) string { return r.URL.Path },
	}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := engine.Config()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, cfg.ReplayHeader, goIdem.ErrEngineNotReady)
				return
			}
			if !engine.Protects(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			callerID, err := o.resolver.Resolve(r)
			if err != nil {
				writeError(w, cfg.ReplayHeader, err)
				return
			}

			req := goIdem.Request{
				CallerID:       callerID,
				Method:         r.Method,
				Path:           o.path(r),
				IdempotencyKey: strings.TrimSpace(r.Header.Get(cfg.KeyHeader)),
			}

			// A missing required key wins over any body problem; the engine
			// rejects it without running the handler.
			if req.IdempotencyKey == "" && cfg.RequireKey {
				_, err := engine.Do(r.Context(), req, unreachable)
				writeError(w, cfg.ReplayHeader, err)
				return
			}

			req.Body, err = readBody(w, r, cfg.MaxBodyBytes)
			if err != nil {
				writeError(w, cfg.ReplayHeader, err)
				return
			}
			body := req.Body

			res, err := engine.Do(r.Context(), req, func(ctx context.Context) (*goIdem.Response, error) {
				rec := newRecorder()
				inner := r.WithContext(ctx)
				inner.Body = io.NopCloser(bytes.NewReader(body))
				inner.ContentLength = int64(len(body))
				next.ServeHTTP(rec, inner)
				return rec.response(), nil
			})
			if err != nil {
				writeError(w, cfg.ReplayHeader, err)
				return
			}

			writeResponse(w, cfg.ReplayHeader, res)
		})
	}
}

func unreachable(context.Context) (*goIdem.Response, error) {
	return nil, errors.New("handler invoked for a request without a required key")
}

func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, goIdem.ErrRequestTooLarge
		}
		return nil, errBodyUnreadable
	}
	return body, nil
}

func writeResponse(w http.ResponseWriter, replayHeader string, res *goIdem.Result) {
	resp := res.Response
	dst := w.Header()
	for name, values := range resp.Header {
		dst[name] = append([]string(nil), values...)
	}
	dst.Set(replayHeader, strconv.FormatBool(res.Replayed))
	w.WriteHeader(resp.StatusCode)
	if bodyAllowed(resp.StatusCode) {
		_, _ = w.Write(resp.Body)
	}
}

func bodyAllowed(status int) bool {
	return status >= 200 && status != http.StatusNoContent && status != http.StatusNotModified
}

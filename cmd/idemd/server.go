package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	goIdem "github.com/MrEthical07/goIdem"
	"github.com/MrEthical07/goIdem/identity"
	"github.com/MrEthical07/goIdem/metrics/export/prometheus"
	idemmw "github.com/MrEthical07/goIdem/middleware"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// app holds everything a running idemd owns.
type app struct {
	cfg      serverConfig
	logger   *zap.Logger
	engine   *goIdem.Engine
	resolver identity.Resolver
	demo     *demoService
	closers  []func()
}

func newApp(cfg serverConfig, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, demo: newDemoService()}

	addrs := cfg.RedisAddrs
	if cfg.EmbeddedRedis {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, mr.Close)
		addrs = []string{mr.Addr()}
		logger.Warn("using embedded miniredis; records are lost on exit", zap.String("addr", mr.Addr()))
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: addrs})
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	builder := goIdem.New().
		WithConfig(cfg.engineConfig()).
		WithRedis(rdb).
		WithLogger(logger)
	if cfg.AuditLog {
		builder = builder.WithAuditSink(goIdem.NewJSONWriterSink(os.Stderr))
	}
	engine, err := builder.Build()
	if err != nil {
		a.close()
		return nil, err
	}
	a.engine = engine
	a.closers = append(a.closers, engine.Close)

	resolver, err := buildResolver(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.resolver = resolver

	for _, w := range cfg.engineConfig().Lint() {
		logger.Warn("config lint", zap.String("code", w.Code), zap.String("severity", w.Severity.String()), zap.String("message", w.Message))
	}
	return a, nil
}

func buildResolver(cfg serverConfig) (identity.Resolver, error) {
	if cfg.JWTSecret == "" {
		return identity.Default(), nil
	}
	bearer, err := identity.NewBearerJWT(identity.JWTConfig{
		SigningMethod: identity.MethodHS256,
		Secret:        []byte(cfg.JWTSecret),
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
		Leeway:        30 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return identity.Chain(bearer, identity.Default()), nil
}

// close releases resources in reverse acquisition order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := a.engine.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if a.cfg.Metrics {
		r.Method(http.MethodGet, "/metrics", prometheus.Handler(prometheus.NewCollector(a.engine)))
	}

	r.Group(func(r chi.Router) {
		r.Use(idemmw.Idempotency(a.engine, idemmw.WithResolver(a.resolver)))
		r.Post("/payments", a.demo.createPayment)
		r.Get("/payments/{id}", a.demo.getPayment)
		r.Post("/accounts", a.demo.createAccount)
		r.Post("/transactions", a.demo.createTransaction)
	})
	return r
}

// serve runs the HTTP server until ctx is cancelled or the listener fails.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("idemd listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

package goIdem

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goIdem/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  Store

	auditSink AuditSink
	logger    *zap.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the engine with a [store.RedisStore] over client.
// Standalone, cluster and failover clients all work.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets a custom store. It takes precedence over WithRedis.
func (b *Builder) WithStore(s Store) *Builder {
	b.store = s
	return b
}

// WithAuditSink sets the audit sink. Events flow only when Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the handler latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.store == nil && b.redis == nil {
		return nil, errors.New("redis client or store required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- STORE --------
	st := b.store
	if st == nil {
		st = store.NewRedisStore(b.redis, cfg.Store.FinalizePolicy)
	}

	protected := make(map[string]struct{}, len(cfg.ProtectedMethods))
	for _, m := range cfg.ProtectedMethods {
		protected[strings.ToUpper(strings.TrimSpace(m))] = struct{}{}
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &Engine{
		config:    cfg,
		store:     st,
		protected: protected,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger.Named("idempotency"),
		now:       time.Now,
	}

	b.built = true
	return engine, nil
}

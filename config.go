package goIdem

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goIdem/store"
)

// Config controls the coordinator.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	// TTL is the retention window for both in-flight and completed records.
	// It is also the worst-case time a crashed in-flight request blocks its key.
	TTL time.Duration
	// RequireKey rejects protected requests that carry no idempotency key.
	// When false such requests run uncoordinated.
	RequireKey bool
	// ProtectedMethods lists the HTTP methods that go through the coordinator.
	ProtectedMethods []string
	// KeyHeader is the request header carrying the client's idempotency key.
	KeyHeader string
	// ReplayHeader marks every response from this layer as replayed or fresh.
	ReplayHeader string
	// RetryAfter is the wait hint returned with in-flight conflicts.
	RetryAfter time.Duration
	// MaxKeyLength bounds the idempotency key length.
	MaxKeyLength int
	// MaxBodyBytes bounds the buffered request body.
	MaxBodyBytes int64
	// FinalizeTimeout bounds the finalize write, which runs detached from
	// request cancellation once the handler has produced a response.
	FinalizeTimeout time.Duration

	Store   StoreConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// FinalizePolicy selects how a completed record's expiry is written.
type FinalizePolicy = store.FinalizeMode

const (
	// FinalizePreserveTTL keeps the countdown started at reservation.
	FinalizePreserveTTL = store.PreserveTTL
	// FinalizeRefreshTTL restarts the retention window at completion.
	FinalizeRefreshTTL = store.RefreshTTL
)

// StoreConfig configures the Redis record store.
type StoreConfig struct {
	RedisPrefix    string
	FinalizePolicy FinalizePolicy
}

// AuditConfig configures asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: 24h retention, keys
// required on POST, PUT, PATCH and DELETE.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		TTL:        24 * time.Hour,
		RequireKey: true,
		ProtectedMethods: []string{
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		KeyHeader:       "Idempotency-Key",
		ReplayHeader:    "X-Idempotent-Replay",
		RetryAfter:      5 * time.Second,
		MaxKeyLength:    255,
		MaxBodyBytes:    1 << 20,
		FinalizeTimeout: 5 * time.Second,
		Store: StoreConfig{
			RedisPrefix:    "idem",
			FinalizePolicy: FinalizePreserveTTL,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.ProtectedMethods != nil {
		out.ProtectedMethods = make([]string, len(cfg.ProtectedMethods))
		copy(out.ProtectedMethods, cfg.ProtectedMethods)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.TTL < time.Second {
		return errors.New("TTL must be >= 1s")
	}
	if len(c.ProtectedMethods) == 0 {
		return errors.New("ProtectedMethods must not be empty")
	}
	for _, m := range c.ProtectedMethods {
		m = strings.TrimSpace(m)
		if m == "" {
			return errors.New("ProtectedMethods contains an empty method")
		}
		if isSafeMethod(m) {
			return errors.New("ProtectedMethods must not contain read-only method " + strings.ToUpper(m))
		}
	}
	if strings.TrimSpace(c.KeyHeader) == "" {
		return errors.New("KeyHeader must be set")
	}
	if strings.TrimSpace(c.ReplayHeader) == "" {
		return errors.New("ReplayHeader must be set")
	}
	if http.CanonicalHeaderKey(c.KeyHeader) == http.CanonicalHeaderKey(c.ReplayHeader) {
		return errors.New("KeyHeader and ReplayHeader must differ")
	}
	if c.RetryAfter < time.Second {
		return errors.New("RetryAfter must be >= 1s")
	}
	if c.MaxKeyLength <= 0 {
		return errors.New("MaxKeyLength must be > 0")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("MaxBodyBytes must be > 0")
	}
	if c.FinalizeTimeout <= 0 {
		return errors.New("FinalizeTimeout must be > 0")
	}
	if strings.TrimSpace(c.Store.RedisPrefix) == "" {
		return errors.New("Store RedisPrefix must be set")
	}
	if strings.Contains(c.Store.RedisPrefix, ":") {
		return errors.New("Store RedisPrefix must not contain ':'")
	}
	if c.Store.FinalizePolicy != FinalizePreserveTTL && c.Store.FinalizePolicy != FinalizeRefreshTTL {
		return errors.New("unsupported Store FinalizePolicy")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}

func isSafeMethod(m string) bool {
	switch strings.ToUpper(m) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

package main

import (
	"fmt"
	"strings"
	"time"

	goIdem "github.com/MrEthical07/goIdem"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "IDEMD"

// serverConfig is the resolved flag, env and file configuration.
type serverConfig struct {
	Listen         string
	RedisAddrs     []string
	EmbeddedRedis  bool
	RedisPrefix    string
	TTL            time.Duration
	RetryAfter     time.Duration
	MaxBodyBytes   int64
	RequireKey     bool
	FinalizePolicy goIdem.FinalizePolicy
	LogEnv         string
	LogLevel       string
	AuditLog       bool
	Metrics        bool
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	ShutdownGrace  time.Duration
}

func registerFlags(flags *pflag.FlagSet) {
	flags.String("listen", ":8080", "HTTP listen address")
	flags.String("redis-addr", "", "comma-separated redis addresses; several addresses select cluster mode")
	flags.Bool("embedded-redis", false, "run an in-process miniredis instead of connecting to redis (dev only)")
	flags.String("redis-prefix", "idem", "key prefix for idempotency records")
	flags.Duration("ttl", 24*time.Hour, "retention window for idempotency records")
	flags.Duration("retry-after", 5*time.Second, "Retry-After hint for in-flight duplicates")
	flags.String("max-body-size", "1MiB", "maximum buffered request body (e.g. 512KiB, 2MB)")
	flags.Bool("require-key", true, "reject protected requests without an Idempotency-Key")
	flags.String("finalize-policy", "preserve", "completed record expiry: preserve or refresh")
	flags.String("log-env", "dev", "log format: dev (console) or prod (JSON)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("audit-log", false, "write audit events as JSON lines to stderr")
	flags.Bool("metrics", true, "expose Prometheus metrics on /metrics")
	flags.String("jwt-secret", "", "HS256 secret enabling bearer token caller identity")
	flags.String("jwt-issuer", "", "required token issuer")
	flags.String("jwt-audience", "", "required token audience")
	flags.Duration("shutdown-grace", 10*time.Second, "graceful shutdown timeout")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil {
			return
		}
		if err := v.BindPFlag(f.Name, f); err != nil {
			bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

func loadServerConfig(v *viper.Viper) (serverConfig, error) {
	cfg := serverConfig{
		Listen:        v.GetString("listen"),
		EmbeddedRedis: v.GetBool("embedded-redis"),
		RedisPrefix:   v.GetString("redis-prefix"),
		TTL:           v.GetDuration("ttl"),
		RetryAfter:    v.GetDuration("retry-after"),
		RequireKey:    v.GetBool("require-key"),
		LogEnv:        v.GetString("log-env"),
		LogLevel:      v.GetString("log-level"),
		AuditLog:      v.GetBool("audit-log"),
		Metrics:       v.GetBool("metrics"),
		JWTSecret:     v.GetString("jwt-secret"),
		JWTIssuer:     v.GetString("jwt-issuer"),
		JWTAudience:   v.GetString("jwt-audience"),
		ShutdownGrace: v.GetDuration("shutdown-grace"),
	}

	for _, addr := range strings.Split(v.GetString("redis-addr"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			cfg.RedisAddrs = append(cfg.RedisAddrs, addr)
		}
	}
	if len(cfg.RedisAddrs) == 0 && !cfg.EmbeddedRedis {
		return cfg, fmt.Errorf("redis-addr is required unless embedded-redis is set")
	}

	size, err := humanize.ParseBytes(v.GetString("max-body-size"))
	if err != nil {
		return cfg, fmt.Errorf("parse max-body-size: %w", err)
	}
	cfg.MaxBodyBytes = int64(size)

	switch strings.ToLower(strings.TrimSpace(v.GetString("finalize-policy"))) {
	case "", "preserve":
		cfg.FinalizePolicy = goIdem.FinalizePreserveTTL
	case "refresh":
		cfg.FinalizePolicy = goIdem.FinalizeRefreshTTL
	default:
		return cfg, fmt.Errorf("unknown finalize-policy %q", v.GetString("finalize-policy"))
	}

	return cfg, nil
}

func (c serverConfig) engineConfig() goIdem.Config {
	ec := goIdem.DefaultConfig()
	ec.TTL = c.TTL
	ec.RetryAfter = c.RetryAfter
	ec.MaxBodyBytes = c.MaxBodyBytes
	ec.RequireKey = c.RequireKey
	ec.Store.RedisPrefix = c.RedisPrefix
	ec.Store.FinalizePolicy = c.FinalizePolicy
	ec.Metrics.Enabled = c.Metrics
	ec.Metrics.EnableLatencyHistograms = c.Metrics
	ec.Audit.Enabled = c.AuditLog
	return ec
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goIdem "github.com/MrEthical07/goIdem"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		keys        = flag.Int("keys", 20000, "number of distinct idempotency keys")
		dupes       = flag.Int("dupes", 4, "requests sent per key in the contention phase")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		work        = flag.Duration("work", time.Millisecond, "simulated handler latency")
		redisAddr   = flag.String("redis-addr", "", "comma-separated redis addresses; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "idemlt", "record key prefix")
	)
	flag.Parse()

	if *keys <= 0 || *dupes <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "keys, dupes, and concurrency must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: strings.Split(addr, ",")})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goIdem.DefaultConfig()
	cfg.Store.RedisPrefix = *prefix
	cfg.TTL = 10 * time.Minute
	cfg.Metrics.Enabled = true
	engine, err := goIdem.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	runID := uuid.NewString()
	keyList := make([]string, *keys)
	for i := range keyList {
		keyList[i] = runID + "-" + uuid.NewString()
	}
	executions := make([]atomic.Int32, *keys)

	contention, err := runPhase(ctx, engine, keyList, executions, *dupes, *concurrency, *work)
	if err != nil {
		fmt.Fprintf(os.Stderr, "contention phase: %v\n", err)
		os.Exit(1)
	}
	replay, err := runPhase(ctx, engine, keyList, executions, 1, *concurrency, *work)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay phase: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("---- results ----")
	printStats("contention", contention)
	printStats("replay", replay)

	var duplicated, missing int
	for i := range executions {
		switch n := executions[i].Load(); {
		case n > 1:
			duplicated++
		case n == 0:
			missing++
		}
	}
	snap := engine.MetricsSnapshot()
	fmt.Printf("executed=%d replayed=%d in_flight=%d reservation_lost=%d\n",
		snap.Counters[goIdem.MetricExecuted],
		snap.Counters[goIdem.MetricReplayed],
		snap.Counters[goIdem.MetricInFlightConflict],
		snap.Counters[goIdem.MetricReservationLost],
	)
	if duplicated > 0 {
		fmt.Fprintf(os.Stderr, "FAIL: %d keys executed more than once\n", duplicated)
		os.Exit(1)
	}
	if missing > 0 {
		fmt.Printf("note: %d keys were never executed (all attempts hit in-flight conflicts)\n", missing)
	}
	fmt.Println("at-most-once execution held for every key")
}

type phaseStats struct {
	total     time.Duration
	ops       int
	executed  int64
	replayed  int64
	conflicts int64
	failures  int64
	p50       time.Duration
	p95       time.Duration
	p99       time.Duration
	opsPerS   float64
}

func runPhase(ctx context.Context, engine *goIdem.Engine, keys []string, executions []atomic.Int32, dupes, concurrency int, work time.Duration) (phaseStats, error) {
	var (
		cursor    atomic.Int64
		executed  atomic.Int64
		replayed  atomic.Int64
		conflicts atomic.Int64
		failures  atomic.Int64
		latencies = make([]time.Duration, 0, len(keys)*dupes)
		mu        sync.Mutex
	)
	ops := len(keys) * dupes

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1)) - 1
				if i >= ops {
					return nil
				}
				// Duplicates of one key are adjacent so they overlap in time.
				idx := i / dupes
				req := goIdem.Request{
					CallerID:       "loadtest",
					Method:         "POST",
					Path:           "/payments",
					IdempotencyKey: keys[idx],
					Body:           []byte(fmt.Sprintf(`{"amount":%d}`, idx)),
				}
				t0 := time.Now()
				res, err := engine.Do(gctx, req, func(context.Context) (*goIdem.Response, error) {
					executions[idx].Add(1)
					if work > 0 {
						time.Sleep(work)
					}
					return &goIdem.Response{StatusCode: 201, Body: []byte(`{"status":"created"}`)}, nil
				})
				d := time.Since(t0)

				switch {
				case err == nil && res.Replayed:
					replayed.Add(1)
				case err == nil:
					executed.Add(1)
				case errors.Is(err, goIdem.ErrInFlightConflict):
					conflicts.Add(1)
				case errors.Is(err, goIdem.ErrStoreUnavailable):
					failures.Add(1)
				default:
					return fmt.Errorf("key %s: %w", keys[idx], err)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	s := computeStats(time.Since(start), latencies, failures.Load())
	s.executed = executed.Load()
	s.replayed = replayed.Load()
	s.conflicts = conflicts.Load()
	return s, nil
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d executed=%d replayed=%d conflicts=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.executed,
		s.replayed,
		s.conflicts,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// Command fleet-loadtest drives the auth engine and the response cache
// against Redis and reports latency percentiles per phase.
//
// Phases: authenticate, refresh rotation, concurrent refresh race (counts
// tokens that rotated more than once) and cache read/invalidate (counts
// stale hits).
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/cache"
	"github.com/MrEthical07/goFleet/respcache"
	"github.com/MrEthical07/goFleet/storage/memory"
	"github.com/MrEthical07/goFleet/tokenstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

type userState struct {
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		users       = pflag.Int("users", 200, "number of users to register")
		concurrency = pflag.Int("concurrency", 64, "number of concurrent workers")
		ops         = pflag.Int("ops", 20000, "operations per phase")
		racers      = pflag.Int("racers", 16, "goroutines presenting the same refresh token in the race phase")
		atomicMode  = pflag.Bool("atomic", true, "use compare-and-revoke for refresh rotation")
		redisAddr   = pflag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	pflag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *racers <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, ops and racers must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

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
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goFleet.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("loadtest-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("loadtest-refresh-secret-0123456789")
	cfg.Password.Algorithm = "bcrypt"
	cfg.Password.BcryptCost = 4
	cfg.Refresh.AtomicRevoke = *atomicMode

	engine, err := goFleet.New().
		WithConfig(cfg).
		WithUserStore(memory.NewUserStore()).
		WithTokenStore(tokenstore.NewRedisStore(client, "lt:tok", time.Hour)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]userState, *users)
	fmt.Printf("registering %d users...\n", *users)
	startSeed := time.Now()
	for i := range states {
		_, pair, err := engine.Register(ctx, goFleet.RegisterRequest{
			Handle:   "user-" + strconv.Itoa(i),
			Password: "loadtest-password",
			TenantID: "tenant-" + strconv.Itoa(i%8),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
		states[i].access = pair.Access.Token
		states[i].refresh = pair.Refresh.Token
	}
	fmt.Printf("registered in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runAuthenticatePhase(ctx, engine, states, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, states, *ops, *concurrency)
	race := runRacePhase(ctx, engine, states, *racers)
	cacheStats, stale := runCachePhase(ctx, client, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("refresh", refreshStats)
	fmt.Printf("refresh race: tokens=%d racers=%d multi-winner tokens=%d (atomic=%v)\n",
		len(states), *racers, race, *atomicMode)
	printStats("cache", cacheStats)
	fmt.Printf("cache: stale hits after invalidation=%d\n", stale)

	snap := engine.MetricsSnapshot()
	fmt.Printf("metrics: refresh_success=%d refresh_failure=%d reuse_detected=%d\n",
		snap.Counters[goFleet.MetricRefreshSuccess],
		snap.Counters[goFleet.MetricRefreshFailure],
		snap.Counters[goFleet.MetricRefreshReuseDetected],
	)
}

func runAuthenticatePhase(ctx context.Context, engine *goFleet.Engine, states []userState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 7919, func(r *rand.Rand, _ int) bool {
		idx := r.Intn(len(states))
		_, err := engine.Authenticate(ctx, states[idx].access)
		return err == nil
	})
}

func runRefreshPhase(ctx context.Context, engine *goFleet.Engine, states []userState, ops, concurrency int) phaseStats {
	return runPhase(ops, concurrency, 6151, func(r *rand.Rand, _ int) bool {
		state := &states[r.Intn(len(states))]

		state.mu.Lock()
		defer state.mu.Unlock()
		pair, err := engine.Refresh(ctx, state.refresh)
		if err != nil {
			return false
		}
		state.access = pair.Access.Token
		state.refresh = pair.Refresh.Token
		return true
	})
}

// runRacePhase presents each user's current refresh token from racers
// goroutines at once and returns how many tokens rotated more than once.
func runRacePhase(ctx context.Context, engine *goFleet.Engine, states []userState, racers int) int {
	violations := 0
	for i := range states {
		token := states[i].refresh
		var (
			wg      sync.WaitGroup
			winners int64
			start   = make(chan struct{})
		)
		for g := 0; g < racers; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if _, err := engine.Refresh(ctx, token); err == nil {
					atomic.AddInt64(&winners, 1)
				}
			}()
		}
		close(start)
		wg.Wait()
		if winners > 1 {
			violations++
		}
	}
	return violations
}

// runCachePhase interleaves read-through reads with writes that bump a
// version and invalidate. A hit returning an older version than the last
// completed write is counted as stale.
func runCachePhase(ctx context.Context, client redis.UniversalClient, ops, concurrency int) (phaseStats, int64) {
	rc := respcache.New(cache.NewRedisStore(client, 200), respcache.Config{Prefix: "lt", TTL: time.Minute}, nil, nil)
	const tenants = 8
	var (
		versions [tenants]atomic.Int64
		stale    atomic.Int64
	)

	stats := runPhase(ops, concurrency, 4099, func(r *rand.Rand, _ int) bool {
		tenant := r.Intn(tenants)
		tenantID := "tenant-" + strconv.Itoa(tenant)
		if r.Intn(10) == 0 {
			versions[tenant].Add(1)
			_, err := rc.Invalidate(ctx, tenantID, "/api/devices")
			return err == nil
		}
		floor := versions[tenant].Load()
		res, err := rc.ReadThrough(ctx, tenantID, "/api/devices", func(context.Context) ([]byte, error) {
			return []byte(strconv.FormatInt(versions[tenant].Load(), 10)), nil
		})
		if err != nil {
			return false
		}
		if res.Hit {
			if got, _ := strconv.ParseInt(string(res.Value), 10, 64); got < floor {
				stale.Add(1)
			}
		}
		return true
	})
	return stats, stale.Load()
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand, i int) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op(r, i)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
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
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

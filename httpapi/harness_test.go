package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/broadcast"
	"github.com/MrEthical07/goFleet/cache"
	"github.com/MrEthical07/goFleet/device"
	"github.com/MrEthical07/goFleet/internal/rate"
	"github.com/MrEthical07/goFleet/metrics/export/prometheus"
	"github.com/MrEthical07/goFleet/realtime"
	"github.com/MrEthical07/goFleet/respcache"
	"github.com/MrEthical07/goFleet/storage/memory"
	"github.com/MrEthical07/goFleet/tokenstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

type testEnv struct {
	srv      *httptest.Server
	mr       *miniredis.Miniredis
	engine   *goFleet.Engine
	registry *broadcast.Registry
}

func testEngineConfig() goFleet.Config {
	cfg := goFleet.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("test-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-0123456789")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	return cfg
}

func newTestEnv(t *testing.T, cfg goFleet.Config) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	engine, err := goFleet.New().
		WithConfig(cfg).
		WithUserStore(memory.NewUserStore()).
		WithTokenStore(tokenstore.NewRedisStore(rdb, "test:tok", time.Hour)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	metrics := engine.Metrics()
	rc := respcache.New(cache.NewRedisStore(rdb, 100), respcache.Config{Prefix: cfg.Cache.Prefix, TTL: cfg.Cache.TTL}, nil, metrics)
	registry := broadcast.NewRegistry(nil, metrics)
	relay := broadcast.NewRedisRelay(rdb, registry, "test:events", nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = relay.Run(ctx) }()

	devices := device.NewService(device.NewMemoryStore(), rc, relay, nil)
	health := NewHealth(time.Second, nil).
		Add("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

	handler := NewRouter(Deps{
		Auth:     engine,
		Devices:  devices,
		Cache:    rc,
		Realtime: realtime.NewHandler(engine, registry, relay, realtime.Config{}, nil, metrics),
		Limiter:  rate.New(rdb, "test:rl"),
		Metrics: prometheus.NewPrometheusExporter(engine).
			WithGauge("gofleet_realtime_connections", "Live real-time connections.", func() float64 { return float64(registry.Len()) }).
			Handler(),
		Health:   health,
		Security: cfg.Security,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, mr: mr, engine: engine, registry: registry}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.body, v); err != nil {
		t.Fatalf("decode %q: %v", r.body, err)
	}
}

func (r response) errorBody(t *testing.T) (int, string) {
	t.Helper()
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	r.decode(t, &body)
	return body.Code, body.Message
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			raw = string(b)
		}
		rd = strings.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, resp.Body)
	return response{status: resp.StatusCode, header: resp.Header, body: buf.Bytes()}
}

func (e *testEnv) register(t *testing.T, handle, tenant string) goFleet.TokenPair {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": handle, "password": "password123", "organization": tenant,
	})
	if resp.status != http.StatusCreated {
		t.Fatalf("register %s: %d %s", handle, resp.status, resp.body)
	}
	var out authResponse
	resp.decode(t, &out)
	return out.Tokens
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) broadcast.Event {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var ev broadcast.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("bad frame %q: %v", data, err)
	}
	return ev
}

func expectNoEvent(t *testing.T, ws *websocket.Conn, wait time.Duration) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(wait))
	if _, data, err := ws.ReadMessage(); err == nil {
		t.Fatalf("unexpected frame %q", data)
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/broadcast"
	"github.com/gorilla/websocket"
)

type tokenAuth map[string]goFleet.Principal

func (a tokenAuth) Authenticate(_ context.Context, bearer string) (goFleet.Principal, error) {
	p, ok := a[bearer]
	if !ok {
		return goFleet.Principal{}, goFleet.ErrUnauthenticated
	}
	return p, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *broadcast.Registry, *goFleet.Metrics) {
	t.Helper()
	auth := tokenAuth{
		"tok-alice": {UserID: "u1", Handle: "alice", TenantID: "acme"},
		"tok-bob":   {UserID: "u2", Handle: "bob", TenantID: "acme"},
		"tok-carol": {UserID: "u3", Handle: "carol", TenantID: "globex"},
	}
	m := goFleet.NewMetrics(goFleet.MetricsConfig{Enabled: true})
	reg := broadcast.NewRegistry(nil, m)
	srv := httptest.NewServer(NewHandler(auth, reg, nil, Config{}, nil, m))
	t.Cleanup(srv.Close)
	return srv, reg, m
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
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

func expectClose(t *testing.T, ws *websocket.Conn, code int, reason string) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("expected close error, got %v", err)
	}
	if ce.Code != code || ce.Text != reason {
		t.Fatalf("close = %d %q, want %d %q", ce.Code, ce.Text, code, reason)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRejectsMissingToken(t *testing.T) {
	srv, _, m := newTestServer(t)
	ws := dial(t, srv, "")
	expectClose(t, ws, websocket.ClosePolicyViolation, ReasonTokenMissing)
	if m.Value(goFleet.MetricRealtimeRejected) != 1 {
		t.Fatal("expected rejection counter")
	}
}

func TestRejectsInvalidToken(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	ws := dial(t, srv, "forged")
	expectClose(t, ws, websocket.ClosePolicyViolation, ReasonTokenInvalid)
	if reg.Len() != 0 {
		t.Fatal("rejected connection must not register")
	}
}

func TestGreetingAndTenantBroadcast(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	alice := dial(t, srv, "tok-alice")
	carol := dial(t, srv, "tok-carol")

	greet := readEvent(t, alice)
	if greet.Type != broadcast.TypeConnectionSuccess || greet.Message != GreetingMessage {
		t.Fatalf("greeting = %+v", greet)
	}
	readEvent(t, carol)
	waitFor(t, func() bool { return reg.Len() == 2 })

	ev, _ := broadcast.NewEvent(broadcast.TypeDeviceUpdate, map[string]string{"id": "d1"})
	if n := reg.Publish(context.Background(), "acme", ev); n != 1 {
		t.Fatalf("delivered %d, want 1", n)
	}
	got := readEvent(t, alice)
	if got.Type != broadcast.TypeDeviceUpdate || string(got.Payload) != `{"id":"d1"}` {
		t.Fatalf("event = %+v", got)
	}
}

func TestHeartbeatRelayedToTenant(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	alice := dial(t, srv, "tok-alice")
	bob := dial(t, srv, "tok-bob")
	readEvent(t, alice)
	readEvent(t, bob)
	waitFor(t, func() bool { return reg.TenantSize("acme") == 2 })

	frame := `{"type":"HEARTBEAT","payload":{"deviceId":"d7"}}`
	if err := bob.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	for _, ws := range []*websocket.Conn{alice, bob} {
		got := readEvent(t, ws)
		if got.Type != broadcast.TypeDeviceHeartbeat || string(got.Payload) != `{"deviceId":"d7"}` {
			t.Fatalf("event = %+v", got)
		}
	}
}

func TestReconnectReplacesPreviousConnection(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	first := dial(t, srv, "tok-alice")
	readEvent(t, first)
	second := dial(t, srv, "tok-alice")
	readEvent(t, second)

	expectClose(t, first, websocket.CloseNormalClosure, "")
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}

	reg.Publish(context.Background(), "acme", broadcast.Event{Type: broadcast.TypeDeviceCreate})
	if got := readEvent(t, second); got.Type != broadcast.TypeDeviceCreate {
		t.Fatalf("event = %+v", got)
	}
}

func TestDisconnectReleasesRegistration(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	ws := dial(t, srv, "tok-alice")
	readEvent(t, ws)
	waitFor(t, func() bool { return reg.Len() == 1 })

	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = ws.Close()
	waitFor(t, func() bool { return reg.Len() == 0 })
}

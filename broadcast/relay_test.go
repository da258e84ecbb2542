package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func startRelay(t *testing.T, addr string) (*RedisRelay, *Registry) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	reg := NewRegistry(nil, nil)
	relay := NewRedisRelay(rdb, reg, "test:events", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = rdb.Close()
	})

	select {
	case <-relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}
	return relay, reg
}

func waitForEvents(t *testing.T, ch *fakeChannel, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := ch.events(t); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	return ch.events(t)
}

func TestRelayCrossProcessDelivery(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	relayA, regA := startRelay(t, mr.Addr())
	_, regB := startRelay(t, mr.Addr())

	local, remote, otherTenant := &fakeChannel{}, &fakeChannel{}, &fakeChannel{}
	regA.Register("u1", "acme", local)
	regB.Register("u2", "acme", remote)
	regB.Register("u3", "globex", otherTenant)

	ev, _ := NewEvent(TypeDeviceUpdate, map[string]string{"id": "d1"})
	if n := relayA.Publish(context.Background(), "acme", ev); n != 1 {
		t.Fatalf("local delivery = %d, want 1", n)
	}

	got := waitForEvents(t, remote, 1)
	if len(got) != 1 || got[0].Type != TypeDeviceUpdate {
		t.Fatalf("remote events = %+v", got)
	}

	time.Sleep(50 * time.Millisecond)
	if n := len(local.events(t)); n != 1 {
		t.Fatalf("publisher's own connection got %d events, want 1", n)
	}
	if n := len(otherTenant.events(t)); n != 0 {
		t.Fatalf("other tenant got %d events", n)
	}
}

func TestRelayPublishSurvivesRedisOutage(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := NewRegistry(nil, nil)
	relay := NewRedisRelay(rdb, reg, "", nil)
	ch := &fakeChannel{}
	reg.Register("u1", "acme", ch)
	mr.Close()

	if n := relay.Publish(context.Background(), "acme", Event{Type: TypeDeviceCreate}); n != 1 {
		t.Fatalf("local delivery = %d, want 1", n)
	}
}

func TestRelayPublishCrossesProcessesOnCancelledContext(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	relayA, _ := startRelay(t, mr.Addr())
	_, regB := startRelay(t, mr.Addr())
	remote := &fakeChannel{}
	regB.Register("u2", "acme", remote)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	relayA.Publish(ctx, "acme", Event{Type: TypeDeviceUpdate})

	if got := waitForEvents(t, remote, 1); len(got) != 1 || got[0].Type != TypeDeviceUpdate {
		t.Fatalf("remote events = %+v", got)
	}
}

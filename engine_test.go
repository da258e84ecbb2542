package goFleet

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goFleet/jwt"
	"github.com/MrEthical07/goFleet/password"
	"github.com/MrEthical07/goFleet/tokenstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testUserStore struct {
	mu       sync.Mutex
	byID     map[string]UserRecord
	byHandle map[string]string
	failGet  error
}

func newTestUserStore() *testUserStore {
	return &testUserStore{
		byID:     make(map[string]UserRecord),
		byHandle: make(map[string]string),
	}
}

func (s *testUserStore) CreateUser(_ context.Context, u UserRecord) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHandle[u.Handle]; ok {
		return UserRecord{}, ErrDuplicateIdentity
	}
	s.byID[u.ID] = u
	s.byHandle[u.Handle] = u.ID
	return u, nil
}

func (s *testUserStore) GetUserByHandle(_ context.Context, handle string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return UserRecord{}, s.failGet
	}
	id, ok := s.byHandle[handle]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *testUserStore) GetUserByID(_ context.Context, id string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return UserRecord{}, s.failGet
	}
	u, ok := s.byID[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (s *testUserStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	s.byID[id] = u
	return nil
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("test-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-0123456789")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	return cfg
}

func newTestEngine(t testing.TB, cfg Config, users UserStore, tokens tokenstore.Store) *Engine {
	t.Helper()
	engine, err := New().
		WithConfig(cfg).
		WithUserStore(users).
		WithTokenStore(tokens).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newTestUserStore(), tokenstore.NewMemoryStore())
	ctx := context.Background()

	user, pair, err := engine.Register(ctx, RegisterRequest{Handle: " Alice ", Password: "secret1", TenantID: "T1"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Handle != "alice" || user.TenantID != "T1" || user.ID == "" {
		t.Fatalf("unexpected user %+v", user)
	}
	if pair.Access.Token == "" || pair.Refresh.Token == "" {
		t.Fatal("register must return a token pair")
	}
	if !pair.Refresh.ExpiresAt.After(pair.Access.ExpiresAt) {
		t.Fatal("refresh token must outlive access token")
	}

	loggedIn, loginPair, err := engine.Login(ctx, "ALICE", "secret1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("login resolved a different user")
	}

	p, err := engine.Authenticate(ctx, loginPair.Access.Token)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if p.UserID != user.ID || p.TenantID != "T1" || p.Handle != "alice" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestRegisterDuplicateKeepsFirstUser(t *testing.T) {
	users := newTestUserStore()
	engine := newTestEngine(t, testConfig(), users, tokenstore.NewMemoryStore())
	ctx := context.Background()

	first, _, err := engine.Register(ctx, RegisterRequest{Handle: "bob", Password: "secret1", TenantID: "T1"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	_, _, err = engine.Register(ctx, RegisterRequest{Handle: "BOB", Password: "other-pass", TenantID: "T2"})
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}

	stored, err := users.GetUserByHandle(ctx, "bob")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored.ID != first.ID || stored.TenantID != "T1" || stored.PasswordHash != first.PasswordHash {
		t.Fatalf("first user mutated: %+v", stored)
	}
	if _, _, err := engine.Login(ctx, "bob", "secret1"); err != nil {
		t.Fatalf("original credential must still work: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newTestUserStore(), tokenstore.NewMemoryStore())
	for _, req := range []RegisterRequest{
		{Handle: "", Password: "secret1", TenantID: "T1"},
		{Handle: "carol", Password: "12345", TenantID: "T1"},
		{Handle: "carol", Password: "secret1", TenantID: "  "},
	} {
		if _, _, err := engine.Register(context.Background(), req); !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("req %+v: expected ErrValidationFailed, got %v", req, err)
		}
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	users := newTestUserStore()
	engine := newTestEngine(t, testConfig(), users, tokenstore.NewMemoryStore())
	ctx := context.Background()
	if _, _, err := engine.Register(ctx, RegisterRequest{Handle: "dave", Password: "secret1", TenantID: "T1"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, _, wrongPass := engine.Login(ctx, "dave", "wrong-pass")
	_, _, unknown := engine.Login(ctx, "nobody", "secret1")
	users.failGet = errors.New("connection reset")
	_, _, backend := engine.Login(ctx, "dave", "secret1")

	for _, err := range []error{wrongPass, unknown, backend} {
		if err != ErrInvalidCredentials {
			t.Fatalf("expected bare ErrInvalidCredentials, got %v", err)
		}
	}
}

func TestRefreshRotationOneShot(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newTestUserStore(), tokenstore.NewMemoryStore())
	ctx := context.Background()

	_, r1, err := engine.Register(ctx, RegisterRequest{Handle: "erin", Password: "secret1", TenantID: "T1"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	r2, err := engine.Refresh(ctx, r1.Refresh.Token)
	if err != nil {
		t.Fatalf("refresh(R1) failed: %v", err)
	}
	if r2.Refresh.Token == r1.Refresh.Token {
		t.Fatal("rotation must mint a new refresh token")
	}

	if _, err := engine.Refresh(ctx, r1.Refresh.Token); err != ErrReAuthRequired {
		t.Fatalf("refresh(R1) again: expected ErrReAuthRequired, got %v", err)
	}
	if _, err := engine.Refresh(ctx, r2.Refresh.Token); err != nil {
		t.Fatalf("refresh(R2) failed: %v", err)
	}
}

func TestRefreshRejectsForgedAndCrossKindTokens(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newTestUserStore(), tokenstore.NewMemoryStore())
	ctx := context.Background()
	_, pair, err := engine.Register(ctx, RegisterRequest{Handle: "frank", Password: "secret1", TenantID: "T1"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	forger, err := jwt.NewCodec(jwt.Config{
		AccessSecret:  []byte("attacker-access-secret-000"),
		RefreshSecret: []byte("attacker-refresh-secret-000"),
	})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	forged, _ := forger.Issue("frank", jwt.KindRefresh, time.Now().Add(time.Hour))

	for _, tok := range []string{"", "garbage", forged, pair.Access.Token} {
		if _, err := engine.Refresh(ctx, tok); err != ErrReAuthRequired {
			t.Fatalf("token %q: expected ErrReAuthRequired, got %v", tok, err)
		}
	}
	if _, err := engine.Authenticate(ctx, pair.Refresh.Token); err != ErrUnauthenticated {
		t.Fatalf("refresh token must not authenticate: %v", err)
	}
}

func TestAccessTokenSurvivesLogout(t *testing.T) {
	engine := newTestEngine(t, testConfig(), newTestUserStore(), tokenstore.NewMemoryStore())
	ctx := context.Background()
	_, pair, err := engine.Register(ctx, RegisterRequest{Handle: "gina", Password: "secret1", TenantID: "T1"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := engine.Logout(ctx, pair.Refresh.Token); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if err := engine.Logout(ctx, pair.Refresh.Token); err != nil {
		t.Fatalf("second logout should succeed: %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.Refresh.Token); err != ErrReAuthRequired {
		t.Fatalf("logged out refresh token must fail: %v", err)
	}
	if _, err := engine.Authenticate(ctx, pair.Access.Token); err != nil {
		t.Fatalf("access token should stay valid until expiry: %v", err)
	}
	if err := engine.Logout(ctx, "garbage"); err != ErrReAuthRequired {
		t.Fatalf("expected ErrReAuthRequired, got %v", err)
	}
}

func TestAuthenticateExpiredAccessToken(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.AccessTTL = time.Minute
	var (
		mu  sync.Mutex
		now = time.Now()
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	engine, err := New().
		WithConfig(cfg).
		WithUserStore(newTestUserStore()).
		WithTokenStore(tokenstore.NewMemoryStore()).
		WithClock(clock).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	ctx := context.Background()

	_, pair, err := engine.Register(ctx, RegisterRequest{Handle: "hank", Password: "secret1", TenantID: "T1"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := engine.Authenticate(ctx, pair.Access.Token); err != nil {
		t.Fatalf("fresh token should authenticate: %v", err)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	if _, err := engine.Authenticate(ctx, pair.Access.Token); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated for expired token, got %v", err)
	}
}

func TestAuthenticateDeletedUser(t *testing.T) {
	users := newTestUserStore()
	engine := newTestEngine(t, testConfig(), users, tokenstore.NewMemoryStore())
	ctx := context.Background()
	user, pair, err := engine.Register(ctx, RegisterRequest{Handle: "ivy", Password: "secret1", TenantID: "T1"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	users.mu.Lock()
	delete(users.byID, user.ID)
	users.mu.Unlock()

	if _, err := engine.Authenticate(ctx, pair.Access.Token); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	users := newTestUserStore()
	engine := newTestEngine(t, testConfig(), users, tokenstore.NewMemoryStore())
	ctx := context.Background()

	legacy, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	hash, err := legacy.Hash("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := users.CreateUser(ctx, UserRecord{ID: "u-legacy", Handle: "jack", TenantID: "T1", PasswordHash: hash}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, _, err := engine.Login(ctx, "jack", "secret1"); err != nil {
		t.Fatalf("login with legacy hash failed: %v", err)
	}
	stored, _ := users.GetUserByID(ctx, "u-legacy")
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Fatalf("hash not upgraded: %q", stored.PasswordHash)
	}
	if got := engine.Metrics().Value(MetricPasswordRehashed); got != 1 {
		t.Fatalf("expected one rehash, got %d", got)
	}
	if _, _, err := engine.Login(ctx, "jack", "secret1"); err != nil {
		t.Fatalf("login after upgrade failed: %v", err)
	}
}

func TestStateObserverSeesTransitions(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	engine, err := New().
		WithConfig(testConfig()).
		WithUserStore(newTestUserStore()).
		WithTokenStore(tokenstore.NewMemoryStore()).
		WithStateObserver(func(_, from, to string) {
			mu.Lock()
			seen = append(seen, from+">"+to)
			mu.Unlock()
		}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	ctx := context.Background()

	_, pair, err := engine.Register(ctx, RegisterRequest{Handle: "kim", Password: "secret1", TenantID: "T1"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	pair, err = engine.Refresh(ctx, pair.Refresh.Token)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if err := engine.Logout(ctx, pair.Refresh.Token); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	want := []string{
		"unauthenticated>authenticated",
		"authenticated>refreshing",
		"refreshing>authenticated",
		"authenticated>unauthenticated",
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(seen, ",") != strings.Join(want, ",") {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
}

func TestBuildRequiresStores(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).WithTokenStore(tokenstore.NewMemoryStore()).Build(); err == nil {
		t.Fatal("expected error without user store")
	}
	if _, err := New().WithConfig(testConfig()).WithUserStore(newTestUserStore()).Build(); err == nil {
		t.Fatal("expected error without token store")
	}
	b := New().WithConfig(testConfig()).WithUserStore(newTestUserStore()).WithTokenStore(tokenstore.NewMemoryStore())
	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("builder must be single use")
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if _, _, err := e.Login(context.Background(), "a", "b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Authenticate(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

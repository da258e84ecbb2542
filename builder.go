package goFleet

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goFleet/internal/flows"
	"github.com/MrEthical07/goFleet/jwt"
	"github.com/MrEthical07/goFleet/password"
	"github.com/MrEthical07/goFleet/tokenstore"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. Configure it during initialization and call
// Build once.
type Builder struct {
	config Config

	users     UserStore
	tokens    tokenstore.Store
	auditSink AuditSink
	logger    *zap.Logger
	observer  StateObserver
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the user persistence backend. Required.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithTokenStore sets the refresh token record store. Required.
func (b *Builder) WithTokenStore(tokens tokenstore.Store) *Builder {
	b.tokens = tokens
	return b
}

// WithAuditSink sets where audit events go. It only takes effect when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. A nil logger disables logging.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithStateObserver registers fn to receive every auth state transition.
func (b *Builder) WithStateObserver(fn StateObserver) *Builder {
	b.observer = fn
	return b
}

// WithClock replaces time.Now for token issuance and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles counters. Disabling metrics also disables latency histograms.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	if !enabled {
		b.config.Metrics.EnableLatencyHistograms = false
	}
	return b
}

// WithLatencyHistograms toggles the authenticate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder can be
// used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.tokens == nil {
		return nil, errors.New("token store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	codec, err := jwt.NewCodec(jwt.Config{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := newHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash("goFleet-timing-equalizer")
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		users:     b.users,
		tokens:    b.tokens,
		codec:     codec,
		hasher:    hasher,
		dummyHash: dummyHash,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger.With(zap.String("component", "auth")),
		observer:  b.observer,
		now:       now,
	}
	engine.flow = flows.New(engine.flowDeps())

	b.built = true

	return engine, nil
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	argon, err := password.NewArgon2(password.Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
	})
	if err != nil && !strings.EqualFold(cfg.Algorithm, "bcrypt") {
		return nil, err
	}
	bc, berr := password.NewBcrypt(cfg.BcryptCost)
	if berr != nil {
		return nil, berr
	}

	if strings.EqualFold(cfg.Algorithm, "bcrypt") {
		m := password.Multi{Primary: bc}
		if argon != nil {
			m.Legacy = []password.Hasher{argon}
		}
		return m, nil
	}
	return password.Multi{Primary: argon, Legacy: []password.Hasher{bc}}, nil
}

func (e *Engine) flowDeps() flows.Deps {
	verify := func(kind jwt.Kind) func(string) (string, error) {
		return func(token string) (string, error) {
			claims, err := e.codec.Verify(token, kind)
			if err != nil {
				return "", err
			}
			return claims.Subject, nil
		}
	}
	getByID := func(ctx context.Context, id string) (flows.UserRecord, error) {
		u, err := e.users.GetUserByID(ctx, id)
		if err != nil {
			return flows.UserRecord{}, err
		}
		return toFlowUser(u), nil
	}

	return flows.Deps{
		Issue: flows.IssueDeps{
			Now:        e.now,
			AccessTTL:  e.config.JWT.AccessTTL,
			RefreshTTL: e.config.JWT.RefreshTTL,
			Sign:       e.codec.Issue,
			Persist: func(ctx context.Context, token, userID string, expiresAt time.Time) error {
				_, err := e.tokens.Persist(ctx, token, userID, jwt.KindRefresh, expiresAt)
				return err
			},
		},
		Register: flows.RegisterDeps{
			MinPasswordLength: e.config.Password.MinLength,
			NewUserID:         func() string { return uuid.NewString() },
			HashPassword:      e.hasher.Hash,
			CreateUser: func(ctx context.Context, u flows.UserRecord) (flows.UserRecord, error) {
				rec := fromFlowUser(u)
				rec.CreatedAt = e.now().UTC()
				created, err := e.users.CreateUser(ctx, rec)
				if err != nil {
					return flows.UserRecord{}, err
				}
				return toFlowUser(created), nil
			},
			IsDuplicate: func(err error) bool { return errors.Is(err, ErrDuplicateIdentity) },
			Observe:     e.observeTransition,
		},
		Login: flows.LoginDeps{
			GetUserByHandle: func(ctx context.Context, handle string) (flows.UserRecord, error) {
				u, err := e.users.GetUserByHandle(ctx, handle)
				if err != nil {
					return flows.UserRecord{}, err
				}
				return toFlowUser(u), nil
			},
			UserNotFound:         ErrUserNotFound,
			VerifyPassword:       e.hasher.Verify,
			DummyVerify:          func(pw string) { _, _ = e.hasher.Verify(pw, e.dummyHash) },
			UpgradeOnLogin:       e.config.Password.UpgradeOnLogin,
			PasswordNeedsUpgrade: e.hasher.NeedsUpgrade,
			HashPassword:         e.hasher.Hash,
			UpdatePasswordHash:   e.users.UpdatePasswordHash,
			Warn: func(msg string, err error) {
				e.logger.Warn(msg, zap.Error(err))
			},
			Observe: e.observeTransition,
		},
		Refresh: flows.RefreshDeps{
			VerifyRefresh: verify(jwt.KindRefresh),
			Tokens:        e.tokens,
			GetUserByID:   getByID,
			AtomicRevoke:  e.config.Refresh.AtomicRevoke,
			Observe:       e.observeTransition,
		},
		Logout: flows.LogoutDeps{
			VerifyRefresh: verify(jwt.KindRefresh),
			Tokens:        e.tokens,
			Observe:       e.observeTransition,
		},
		Authenticate: flows.AuthenticateDeps{
			VerifyAccess: verify(jwt.KindAccess),
			GetUserByID:  getByID,
		},
	}
}

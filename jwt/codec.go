package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind names the purpose a token was minted for. Each kind is signed with its
// own secret.
type Kind string

const (
	// KindAccess marks short-lived bearer tokens.
	KindAccess Kind = "access"
	// KindRefresh marks persisted, single-use rotation tokens.
	KindRefresh Kind = "refresh"
)

var (
	// ErrInvalidSignature is returned for tampered, malformed, wrongly signed,
	// or wrong-kind tokens.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired is returned for correctly signed tokens whose exp has passed.
	ErrExpired = errors.New("token expired")
)

const minSecretBytes = 16

// Config holds the signing material and validation knobs of a [Codec].
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	// Now overrides the clock used for iat and expiry checks.
	Now func() time.Time
}

// Claims is the verified content of a token.
type Claims struct {
	Kind Kind `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens. It holds no mutable state and is safe
// for concurrent use.
type Codec struct {
	config Config
	now    func() time.Time
}

// NewCodec validates cfg and returns a ready codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) < minSecretBytes {
		return nil, errors.New("access secret must be at least 16 bytes")
	}
	if len(cfg.RefreshSecret) < minSecretBytes {
		return nil, errors.New("refresh secret must be at least 16 bytes")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{config: cfg, now: now}, nil
}

// Issue signs a token of the given kind for subject, valid until expiresAt.
// Every token carries a random jti so two tokens minted for the same subject in
// the same second never collide.
func (c *Codec) Issue(subject string, kind Kind, expiresAt time.Time) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("token subject required")
	}
	if expiresAt.IsZero() {
		return "", errors.New("token expiry required")
	}
	secret, err := c.secretFor(kind)
	if err != nil {
		return "", err
	}

	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify checks signature, expiry and kind with the secret that belongs to
// kind. It performs no I/O.
func (c *Codec) Verify(tokenStr string, kind Kind) (*Claims, error) {
	secret, err := c.secretFor(kind)
	if err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSignature
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: token kind %q, want %q", ErrInvalidSignature, claims.Kind, kind)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSignature)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(c.now().Add(c.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalidSignature)
	}

	return claims, nil
}

func (c *Codec) secretFor(kind Kind) ([]byte, error) {
	switch kind {
	case KindAccess:
		return c.config.AccessSecret, nil
	case KindRefresh:
		return c.config.RefreshSecret, nil
	default:
		return nil, fmt.Errorf("unsupported token kind %q", kind)
	}
}

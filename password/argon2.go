package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2ID              = "argon2id"
)

// Config tunes the Argon2id cost parameters.
type Config struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
}

// Argon2 hashes with Argon2id and encodes results as PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
type Argon2 struct {
	config Config
}

type phcParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	sum         []byte
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password key length must be >= 16")
	case cfg.MaxPasswordBytes < 0:
		return nil, errors.New("password max bytes must be >= 0")
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}

	return &Argon2{config: cfg}, nil
}

// Hash derives a fresh salted hash of password.
func (a *Argon2) Hash(password string) (string, error) {
	if err := checkLength(password, a.config.MaxPasswordBytes); err != nil {
		return "", err
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	sum := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify recomputes the hash with the parameters stored in encoded and
// compares in constant time.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if len(password) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	sum := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.sum)))
	return subtle.ConstantTimeCompare(sum, p.sum) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the current configuration.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	p, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	return a.config.Memory > p.memory ||
		a.config.Time > p.time ||
		a.config.Parallelism > p.parallelism ||
		a.config.KeyLength != uint32(len(p.sum)), nil
}

func decodePHC(encoded string) (*phcParams, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrMalformedHash
	}
	if parts[1] != argon2ID {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, parts[1])
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, fmt.Errorf("%w: invalid version", ErrMalformedHash)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported argon2 version %d", ErrMalformedHash, version)
	}

	p := &phcParams{}
	var seen int
	for _, pair := range strings.Split(parts[3], ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%w: invalid parameter entry", ErrMalformedHash)
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid %s parameter", ErrMalformedHash, key)
		}
		switch key {
		case "m":
			if uint32(n) < minMemoryKB {
				return nil, fmt.Errorf("%w: memory below minimum", ErrMalformedHash)
			}
			p.memory = uint32(n)
		case "t":
			if uint32(n) < minTimeCost {
				return nil, fmt.Errorf("%w: time below minimum", ErrMalformedHash)
			}
			p.time = uint32(n)
		case "p":
			if n < uint64(minParallelism) || n > 255 {
				return nil, fmt.Errorf("%w: invalid parallelism", ErrMalformedHash)
			}
			p.parallelism = uint8(n)
		default:
			return nil, fmt.Errorf("%w: unsupported parameter %q", ErrMalformedHash, key)
		}
		seen++
	}
	if seen != 3 || p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}

	if p.salt, err = decodeB64(parts[4]); err != nil || len(p.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: invalid salt", ErrMalformedHash)
	}
	if p.sum, err = decodeB64(parts[5]); err != nil || len(p.sum) == 0 {
		return nil, fmt.Errorf("%w: invalid hash", ErrMalformedHash)
	}

	return p, nil
}

// decodeB64 accepts both padded and unpadded standard base64.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

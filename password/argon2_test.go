package password

import (
	"errors"
	"strings"
	"testing"
)

func secureConfig() Config {
	return Config{
		Memory:      65536,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := hasher.Verify("wrong-password", hash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestVerifyAcceptsPaddedEncoding(t *testing.T) {
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	hash, err := hasher.Hash("padded-input")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	// 16-byte salts encode to 22 raw chars; padded form appends "==".
	parts := strings.Split(hash, "$")
	parts[4] += "=="
	ok, err := hasher.Verify("padded-input", strings.Join(parts, "$"))
	if err != nil || !ok {
		t.Fatalf("expected padded hash to verify, ok=%v err=%v", ok, err)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	oldHasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2(old) error: %v", err)
	}
	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	newHasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2(new) error: %v", err)
	}
	up, err := newHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if !up {
		t.Fatal("expected NeedsUpgrade for weaker parameters")
	}

	up, err = oldHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade error: %v", err)
	}
	if up {
		t.Fatal("expected no upgrade for current parameters")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("version-test")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	for _, bad := range []string{
		"not-a-phc-hash",
		strings.Replace(hash, "$v=19$", "$v=18$", 1),
		strings.Replace(hash, "argon2id", "argon2i", 1),
		strings.Replace(hash, "m=8192", "m=10", 1),
	} {
		if _, err := hasher.Verify("version-test", bad); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("expected ErrMalformedHash for %q, got %v", bad, err)
		}
	}
}

func TestHashRejectsEmptyAndOversized(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxPasswordBytes = 64
	hasher, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	if _, err := hasher.Hash(""); !errors.Is(err, ErrPasswordEmpty) {
		t.Fatalf("expected ErrPasswordEmpty, got %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("b", 64)); err != nil {
		t.Fatalf("expected exactly-max password to hash: %v", err)
	}
}

func TestDefaultMaxPasswordBytesApplied(t *testing.T) {
	hasher, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); err == nil {
		t.Fatalf("expected password > %d bytes to be rejected", DefaultMaxPasswordBytes)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	weak := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for i, cfg := range weak {
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("case %d: expected config rejection", i)
		}
	}
}

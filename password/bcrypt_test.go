package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashVerify(t *testing.T) {
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := b.Hash("password1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	ok, err := b.Verify("password1", hash)
	if err != nil || !ok {
		t.Fatalf("expected verification success, ok=%v err=%v", ok, err)
	}
	ok, err = b.Verify("password2", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch, ok=%v err=%v", ok, err)
	}
	if _, err := b.Verify("password1", "$argon2id$v=19$m=1,t=1,p=1$x$y"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestMultiVerifiesLegacyAndFlagsUpgrade(t *testing.T) {
	legacy, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	primary, err := NewArgon2(fastConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	m := Multi{Primary: primary, Legacy: []Hasher{legacy}}

	old, err := legacy.Hash("password1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	ok, err := m.Verify("password1", old)
	if err != nil || !ok {
		t.Fatalf("expected legacy verification, ok=%v err=%v", ok, err)
	}
	up, err := m.NeedsUpgrade(old)
	if err != nil || !up {
		t.Fatalf("expected legacy hash to need upgrade, up=%v err=%v", up, err)
	}

	fresh, err := m.Hash("password1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	up, err = m.NeedsUpgrade(fresh)
	if err != nil || up {
		t.Fatalf("expected primary hash to be current, up=%v err=%v", up, err)
	}
}

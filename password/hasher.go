package password

import (
	"errors"
	"strings"
)

// DefaultMaxPasswordBytes bounds the work a single Hash/Verify call can be
// asked to do.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrPasswordEmpty is returned when hashing an empty password.
	ErrPasswordEmpty = errors.New("password empty")
	// ErrPasswordTooLong is returned when the input exceeds the configured byte cap.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrMalformedHash is returned when a stored hash cannot be decoded.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Hasher is the one-way credential primitive the engine depends on.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsUpgrade(encoded string) (bool, error)
}

// Multi hashes with Primary and verifies with whichever hasher recognizes the
// stored encoding. Hashes produced by a legacy hasher always report
// NeedsUpgrade so callers can migrate them on the next login.
type Multi struct {
	Primary Hasher
	Legacy  []Hasher
}

// Hash delegates to the primary hasher.
func (m Multi) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

// Verify tries the primary hasher first, then each legacy hasher whose format
// matches the stored value.
func (m Multi) Verify(password, encoded string) (bool, error) {
	ok, err := m.Primary.Verify(password, encoded)
	if err == nil || !errors.Is(err, ErrMalformedHash) {
		return ok, err
	}
	for _, h := range m.Legacy {
		ok, lerr := h.Verify(password, encoded)
		if lerr == nil {
			return ok, nil
		}
		if !errors.Is(lerr, ErrMalformedHash) {
			return false, lerr
		}
	}
	return false, err
}

// NeedsUpgrade reports true for any hash the primary hasher cannot decode.
func (m Multi) NeedsUpgrade(encoded string) (bool, error) {
	up, err := m.Primary.NeedsUpgrade(encoded)
	if err != nil && errors.Is(err, ErrMalformedHash) {
		return true, nil
	}
	return up, err
}

func checkLength(password string, max int) error {
	if password == "" || strings.TrimSpace(password) == "" {
		return ErrPasswordEmpty
	}
	if len(password) > max {
		return ErrPasswordTooLong
	}
	return nil
}

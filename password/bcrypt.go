package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently truncates anything longer.
const bcryptMaxBytes = 72

// Bcrypt verifies and produces bcrypt hashes. It exists for user records
// imported from systems that stored bcrypt digests.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. A zero cost selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Hash returns a bcrypt digest of password.
func (b *Bcrypt) Hash(password string) (string, error) {
	if err := checkLength(password, bcryptMaxBytes); err != nil {
		return "", err
	}
	sum, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(sum), nil
}

// Verify compares password against a bcrypt digest.
func (b *Bcrypt) Verify(password, encoded string) (bool, error) {
	if !isBcrypt(encoded) {
		return false, ErrMalformedHash
	}
	if len(password) > bcryptMaxBytes {
		return false, ErrPasswordTooLong
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// NeedsUpgrade reports whether encoded used a lower cost than configured.
func (b *Bcrypt) NeedsUpgrade(encoded string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < b.cost, nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

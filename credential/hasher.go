package credential

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies plaintext secrets. The hashing algorithm is
// a deployment choice; the engine only depends on this interface.
type Hasher interface {
	// Hash derives a storable hash from a plaintext secret.
	Hash(plain string) (string, error)

	// Verify reports whether plain matches the stored hash.
	Verify(hash, plain string) error
}

// ErrMismatch is returned by Verify when the secret does not match.
var ErrMismatch = errors.New("credential: secret does not match")

// BcryptHasher is the default Hasher.
type BcryptHasher struct {
	// Cost is the bcrypt cost parameter. Zero means bcrypt.DefaultCost.
	Cost int
}

// Hash derives a bcrypt hash from a plaintext password.
func (h BcryptHasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("credential: password is empty")
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify compares a plaintext password with a stored bcrypt hash.
func (h BcryptHasher) Verify(hash, plain string) error {
	if hash == "" {
		return errors.New("credential: password hash is empty")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return ErrMismatch
	}
	return nil
}

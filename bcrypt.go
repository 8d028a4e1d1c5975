package identity

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash. Each call salts the
// plaintext anew, so equal inputs produce different hashes.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext password
// matches the hashed password. A stored hash that is not valid bcrypt
// output reports a mismatch, never a panic.
func ComparePasswordAndHash(password, hash string) error {
	// bcrypt reports malformed hashes with a distinct error, collapse it
	// with mismatches so a corrupted row behaves like a wrong password
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// RandomPasswordHash is a throwaway hash, used to equalize the cost of
// login attempts against unknown emails
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

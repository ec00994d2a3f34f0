package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const saltBytes = 16

// GenerateSalt returns a fresh random salt encoded as hex. The salt is
// stored next to the hash so credentials can be re-verified later.
func GenerateSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashPassword hashes plaintext combined with the salt using bcrypt.
func HashPassword(plain, salt string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain+salt), bcrypt.DefaultCost)
}

// ComparePassword compares plaintext combined with the salt to the stored
// hash.
func ComparePassword(hash []byte, plain, salt string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain+salt))
}

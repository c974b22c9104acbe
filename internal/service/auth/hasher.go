package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Password hashing parameters. Changing any of them invalidates every stored
// digest, so treat them as part of the schema.
const (
	saltLength     = 16
	hashIterations = 65536
	hashKeyLength  = 16
)

// PasswordHasher derives and verifies salted password digests.
// Salt and digest are stored separately and always replaced together
type PasswordHasher interface {
	// NewSalt returns a fresh random salt, never reused across users or
	// across a credential rotation
	NewSalt() ([]byte, error)

	// Hash derives a fixed-length digest. Deterministic: same password and
	// salt always produce the same digest
	Hash(password string, salt []byte) []byte

	// Verify compares the candidate password against the stored digest in
	// constant time
	Verify(password string, salt []byte, storedHash []byte) bool
}

// PBKDF2Hasher is the default key-stretching hasher
type PBKDF2Hasher struct{}

var DefaultHasher PasswordHasher = PBKDF2Hasher{}

func (PBKDF2Hasher) NewSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("reading random salt: %w", err)
	}
	return salt, nil
}

func (h PBKDF2Hasher) Hash(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, hashIterations, hashKeyLength, sha1.New)
}

func (h PBKDF2Hasher) Verify(password string, salt []byte, storedHash []byte) bool {
	digest := h.Hash(password, salt)
	return subtle.ConstantTimeCompare(digest, storedHash) == 1
}

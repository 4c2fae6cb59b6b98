package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/avissapr/reporthub/internal/security"
	"golang.org/x/crypto/argon2"
)

// PasswordHasher derives password digests with argon2id.
//
// Stored credentials are a hex salt plus a hex digest. Verification recomputes
// the digest from the candidate password and the stored salt.
//
// Security Notes:
//   - argon2id is memory-hard, so brute forcing a leaked digest is expensive
//   - Digests are compared in constant time
//   - The salt is never rotated on successful login
type PasswordHasher struct {
	time     uint32
	memory   uint32
	threads  uint8
	keyLen   uint32
	saltSize int
}

// NewPasswordHasher creates a hasher with the argon2 parameters from cfg.
//
// Example:
//
//	hasher := services.NewPasswordHasher(security.DefaultSecurityConfig())
//	hash, salt, err := hasher.NewCredential("s3cret-pass")
func NewPasswordHasher(cfg *security.SecurityConfig) *PasswordHasher {
	return &PasswordHasher{
		time:     cfg.Argon2Time,
		memory:   cfg.Argon2Memory,
		threads:  cfg.Argon2Threads,
		keyLen:   cfg.Argon2KeyLen,
		saltSize: cfg.SaltBytes,
	}
}

// Hash returns the hex argon2id digest of password under salt.
func (h *PasswordHasher) Hash(password, salt string) string {
	key := argon2.IDKey([]byte(password), []byte(salt), h.time, h.memory, h.threads, h.keyLen)
	return hex.EncodeToString(key)
}

// NewSalt returns a fresh random salt, hex encoded.
func (h *PasswordHasher) NewSalt() (string, error) {
	size := h.saltSize
	if size < 16 {
		size = 16
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewCredential creates a salt and the matching digest for password.
func (h *PasswordHasher) NewCredential(password string) (hash, salt string, err error) {
	salt, err = h.NewSalt()
	if err != nil {
		return "", "", err
	}
	return h.Hash(password, salt), salt, nil
}

// Verify reports whether password matches the stored digest. An empty stored
// digest never matches.
func (h *PasswordHasher) Verify(password, salt, digest string) bool {
	if digest == "" {
		return false
	}
	computed := h.Hash(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

package webutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is the one-way function applied to passwords at signup
// and login. Implementations must never expose the plaintext.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(digest, password string) bool
}

// HMACHasher produces a hex-encoded HMAC-SHA256 digest of the password
// keyed by a server-side secret. Digests are deterministic, so login
// compares by recomputing.
type HMACHasher struct {
	secret []byte
}

func NewHMACHasher(secret string) *HMACHasher {
	return &HMACHasher{secret: []byte(secret)}
}

func (h *HMACHasher) Hash(password string) (string, error) {
	if len(h.secret) == 0 {
		return "", errors.New("hashing secret is not configured")
	}
	mac := hmac.New(sha256.New, h.secret)
	if _, err := mac.Write([]byte(password)); err != nil {
		return "", fmt.Errorf("failed to write data to hasher: %w", err)
	}
	// Sum returns the digest as a byte slice. Pass nil to allocate a new slice.
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func (h *HMACHasher) Compare(digest, password string) bool {
	computed, err := h.Hash(password)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(computed), []byte(digest))
}

// BcryptHasher hashes with bcrypt. Digests are salted and
// non-deterministic; Compare delegates to the bcrypt verifier.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

func (h *BcryptHasher) Compare(digest, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

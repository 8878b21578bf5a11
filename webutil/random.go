package webutil

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet for generated identifiers. Lowercase alphanumerics keep ids
// filename-safe and case-insensitive-filesystem-safe.
const randomAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateRandomString returns a random string of the given length drawn
// uniformly from the alphabet, using a cryptographic source.
func GenerateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid random string length %d", length)
	}
	max := big.NewInt(int64(len(randomAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		out[i] = randomAlphabet[n.Int64()]
	}
	return string(out), nil
}

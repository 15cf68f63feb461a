package quiz

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultJoinCodeLength is used when no length is configured.
const DefaultJoinCodeLength = 6

// NewJoinCode returns a random uppercase alphanumeric code.
func NewJoinCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultJoinCodeLength
	}
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(joinCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeJoinCode upper-cases and trims a code typed by a participant.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidJoinCode reports whether code only uses the join code alphabet.
func ValidJoinCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(joinCodeAlphabet, r) {
			return false
		}
	}
	return true
}

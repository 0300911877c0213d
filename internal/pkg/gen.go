package pkg

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	MinCodeLength = 4
	MaxCodeLength = 6
)

var ErrCodeLength = errors.New("game code length must be between 4 and 6")

// GenerateGameCode - generates a random join code of the given length.
func GenerateGameCode(length int) (string, error) {
	if length < MinCodeLength || length > MaxCodeLength {
		return "", fmt.Errorf("%w: %d", ErrCodeLength, length)
	}

	alphabetSize := big.NewInt(int64(len(codeAlphabet)))

	var code strings.Builder
	code.Grow(length)

	for range length {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to read random number: %w", err)
		}

		code.WriteByte(codeAlphabet[n.Int64()])
	}

	return code.String(), nil
}

// NormalizeCode - codes are compared case-insensitively, so they are stored upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code is a well-formed, already normalized join code.
func ValidCode(code string) bool {
	if len(code) < MinCodeLength || len(code) > MaxCodeLength {
		return false
	}

	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			return false
		}
	}

	return true
}

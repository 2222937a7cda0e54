package app

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// JoinCodeLength is the number of characters in a live session join code.
	JoinCodeLength = 6
	// maxJoinCodeAttempts bounds collision retries when reserving a code.
	maxJoinCodeAttempts = 16
)

// NewJoinCode draws JoinCodeLength characters uniformly from [A-Z0-9].
func NewJoinCode() (string, error) {
	var b strings.Builder
	b.Grow(JoinCodeLength)
	alphabetSize := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := 0; i < JoinCodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(joinCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeJoinCode makes user-entered codes comparable.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidJoinCode reports whether code has the join code shape.
func ValidJoinCode(code string) bool {
	if len(code) != JoinCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(joinCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

package utils

import (
	"math/rand"
	"strings"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRoomCode returns a 6-character room code. Uniqueness is the
// caller's problem; collisions are retried at the registry level.
func GenerateRoomCode() string {
	var b strings.Builder
	b.Grow(6)
	for i := 0; i < 6; i++ {
		b.WriteByte(roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))])
	}
	return b.String()
}

// SanitizeUsername strips everything but alphanumerics, underscore and dash.
func SanitizeUsername(username string) string {
	var b strings.Builder
	for _, c := range strings.TrimSpace(username) {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// ValidUsername reports whether a sanitized username is within bounds.
func ValidUsername(username string) bool {
	return len(username) >= 2 && len(username) <= 30
}

package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeText is the form of a message that deduplication works on:
// surrounding whitespace and letter case are not significant.
func NormalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func Fingerprint(text string) string {
	hash := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(hash[:])
}

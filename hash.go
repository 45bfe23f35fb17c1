package wotrtl

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashText computes the SHA-256 hash of the trimmed text.
func HashText(text string) string {
	trimmed := strings.TrimSpace(text)
	hash := sha256.Sum256([]byte(trimmed))
	return hex.EncodeToString(hash[:])
}

// CacheKey generates a cache key from a text hash and model name.
func CacheKey(hash, model string) string {
	return hash + ":" + model
}

// RequestCacheKey generates the cache key of a completion request. Two
// requests share a key when model, system and user messages are equal;
// the custom id does not take part.
func RequestCacheKey(req CompletionRequest) string {
	return CacheKey(HashText(req.System+"\x00"+req.User), req.Model)
}

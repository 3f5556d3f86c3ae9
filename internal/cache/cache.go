package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// KeyParts identifies one completion request. Every setting that changes
// what the provider returns belongs here.
type KeyParts struct {
	Provider  string
	Model     string
	MaxTokens int // resolved limit, 0 = uncapped
	System    string
	Prompt    string
}

// CompletionKey generates the cache key for one completion request
func CompletionKey(p KeyParts) string {
	h := sha256.New()
	for _, part := range []string{p.Provider, p.Model, strconv.Itoa(p.MaxTokens), p.System, p.Prompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "newsplaces-v2-" + hex.EncodeToString(h.Sum(nil))
}

package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Completion is one stored provider answer together with the request
// settings that produced it
type Completion struct {
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	MaxTokens     int       `json:"max_tokens"`
	Text          string    `json:"text"`
	ResponseModel string    `json:"response_model,omitempty"` // as reported by the provider
	TokensUsed    int       `json:"tokens_used"`
	StoredAt      time.Time `json:"stored_at"`
}

// matches reports whether c was produced under the settings in p
func (c *Completion) matches(p KeyParts) bool {
	return c.Provider == p.Provider && c.Model == p.Model && c.MaxTokens == p.MaxTokens
}

// CompletionStore keeps completions in a Cache under CompletionKey
type CompletionStore struct {
	cache Cache
}

// NewCompletionStore wraps c
func NewCompletionStore(c Cache) *CompletionStore {
	return &CompletionStore{cache: c}
}

// Get returns the completion stored for p. Entries that fail to decode or
// were stored under different settings are misses.
func (s *CompletionStore) Get(p KeyParts) (*Completion, bool) {
	data, ok := s.cache.Get(CompletionKey(p))
	if !ok {
		return nil, false
	}
	var c Completion
	if err := json.Unmarshal(data, &c); err != nil || !c.matches(p) {
		return nil, false
	}
	return &c, true
}

// Put stores c for p with the cache's default TTL
func (s *CompletionStore) Put(p KeyParts, c Completion) error {
	c.Provider, c.Model, c.MaxTokens = p.Provider, p.Model, p.MaxTokens
	if c.StoredAt.IsZero() {
		c.StoredAt = time.Now().UTC()
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal completion: %w", err)
	}
	return s.cache.Set(CompletionKey(p), data, 0)
}

// Forget drops the completion stored for p
func (s *CompletionStore) Forget(p KeyParts) error {
	return s.cache.Delete(CompletionKey(p))
}

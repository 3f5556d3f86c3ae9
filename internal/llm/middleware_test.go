package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/newsplaces/internal/cache"
	"github.com/ppiankov/newsplaces/internal/worker"
)

// MockProvider implements the Provider interface for testing
type MockProvider struct {
	name      string
	available bool
	text      string
	truncated bool
	err       error
	calls     int
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &CompletionResponse{Text: m.text, Model: "mock-model", Truncated: m.truncated}, nil
}

func (m *MockProvider) IsAvailable(ctx context.Context) bool {
	return m.available
}

func TestCached_HitSkipsProvider(t *testing.T) {
	mock := &MockProvider{name: "mock", text: "[]"}
	c := NewCached(mock, cache.NewMemoryCache(time.Minute, time.Minute), Config{Model: "m"}, nil)

	first, err := c.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("first Complete failed: %v", err)
	}
	if first.Cached {
		t.Error("first response should not be marked cached")
	}

	second, err := c.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("second Complete failed: %v", err)
	}
	if !second.Cached || second.Text != "[]" {
		t.Errorf("expected cached copy, got %+v", second)
	}
	if mock.calls != 1 {
		t.Errorf("provider called %d times, want 1", mock.calls)
	}
}

func TestCached_DistinctPromptsMiss(t *testing.T) {
	mock := &MockProvider{name: "mock", text: "[]"}
	c := NewCached(mock, cache.NewMemoryCache(time.Minute, time.Minute), Config{Model: "m"}, nil)

	_, _ = c.Complete(context.Background(), CompletionRequest{Prompt: "a"})
	_, _ = c.Complete(context.Background(), CompletionRequest{Prompt: "b"})
	_, _ = c.Complete(context.Background(), CompletionRequest{Prompt: "a", Model: "other"})

	if mock.calls != 3 {
		t.Errorf("provider called %d times, want 3", mock.calls)
	}
}

func TestCached_ErrorsNotStored(t *testing.T) {
	mock := &MockProvider{name: "mock", err: errors.New("down")}
	c := NewCached(mock, cache.NewMemoryCache(time.Minute, time.Minute), Config{Model: "m"}, nil)

	if _, err := c.Complete(context.Background(), CompletionRequest{Prompt: "p"}); err == nil {
		t.Fatal("expected provider error")
	}

	mock.err = nil
	mock.text = "[]"
	resp, err := c.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Cached {
		t.Error("a failed call must not leave a cache entry")
	}
	if mock.calls != 2 {
		t.Errorf("provider called %d times, want 2", mock.calls)
	}
}

func TestCached_TokenLimitIsPartOfKey(t *testing.T) {
	mock := &MockProvider{name: "mock", text: `[{"place_label":"Dock`}
	c := NewCached(mock, cache.NewMemoryCache(time.Minute, time.Minute), Config{Model: "m"}, nil)

	_, _ = c.Complete(context.Background(), CompletionRequest{Prompt: "p", MaxTokens: 10})

	mock.text = `[{"place_label":"Dock Road","activity":"fire"}]`
	resp, err := c.Complete(context.Background(), CompletionRequest{Prompt: "p", MaxTokens: 4000})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Cached || mock.calls != 2 {
		t.Errorf("raising the token limit must reach the provider (cached=%v calls=%d)", resp.Cached, mock.calls)
	}
	if resp.Text != mock.text {
		t.Errorf("unexpected text %q", resp.Text)
	}
}

func TestCached_ConfiguredLimitIsPartOfKey(t *testing.T) {
	store := cache.NewMemoryCache(time.Minute, time.Minute)
	mock := &MockProvider{name: "mock", text: "[]"}

	_, _ = NewCached(mock, store, Config{Model: "m", MaxTokens: 10}, nil).
		Complete(context.Background(), CompletionRequest{Prompt: "p"})
	resp, _ := NewCached(mock, store, Config{Model: "m", MaxTokens: 4000}, nil).
		Complete(context.Background(), CompletionRequest{Prompt: "p"})

	if resp.Cached || mock.calls != 2 {
		t.Errorf("a different configured limit must miss (cached=%v calls=%d)", resp.Cached, mock.calls)
	}
}

func TestCached_TruncatedNotStored(t *testing.T) {
	mock := &MockProvider{name: "mock", text: `[{"place_label":"Do`, truncated: true}
	c := NewCached(mock, cache.NewMemoryCache(time.Minute, time.Minute), Config{Model: "m"}, nil)

	_, _ = c.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	resp, _ := c.Complete(context.Background(), CompletionRequest{Prompt: "p"})

	if resp.Cached || mock.calls != 2 {
		t.Errorf("truncated response must not be replayed (cached=%v calls=%d)", resp.Cached, mock.calls)
	}
}

func TestCached_Forget(t *testing.T) {
	mock := &MockProvider{name: "mock", text: "not json"}
	c := NewCached(mock, cache.NewMemoryCache(time.Minute, time.Minute), Config{Model: "m"}, nil)
	req := CompletionRequest{Prompt: "p"}

	_, _ = c.Complete(context.Background(), req)
	c.Forget(req)
	resp, _ := c.Complete(context.Background(), req)

	if resp.Cached || mock.calls != 2 {
		t.Errorf("forgotten entry must miss (cached=%v calls=%d)", resp.Cached, mock.calls)
	}
}

func TestThrottled_RespectsContext(t *testing.T) {
	mock := &MockProvider{name: "mock", text: "[]"}
	limiter := worker.NewLimiter(0.001, 1)
	th := NewThrottled(mock, limiter)

	if _, err := th.Complete(context.Background(), CompletionRequest{Prompt: "p"}); err != nil {
		t.Fatalf("first Complete failed: %v", err)
	}

	// bucket is empty now; a short deadline must abort before the provider runs
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := th.Complete(ctx, CompletionRequest{Prompt: "p"}); err == nil {
		t.Fatal("expected limiter wait to fail")
	}
	if mock.calls != 1 {
		t.Errorf("provider called %d times, want 1", mock.calls)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantName string
		wantErr  bool
	}{
		{"openai", Config{Provider: "openai", APIKey: "k"}, "openai", false},
		{"claude alias", Config{Provider: "Claude", APIKey: "k"}, "anthropic", false},
		{"ollama", Config{Provider: "ollama", Model: "llama3.1"}, "ollama", false},
		{"empty", Config{}, "", true},
		{"unknown", Config{Provider: "bard"}, "", true},
		{"openai without key", Config{Provider: "openai"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %s, want %s", p.Name(), tt.wantName)
			}
		})
	}
}

func TestBuildExtractionPrompt_EmbedsText(t *testing.T) {
	prompt := BuildExtractionPrompt("Parade on Elm Street")
	if !strings.Contains(prompt, `"""Parade on Elm Street"""`) {
		t.Errorf("prompt does not embed text: %s", prompt)
	}
	if !strings.Contains(prompt, "place_label") || !strings.Contains(prompt, "activity") {
		t.Error("prompt does not name the output keys")
	}
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"openai", "*llm.openAIProvider"},
		{"groq", "*llm.groqProvider"},
		{"openrouter", "*llm.openRouterProvider"},
		{"ollama", "*llm.ollamaProvider"},
		{"custom", "*llm.openAICompatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := Config{
				Provider: tt.provider,
				Model:    "test-model",
			}
			p, err := NewProvider(cfg)
			if err != nil {
				t.Fatalf("NewProvider(%q) returned error: %v", tt.provider, err)
			}
			gotType := fmt.Sprintf("%T", p)
			if gotType != tt.wantType {
				t.Errorf("NewProvider(%q) type = %s, want %s", tt.provider, gotType, tt.wantType)
			}
		})
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "doesnotexist", Model: "test-model"})
	if err == nil {
		t.Fatal("expected error for unknown provider, got nil")
	}
	want := "unknown llm provider: doesnotexist"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestNewProviderEmpty(t *testing.T) {
	_, err := NewProvider(Config{Model: "test-model"})
	if err == nil {
		t.Fatal("expected error for empty provider, got nil")
	}
	want := "llm provider not specified"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestChatAgainstFakeServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer test-key", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q, want test-model", req.Model)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "test-model",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "yes"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 1, "total_tokens": 11},
		})
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", Model: "test-model", BaseURL: srv.URL, APIKey: "test-key"})
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "is this a database question?"}},
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if resp.Content != "yes" {
		t.Errorf("content = %q, want %q", resp.Content, "yes")
	}
	if resp.TotalTokens != 11 {
		t.Errorf("total tokens = %d, want 11", resp.TotalTokens)
	}
}

func TestEmbedOrdering(t *testing.T) {
	// The server returns data out of order; embed must restore input order.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"index": 1, "embedding": []float32{0.4, 0.5}},
				{"index": 0, "embedding": []float32{0.1, 0.2}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", Model: "embed-model", BaseURL: srv.URL})
	embs, err := p.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(embs) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(embs))
	}
	if embs[0][0] != 0.1 || embs[1][0] != 0.4 {
		t.Errorf("embeddings not reordered by index: %v", embs)
	}
}

func TestDoPostNonRetryableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", Model: "m", BaseURL: srv.URL})
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "q"}}})
	if err == nil {
		t.Fatal("expected error for 400 response, got nil")
	}
}

// TestDefaultBaseURLs verifies that when BaseURL is empty in the config,
// each provider constructor sets the correct default.
func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		provider string
		wantURL  string
	}{
		{"openai", "https://api.openai.com"},
		{"groq", "https://api.groq.com/openai"},
		{"openrouter", "https://openrouter.ai/api"},
		{"ollama", "http://localhost:11434"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "test-model"})
			if err != nil {
				t.Fatalf("NewProvider(%q): %v", tt.provider, err)
			}
			var got string
			switch v := p.(type) {
			case *openAIProvider:
				got = v.base.cfg.BaseURL
			case *groqProvider:
				got = v.base.cfg.BaseURL
			case *openRouterProvider:
				got = v.base.cfg.BaseURL
			case *ollamaProvider:
				got = v.base.cfg.BaseURL
			}
			if got != tt.wantURL {
				t.Errorf("base URL = %q, want %q", got, tt.wantURL)
			}
		})
	}
}

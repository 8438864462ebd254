package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
)

func openAIServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "Cal. Civ. Code § 1714") {
			t.Errorf("prompt does not carry the citation: %+v", req.Messages)
		}

		resp := openai.ChatCompletionResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
			},
			Usage: openai.Usage{TotalTokens: 100},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func researchRequest() ResearchRequest {
	return ResearchRequest{
		Citation:       "Cal. Civ. Code § 1714",
		AllowedDomains: DefaultConfig().AllowedDomains,
	}
}

func TestOpenAIProvider_Research_Success(t *testing.T) {
	server := openAIServer(t, "Found it at https://law.justia.com/codes/california/civ/1714/.\n"+
		`{"status": "verified", "citation": "Cal. Civ. Code § 1714", "confidence": 0.93}`)
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Research(context.Background(), researchRequest())
	if err != nil {
		t.Fatalf("Research failed: %v", err)
	}

	if resp.Verdict.Status != "verified" {
		t.Errorf("Unexpected status: %s", resp.Verdict.Status)
	}
	if resp.Verdict.Citation != "Cal. Civ. Code § 1714" {
		t.Errorf("Unexpected citation: %s", resp.Verdict.Citation)
	}
	if resp.Verdict.Confidence == nil || *resp.Verdict.Confidence != 0.93 {
		t.Errorf("Unexpected confidence: %v", resp.Verdict.Confidence)
	}
	if len(resp.CitedURLs) != 1 {
		t.Errorf("Unexpected cited URLs: %v", resp.CitedURLs)
	}
	if resp.TokensUsed != 100 {
		t.Errorf("Unexpected tokens: %d", resp.TokensUsed)
	}
}

func TestOpenAIProvider_Research_DisallowedSource(t *testing.T) {
	server := openAIServer(t, "See https://random-blog.example.com/post "+
		`{"status": "verified", "citation": "Cal. Civ. Code § 1714", "confidence": 0.9}`)
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.Research(context.Background(), researchRequest())
	if !errors.Is(err, ErrDisallowedSource) {
		t.Fatalf("Expected ErrDisallowedSource, got %v", err)
	}
}

func TestOpenAIProvider_Research_InvalidVerdict(t *testing.T) {
	server := openAIServer(t, "I could not determine this.")
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.Research(context.Background(), researchRequest())
	if !errors.Is(err, ErrInvalidVerdict) {
		t.Fatalf("Expected ErrInvalidVerdict, got %v", err)
	}
}

func TestOpenAIProvider_Research_APIErrors(t *testing.T) {
	tests := []struct {
		desc   string
		status int
		body   string
	}{
		{desc: "server error", status: http.StatusInternalServerError, body: `{"error": {"message": "Internal Server Error", "type": "server_error"}}`},
		{desc: "rate limit", status: http.StatusTooManyRequests, body: `{"error": {"message": "Rate limit exceeded", "type": "rate_limit_error"}}`},
		{desc: "malformed json", status: http.StatusOK, body: `{malformed json`},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
			if err != nil {
				t.Fatalf("Failed to create provider: %v", err)
			}

			if _, err := provider.Research(context.Background(), researchRequest()); err == nil {
				t.Fatal("Expected error, got nil")
			}
		})
	}
}

func TestOpenAIProvider_Research_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := provider.Research(ctx, researchRequest()); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestOpenAIProvider_NoKey(t *testing.T) {
	_, err := NewOpenAIProvider(Config{})
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Expected ErrNoCredentials, got %v", err)
	}
}

func TestOpenAIProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			_, _ = w.Write([]byte(`{"data": [{"id": "gpt-4o-mini"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	provider, err = NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: failing.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}
}

package llm

import (
	"errors"
	"strings"
	"testing"

	"github.com/aonanj/citation-verifier/internal/model"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		desc           string
		answer         string
		wantErr        bool
		wantStatus     string
		wantCitation   string
		wantConfidence float64
		noConfidence   bool
	}{
		{
			desc:           "plain object",
			answer:         `{"status": "verified", "citation": "Tex. Penal Code § 22.01", "confidence": 0.9}`,
			wantStatus:     "verified",
			wantCitation:   "Tex. Penal Code § 22.01",
			wantConfidence: 0.9,
		},
		{
			desc:           "wrapped in prose and fences",
			answer:         "Here you go:\n```json\n{\"status\": \"Warning\", \"citation\": \"x\", \"confidence\": 0.6}\n```",
			wantStatus:     "warning",
			wantCitation:   "x",
			wantConfidence: 0.6,
		},
		{
			desc:         "null markers",
			answer:       `{"status": "no_match", "citation": "null", "confidence": "none"}`,
			wantStatus:   "no_match",
			noConfidence: true,
		},
		{desc: "no object", answer: "no idea", wantErr: true},
		{desc: "broken json", answer: `{"status": }`, wantErr: true},
		{desc: "empty object", answer: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			v, err := ParseVerdict(tt.answer)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidVerdict) {
					t.Fatalf("expected ErrInvalidVerdict, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Status != tt.wantStatus {
				t.Errorf("status: expected %q, got %q", tt.wantStatus, v.Status)
			}
			if v.Citation != tt.wantCitation {
				t.Errorf("citation: expected %q, got %q", tt.wantCitation, v.Citation)
			}
			if tt.noConfidence {
				if v.Confidence != nil {
					t.Errorf("expected no confidence, got %v", *v.Confidence)
				}
				return
			}
			if v.Confidence == nil || *v.Confidence != tt.wantConfidence {
				t.Errorf("confidence: expected %v, got %v", tt.wantConfidence, v.Confidence)
			}
		})
	}
}

func TestCheckSources(t *testing.T) {
	allowed := []string{"law.justia.com", "law.cornell.edu"}

	tests := []struct {
		desc    string
		cited   []string
		wantErr bool
	}{
		{desc: "none cited", cited: nil},
		{desc: "allowed host", cited: []string{"https://law.cornell.edu/uscode/text/42/1983"}},
		{desc: "allowed subdomain", cited: []string{"https://www.law.cornell.edu/x"}},
		{desc: "lookalike host", cited: []string{"https://evil-law.cornell.edu.example.com/x"}, wantErr: true},
		{desc: "other host", cited: []string{"https://law.justia.com/a", "https://example.com"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			err := checkSources(tt.cited, allowed)
			if tt.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Fla. Stat. § 768.28", DefaultConfig().AllowedDomains)
	for _, want := range []string{"Fla. Stat. § 768.28", "law.justia.com", "law.cornell.edu", "codes.findlaw.com", `"confidence"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		desc     string
		config   Config
		wantNil  bool
		wantName string
		wantErr  error
	}{
		{desc: "disabled", config: Config{}, wantNil: true},
		{desc: "openai without key", config: Config{Provider: "openai"}, wantErr: ErrNoCredentials},
		{desc: "claude alias", config: Config{Provider: "Claude", APIKey: "k"}, wantName: "anthropic"},
		{desc: "ollama", config: Config{Provider: "ollama"}, wantName: "ollama"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if p != nil {
					t.Fatalf("expected nil provider, got %s", p.Name())
				}
				return
			}
			if p.Name() != tt.wantName {
				t.Errorf("expected %s, got %s", tt.wantName, p.Name())
			}
		})
	}

	if _, err := NewProvider(Config{Provider: "gemini"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(model.LLMConfig{Provider: "openai", APIKey: "k", Timeout: 10}, model.HTTPConfig{HTTPSProxy: "http://proxy:8080"})
	if cfg.Provider != "openai" || cfg.APIKey != "k" || cfg.Timeout != 10 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if len(cfg.AllowedDomains) != 3 {
		t.Errorf("expected default allowed domains, got %v", cfg.AllowedDomains)
	}
	if cfg.HTTPSProxy != "http://proxy:8080" {
		t.Errorf("proxy not carried over: %+v", cfg)
	}
}

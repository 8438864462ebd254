// Package llm talks to language-model providers that research state-law
// citations. Answers may only rely on an allow-list of public law sites.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrNoCredentials means the provider needs an API key that is not set
	ErrNoCredentials = errors.New("llm credentials not configured")

	// ErrInvalidVerdict means the answer carried no usable JSON verdict
	ErrInvalidVerdict = errors.New("invalid research verdict")

	// ErrDisallowedSource means the answer cited a site outside the allow-list
	ErrDisallowedSource = errors.New("answer cited a disallowed source")
)

// Provider researches one citation
type Provider interface {
	// Name returns the provider name
	Name() string

	// Research asks the model whether a citation exists and is in effect
	Research(ctx context.Context, req ResearchRequest) (*ResearchResponse, error)

	// IsAvailable checks if the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// ResearchRequest is the input for one state-law lookup
type ResearchRequest struct {
	// Citation is the Bluebook form to verify, e.g. "Cal. Civ. Code § 1714 (2020)"
	Citation string

	// AllowedDomains is the STRICT list of sites the answer may rely on
	AllowedDomains []string

	// Prompt overrides the default prompt when set
	Prompt string

	Model     string
	MaxTokens int
}

// ResearchResponse is the provider's parsed answer
type ResearchResponse struct {
	Answer     string
	Verdict    Verdict
	CitedURLs  []string
	Model      string
	TokensUsed int
}

// Verdict is the JSON object the model must answer with
type Verdict struct {
	Status     string
	Citation   string
	Confidence *float64
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	Model   string
	APIKey  string
	BaseURL string

	// Timeout for API requests, in seconds
	Timeout int

	MaxTokens      int
	AllowedDomains []string

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns defaults; the provider is disabled
func DefaultConfig() Config {
	return Config{
		Timeout:   60,
		MaxTokens: 400,
		AllowedDomains: []string{
			"law.justia.com",
			"law.cornell.edu",
			"codes.findlaw.com",
		},
	}
}

const systemPrompt = "You are an expert legal researcher verifying state statutes, codes, and regulations. You answer only with a JSON object."

// BuildPrompt constructs the research prompt for a citation
func BuildPrompt(citation string, allowedDomains []string) string {
	return fmt.Sprintf(`Verify that the following state-law citation exists and is currently in effect.

RULES:
1. Rely ONLY on these sites:
%s
2. Make no assumptions. If you cannot locate the provision, say so with a low confidence.
3. Different states format their codes differently; there is no single correct format.
4. Answer with ONLY this JSON object and nothing else:
{
  "status": "verified" | "warning" | "no_match" | "error",
  "citation": the closest standardized Bluebook citation, or null,
  "confidence": a number between 0.0 and 1.0
}
Use "verified" for confidence >= 0.85, "warning" for 0.5 to 0.85, and "no_match" below 0.5.

Citation to verify: %s`, joinDomains(allowedDomains), citation)
}

func joinDomains(domains []string) string {
	if len(domains) == 0 {
		return "(no sites allowed)"
	}
	var b strings.Builder
	for _, d := range domains {
		b.WriteString("- ")
		b.WriteString(d)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ParseVerdict extracts the JSON verdict from an answer, taking the text
// from the first "{" to the last "}". Values "null", "none" and "" count
// as missing.
func ParseVerdict(answer string) (Verdict, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end < start {
		return Verdict{}, fmt.Errorf("%w: no JSON object in answer", ErrInvalidVerdict)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(answer[start:end+1]), &raw); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrInvalidVerdict, err)
	}

	v := Verdict{
		Status:   strings.ToLower(stringValue(raw["status"])),
		Citation: stringValue(raw["citation"]),
	}
	if c, ok := floatValue(raw["confidence"]); ok {
		v.Confidence = &c
	}
	if v.Status == "" && v.Confidence == nil {
		return Verdict{}, fmt.Errorf("%w: neither status nor confidence present", ErrInvalidVerdict)
	}
	return v, nil
}

func stringValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "none":
		return ""
	}
	return s
}

func floatValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// checkSources fails if any cited URL is outside the allowed domains
func checkSources(cited, allowed []string) error {
	for _, raw := range cited {
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrDisallowedSource, raw)
		}
		if !allowedHost(parsed.Hostname(), allowed) {
			return fmt.Errorf("%w: %s", ErrDisallowedSource, raw)
		}
	}
	return nil
}

func allowedHost(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, d := range allowed {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

var urlPattern = regexp.MustCompile(`https?://[^\s)"]+`)

// extractURLs returns the distinct URLs in text
func extractURLs(text string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}

// finish turns a raw answer into a checked response
func finish(answer string, req ResearchRequest, model string, tokens int) (*ResearchResponse, error) {
	answer = strings.TrimSpace(answer)
	cited := extractURLs(answer)
	if err := checkSources(cited, req.AllowedDomains); err != nil {
		return nil, err
	}

	verdict, err := ParseVerdict(answer)
	if err != nil {
		return nil, err
	}

	return &ResearchResponse{
		Answer:     answer,
		Verdict:    verdict,
		CitedURLs:  cited,
		Model:      model,
		TokensUsed: tokens,
	}, nil
}

func promptFor(req ResearchRequest) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return BuildPrompt(req.Citation, req.AllowedDomains)
}

func maxTokensFor(req ResearchRequest, config Config) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if config.MaxTokens > 0 {
		return config.MaxTokens
	}
	return 400
}

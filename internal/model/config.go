package model

import "time"

// Config is the complete runtime configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Segment      SegmentConfig      `yaml:"segment" mapstructure:"segment"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Providers    ProvidersConfig    `yaml:"providers" mapstructure:"providers"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" mapstructure:"telemetry"`
}

// HTTPConfig controls outbound requests
type HTTPConfig struct {
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`                   // Per-request timeout
	CompileTimeout time.Duration `yaml:"compile_timeout" mapstructure:"compile_timeout"`   // Deadline for one document
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`
	RespectRobots  bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy      string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy     string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy        string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// SegmentConfig tunes string-citation detection
type SegmentConfig struct {
	MinSemicolons int `yaml:"min_semicolons" mapstructure:"min_semicolons"`
	MinSpanLength int `yaml:"min_span_length" mapstructure:"min_span_length"`
}

// ConcurrencyConfig sizes worker pools
type ConcurrencyConfig struct {
	StateLawWorkers int `yaml:"state_law_workers" mapstructure:"state_law_workers"`
	Documents       int `yaml:"documents" mapstructure:"documents"` // Batch mode fan-out
}

// RateLimitingConfig sets per-host request rates
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ProviderConfig holds one authority's endpoint and credential
type ProviderConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// ProvidersConfig holds every authority integration
type ProvidersConfig struct {
	CourtListener     ProviderConfig `yaml:"courtlistener" mapstructure:"courtlistener"`
	GovInfo           ProviderConfig `yaml:"govinfo" mapstructure:"govinfo"`
	OpenAlex          ProviderConfig `yaml:"openalex" mapstructure:"openalex"`
	OpenAlexMailto    string         `yaml:"openalex_mailto,omitempty" mapstructure:"openalex_mailto"`
	SemanticScholar   ProviderConfig `yaml:"semantic_scholar" mapstructure:"semantic_scholar"`
	LibraryOfCongress ProviderConfig `yaml:"library_of_congress" mapstructure:"library_of_congress"`
}

// LLMConfig configures the state-law research assistant
type LLMConfig struct {
	Provider       string   `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model          string   `yaml:"model" mapstructure:"model"`
	APIKey         string   `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string   `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int      `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens      int      `yaml:"max_tokens" mapstructure:"max_tokens"`
	AllowedDomains []string `yaml:"allowed_domains" mapstructure:"allowed_domains"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
	Format   string `yaml:"format" mapstructure:"format"` // json, md
	Markdown bool   `yaml:"markdown" mapstructure:"markdown"`
}

// TelemetryConfig says where a run's metrics and spans go. Empty paths
// disable them.
type TelemetryConfig struct {
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"` // Prometheus text format, written on exit
	TraceFile   string `yaml:"trace_file" mapstructure:"trace_file"`     // JSON spans, "-" for stderr
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:        20 * time.Second,
			CompileTimeout: 5 * time.Minute,
			UserAgent:      "citeverify/0.1 (+https://github.com/aonanj/citation-verifier)",
			MaxBodyBytes:   10_000_000,
			MaxRetries:     3,
			RespectRobots:  true,
		},
		Segment: SegmentConfig{
			MinSemicolons: 1,
			MinSpanLength: 20,
		},
		Concurrency: ConcurrencyConfig{
			StateLawWorkers: 4,
			Documents:       4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Providers: ProvidersConfig{
			CourtListener:     ProviderConfig{BaseURL: "https://www.courtlistener.com"},
			GovInfo:           ProviderConfig{BaseURL: "https://www.govinfo.gov"},
			OpenAlex:          ProviderConfig{BaseURL: "https://api.openalex.org"},
			SemanticScholar:   ProviderConfig{BaseURL: "https://api.semanticscholar.org"},
			LibraryOfCongress: ProviderConfig{BaseURL: "https://www.loc.gov"},
		},
		LLM: LLMConfig{
			Provider:  "",
			Timeout:   60,
			MaxTokens: 400,
			AllowedDomains: []string{
				"law.justia.com",
				"law.cornell.edu",
				"codes.findlaw.com",
			},
		},
		Output: OutputConfig{
			Format: "json",
		},
	}
}

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/telemetry"
)

// Version is set at build time
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "citeverify",
	Short: "Citation verifier for legal documents",
	Long: `citeverify finds every legal citation in a document, groups short
forms (id., supra, "347 U.S. at 495") with the authority they refer to,
and checks each authority against public sources.

Cases are checked against CourtListener, federal law against GovInfo,
journal articles against OpenAlex and Semantic Scholar, and state statutes
through an optional LLM research assistant restricted to official code
sites.

citeverify reports what it could and could not confirm. It does not
judge whether a citation supports the proposition it is cited for.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("citeverify v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.citeverify/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.PersistentFlags().String("metrics-file", "", "write Prometheus metrics to this file when the run ends")
	rootCmd.PersistentFlags().String("trace-file", "", `write trace spans as JSON to this file ("-" for stderr)`)

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("telemetry.metrics_file", rootCmd.PersistentFlags().Lookup("metrics-file"))
	_ = viper.BindPFlag("telemetry.trace_file", rootCmd.PersistentFlags().Lookup("trace-file"))

	rootCmd.AddCommand(versionCmd)
}

// credentialEnv maps config keys to the environment variables their
// services conventionally use
var credentialEnv = map[string][]string{
	"providers.courtlistener.api_key":    {"COURTLISTENER_API_TOKEN", "COURTLISTENER_API_KEY"},
	"providers.govinfo.api_key":          {"GOVINFO_API_KEY"},
	"providers.semantic_scholar.api_key": {"SEMANTIC_SCHOLAR_API_KEY"},
	"providers.openalex_mailto":          {"OPENALEX_MAILTO"},
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// Defaults go in first so every key is known to AutomaticEnv
	defaults, err := yaml.Marshal(model.DefaultConfig())
	if err == nil {
		viper.SetConfigType("yaml")
		_ = viper.ReadConfig(bytes.NewReader(defaults))
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".citeverify"))
		viper.SetConfigName("config")
	}

	// CITEVERIFY_HTTP_TIMEOUT overrides http.timeout, and so on
	viper.SetEnvPrefix("CITEVERIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, names := range credentialEnv {
		envKey := "CITEVERIFY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = viper.BindEnv(append([]string{key, envKey}, names...)...)
	}

	if err := viper.MergeInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig resolves the effective configuration from defaults, the
// config file, and the environment
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	fillLLMCredentials(cfg)
	return cfg, nil
}

// fillLLMCredentials picks up the provider's conventional key variable
// when no key is configured
func fillLLMCredentials(cfg *model.Config) {
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
}

// newLogger writes structured logs to stderr; --verbose enables debug
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// signalContext is cancelled on SIGINT or SIGTERM so in-flight lookups
// stop and partial work is discarded cleanly
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// startTelemetry installs tracing for the run. The returned func flushes
// spans and writes the metrics file.
func startTelemetry(cfg *model.Config, stderr io.Writer) (func(), error) {
	shutdown, err := telemetry.Setup(cfg.Telemetry, Version, prometheus.DefaultGatherer)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			fmt.Fprintf(stderr, "⚠ telemetry: %v\n", err)
		}
	}, nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/aonanj/citation-verifier/internal/llm"
	"github.com/aonanj/citation-verifier/internal/model"
)

var checkCredentials bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage citeverify configuration",
	Long: `Manage citeverify configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CITEVERIFY_*, plus COURTLISTENER_API_TOKEN,
   GOVINFO_API_KEY, SEMANTIC_SCHOLAR_API_KEY, OPENALEX_MAILTO,
   OPENAI_API_KEY, ANTHROPIC_API_KEY)
3. Config file (~/.citeverify/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration after defaults, the config file, and environment variables are merged. Credentials are masked.

With --check, also confirm that the configured research assistant answers
with its credentials.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
		}

		if err := writeConfig(cmd.OutOrStdout(), maskCredentials(cfg)); err != nil {
			return err
		}
		if !checkCredentials {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		return checkAssistant(ctx, cmd.ErrOrStderr(), cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.citeverify/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := filepath.Join(home, ".citeverify")
		configPath := filepath.Join(configDir, "config.yaml")

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'citeverify config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		f, err := os.OpenFile(configPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close config file: %w", closeErr)
			}
		}()

		if err := writeConfigTemplate(f); err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  citeverify config show\n")
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n")
		fmt.Printf("  $EDITOR %s\n\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configShowCmd.Flags().BoolVar(&checkCredentials, "check", false, "check that the research assistant accepts the configured credentials")
}

// checkAssistant reports whether the state-law research assistant is
// reachable with the configured credentials
func checkAssistant(ctx context.Context, w io.Writer, cfg *model.Config) error {
	assistant, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	if assistant == nil {
		fmt.Fprintf(w, "\nState law research: disabled (set llm.provider to enable)\n")
		return nil
	}

	if !assistant.IsAvailable(ctx) {
		return fmt.Errorf("llm provider %s is not available with the configured credentials", assistant.Name())
	}
	fmt.Fprintf(w, "\n✓ State law research: %s is available\n", assistant.Name())
	return nil
}

func writeConfig(w io.Writer, cfg *model.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	return enc.Close()
}

// writeConfigTemplate writes the defaults framed by usage comments
func writeConfigTemplate(w io.Writer) (err error) {
	printf := func(format string, a ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, format, a...)
	}

	printf("# citeverify configuration\n")
	printf("#\n")
	printf("# Configuration hierarchy (highest to lowest priority):\n")
	printf("#   1. CLI flags\n")
	printf("#   2. Environment variables (CITEVERIFY_*, e.g. CITEVERIFY_HTTP_TIMEOUT=30s)\n")
	printf("#   3. This config file\n")
	printf("#   4. Built-in defaults\n\n")
	if err != nil {
		return err
	}

	if err := writeConfig(w, model.DefaultConfig()); err != nil {
		return err
	}

	printf("\n# Credentials (recommended to use environment variables instead):\n")
	printf("#   export COURTLISTENER_API_TOKEN=...\n")
	printf("#   export GOVINFO_API_KEY=...\n")
	printf("#   export SEMANTIC_SCHOLAR_API_KEY=...\n")
	printf("#   export OPENALEX_MAILTO=you@example.com\n")
	printf("#\n")
	printf("# State law research (set llm.provider to enable):\n")
	printf("#   export OPENAI_API_KEY=sk-...\n")
	printf("#   export ANTHROPIC_API_KEY=sk-ant-...\n")
	printf("#   export OLLAMA_BASE_URL=http://localhost:11434\n")
	printf("#\n")
	printf("# Telemetry (or --metrics-file / --trace-file):\n")
	printf("#   export CITEVERIFY_TELEMETRY_METRICS_FILE=citeverify.prom\n")
	return err
}

// maskCredentials returns a copy of cfg safe to print
func maskCredentials(cfg *model.Config) *model.Config {
	masked := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		if len(s) <= 8 {
			return "****"
		}
		return s[:4] + "****"
	}

	masked.LLM.APIKey = mask(cfg.LLM.APIKey)
	masked.Providers.CourtListener.APIKey = mask(cfg.Providers.CourtListener.APIKey)
	masked.Providers.GovInfo.APIKey = mask(cfg.Providers.GovInfo.APIKey)
	masked.Providers.OpenAlex.APIKey = mask(cfg.Providers.OpenAlex.APIKey)
	masked.Providers.SemanticScholar.APIKey = mask(cfg.Providers.SemanticScholar.APIKey)
	masked.Providers.LibraryOfCongress.APIKey = mask(cfg.Providers.LibraryOfCongress.APIKey)
	return &masked
}

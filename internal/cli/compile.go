package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aonanj/citation-verifier/internal/extract"
	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/pipeline"
)

// runFlags are the settings compile and batch share. Only flags the user
// set override the loaded configuration.
type runFlags struct {
	timeout     time.Duration
	userAgent   string
	maxBytes    int64
	noRobots    bool
	httpProxy   string
	httpsProxy  string
	workers     int
	llmProvider string
	llmModel    string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Minute, "deadline for compiling one document")
	cmd.Flags().StringVar(&f.userAgent, "ua", "", "HTTP User-Agent")
	cmd.Flags().Int64Var(&f.maxBytes, "max-bytes", 10_000_000, "max response bytes to read")
	cmd.Flags().BoolVar(&f.noRobots, "no-robots", false, "do not consult robots.txt before fetching documents")
	cmd.Flags().StringVar(&f.httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&f.httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	cmd.Flags().IntVar(&f.workers, "state-workers", 4, "concurrent state law lookups per document")
	cmd.Flags().StringVar(&f.llmProvider, "llm-provider", "", "research assistant for state law (openai, anthropic, ollama)")
	cmd.Flags().StringVar(&f.llmModel, "llm-model", "", "research assistant model name")
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *model.Config) {
	changed := cmd.Flags().Changed
	if changed("timeout") {
		cfg.HTTP.CompileTimeout = f.timeout
	}
	if changed("ua") {
		cfg.HTTP.UserAgent = f.userAgent
	}
	if changed("max-bytes") {
		cfg.HTTP.MaxBodyBytes = f.maxBytes
	}
	if f.noRobots {
		cfg.HTTP.RespectRobots = false
	}
	if changed("http-proxy") {
		cfg.HTTP.HTTPProxy = f.httpProxy
	}
	if changed("https-proxy") {
		cfg.HTTP.HTTPSProxy = f.httpsProxy
	}
	if changed("state-workers") {
		cfg.Concurrency.StateLawWorkers = f.workers
	}
	if changed("llm-provider") {
		cfg.LLM.Provider = f.llmProvider
	}
	if changed("llm-model") {
		cfg.LLM.Model = f.llmModel
	}
	fillLLMCredentials(cfg)
}

var (
	compileOpts runFlags
	outJSON     string
	outMD       string
)

// compileCmd represents the compile command
var compileCmd = &cobra.Command{
	Use:   "compile <file|url|->",
	Short: "Verify the citations in one document",
	Long: `Compile reads a document, extracts its citations, resolves short forms
and string citations, and verifies each cited authority.

The source can be a local text or HTML file, an http(s) URL, or "-" to
read plain text from stdin. Without --json or --md the JSON report is
written to stdout.

Example:
  citeverify compile brief.txt
  citeverify compile https://www.courtlistener.com/opinion/105221/brown-v-board-of-education/ --md report.md
  citeverify compile brief.html --json report.json --llm-provider openai`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path")
	compileCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path")
	compileOpts.register(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	source := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	compileOpts.apply(cmd, cfg)

	stopTelemetry, err := startTelemetry(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer stopTelemetry()

	logger := newLogger(verbose)
	compiler, err := pipeline.NewCompiler(cfg, pipeline.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create compiler: %w", err)
	}

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	var report *model.Report
	if source == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		report, err = compiler.Compile(ctx, extract.PlainText(data))
		if err != nil {
			return fmt.Errorf("compile failed: %w", err)
		}
		report.Source = "stdin"
	} else {
		report, err = compiler.CompileSource(ctx, source)
		if err != nil {
			return fmt.Errorf("compile failed: %w", err)
		}
	}

	renderer := pipeline.NewRenderer(cfg.Output.Verbose || verbose)
	if outJSON == "" && outMD == "" {
		if err := renderer.WriteJSON(cmd.OutOrStdout(), report); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		renderer.RenderSummary(cmd.ErrOrStderr(), report)
		return nil
	}

	if err := renderer.RenderReport(cmd.ErrOrStderr(), report, outJSON, outMD); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return nil
}

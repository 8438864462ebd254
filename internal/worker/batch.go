package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aonanj/citation-verifier/internal/model"
)

// Compiler compiles one document source, a file path or a URL
type Compiler interface {
	CompileSource(ctx context.Context, source string) (*model.Report, error)
}

// DocumentResult is the outcome of compiling one source
type DocumentResult struct {
	Source string
	Report *model.Report
	Error  error
}

// BatchProcessor compiles many documents concurrently. Each document is
// still compiled by a single goroutine.
type BatchProcessor struct {
	compiler    Compiler
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(compiler Compiler, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{
		compiler:    compiler,
		concurrency: concurrency,
	}
}

// ProcessSources compiles every source and returns results in input order.
// A failing document does not stop the others; only cancellation of ctx
// is returned as an error.
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []string) ([]*DocumentResult, error) {
	results := make([]*DocumentResult, len(sources))
	if len(sources) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, source := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = &DocumentResult{Source: source, Error: err}
				return err
			}
			report, err := b.compiler.CompileSource(gctx, source)
			results[i] = &DocumentResult{Source: source, Report: report, Error: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("batch cancelled: %w", err)
	}
	return results, nil
}

// ProcessFile reads sources from a file and compiles them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*DocumentResult, error) {
	sources, err := ReadSourcesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return b.ProcessSources(ctx, sources)
}

// ReadSourcesFromFile reads one file path or URL per line, skipping blank
// lines, comments, and duplicates.
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return sources, nil
}

package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
)

// Renderer writes reports as JSON, Markdown, and a terminal summary
type Renderer struct {
	verbose bool
}

// NewRenderer creates a renderer. Verbose Markdown includes verification
// details for every entry.
func NewRenderer(verbose bool) *Renderer {
	return &Renderer{verbose: verbose}
}

// WriteJSON encodes the report as indented JSON
func (r *Renderer) WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(report)
}

// RenderJSON writes the report to a JSON file
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteJSON(w, report) })
}

// RenderMarkdown writes the report to a Markdown file
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteMarkdown(w, report) })
}

// statusOrder lists problems first
var statusOrder = map[model.Status]int{
	model.StatusError:    0,
	model.StatusNoMatch:  1,
	model.StatusWarning:  2,
	model.StatusPending:  3,
	model.StatusVerified: 4,
}

var statusLabel = map[model.Status]string{
	model.StatusVerified: "✓ verified",
	model.StatusWarning:  "⚠ warning",
	model.StatusNoMatch:  "✗ no match",
	model.StatusPending:  "… pending",
	model.StatusError:    "! error",
}

// orderedEntries sorts entries by status, then by first appearance
func orderedEntries(report *model.Report) []*model.Entry {
	entries := make([]*model.Entry, 0, len(report.Citations))
	for _, key := range report.Keys() {
		entries = append(entries, report.Citations[key])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		si, sj := statusOrder[entries[i].Status], statusOrder[entries[j].Status]
		if si != sj {
			return si < sj
		}
		return firstStart(entries[i]) < firstStart(entries[j])
	})
	return entries
}

func firstStart(e *model.Entry) int {
	if len(e.Occurrences) == 0 {
		return 0
	}
	start := e.Occurrences[0].Span.Start
	for _, o := range e.Occurrences[1:] {
		start = min(start, o.Span.Start)
	}
	return start
}

// WriteMarkdown renders the report as a Markdown document
func (r *Renderer) WriteMarkdown(w io.Writer, report *model.Report) error {
	var b strings.Builder
	s := report.Summary

	b.WriteString("# Citation Report\n\n")
	if report.Source != "" {
		fmt.Fprintf(&b, "**Source:** %s  \n", report.Source)
	}
	fmt.Fprintf(&b, "**Document:** `%s`  \n", report.DocumentID)
	fmt.Fprintf(&b, "**Compiled:** %s\n\n", report.CompiledAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Citations | Occurrences | Verified | Warning | No match | Pending | Error |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d | %d |\n\n",
		s.Total, s.Occurrences, s.Verified, s.Warning, s.NoMatch, s.Pending, s.Error)
	fmt.Fprintf(&b, "Verified ratio: %.0f%% (confidence: %s)\n\n", s.VerifiedRatio*100, s.Confidence)

	if len(report.Citations) > 0 {
		b.WriteString("## Citations\n\n")
		b.WriteString("| Status | Citation | Type | Detail | Occurrences |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, e := range orderedEntries(report) {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %d |\n",
				statusLabel[e.Status], escapeCell(e.NormalizedCitation), e.Type,
				escapeCell(e.Substatus), len(e.Occurrences))
		}
		b.WriteString("\n")
	}

	if r.verbose {
		for _, e := range orderedEntries(report) {
			fmt.Fprintf(&b, "### %s\n\n", e.NormalizedCitation)
			fmt.Fprintf(&b, "- Key: `%s`\n", e.ResourceKey)
			for _, o := range e.Occurrences {
				fmt.Fprintf(&b, "- [%d-%d] %s _%s_", o.Span.Start, o.Span.End, o.MatchedText, o.Category)
				if o.StringGroupID != "" && o.PositionInString != nil {
					fmt.Fprintf(&b, " (string %s, position %d)", o.StringGroupID, *o.PositionInString)
				}
				b.WriteString("\n")
			}
			if len(e.Details) > 0 {
				details, err := json.MarshalIndent(e.Details, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal details: %w", err)
				}
				fmt.Fprintf(&b, "\n```json\n%s\n```\n", details)
			}
			b.WriteString("\n")
		}
	}

	if len(report.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, warning := range report.Warnings {
			fmt.Fprintf(&b, "- %s\n", listItem(warning))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderSummary prints a short status overview
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	s := report.Summary
	_, _ = fmt.Fprintf(w, "\n%d citations (%d occurrences): %d verified, %d warning, %d no match, %d pending, %d error\n",
		s.Total, s.Occurrences, s.Verified, s.Warning, s.NoMatch, s.Pending, s.Error)

	for _, e := range orderedEntries(report) {
		if e.Status == model.StatusVerified {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %-12s %s", statusLabel[e.Status], e.NormalizedCitation)
		if e.Substatus != "" {
			_, _ = fmt.Fprintf(w, " (%s)", e.Substatus)
		}
		_, _ = fmt.Fprintln(w)
	}
}

// RenderReport writes the requested files and prints the summary
func (r *Renderer) RenderReport(w io.Writer, report *model.Report, jsonPath, mdPath string) error {
	if jsonPath != "" {
		if err := r.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if r.verbose {
			_, _ = fmt.Fprintf(w, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := r.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if r.verbose {
			_, _ = fmt.Fprintf(w, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	r.RenderSummary(w, report)
	return nil
}

// listItem keeps a warning on its own bullet
func listItem(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

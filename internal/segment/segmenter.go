// Package segment finds string citations (semicolon-joined lists of
// authorities) and splits them into ordered, span-preserving segments.
package segment

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/aonanj/citation-verifier/internal/model"
)

// ErrEmptyInput is returned when Split is given blank text
var ErrEmptyInput = errors.New("string citation text cannot be empty")

var (
	// Text after a semicolon that starts a new citation
	citationStartPattern = regexp.MustCompile(`^\s*(?:` +
		`[A-Z][A-Za-z'&.\-]*(?:\s+[A-Z][A-Za-z'&.\-]*)*\s+v\.|` +
		`In\s+re\s+[A-Z]|` +
		`\d+\s+[A-Z][\w.]+|` +
		`[A-Z][\w.]+\s*§|` +
		`(?i:(?:id|ibid|cf)\.|(?:supra|see|compare|accord|contra|but)\b))`)

	// Structural citation fragments
	caseFragmentPattern     = regexp.MustCompile(`[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+v\.`)
	reporterFragmentPattern = regexp.MustCompile(`\d+\s+[A-Z][\w.]+\s+\d+`)
	statuteFragmentPattern  = regexp.MustCompile(`[A-Z][\w.]+\s*§\s*[\d.]+`)

	signalWords = []string{
		"see", "see also", "see, e.g.", "see generally",
		"cf.", "compare", "but see", "but cf.",
		"accord", "contra", "e.g.",
	}

	signalPattern = regexp.MustCompile(`(?i)(?:^|[^a-z])(?:see|cf\.|compare|accord|contra|e\.g\.)(?:[^a-z]|$)`)
)

// Config tunes detection
type Config struct {
	// MinSemicolons is the number of boundary semicolons a span needs
	MinSemicolons int

	// MinSpanLength discards shorter sentence spans
	MinSpanLength int
}

// DefaultConfig returns the standard detection settings
func DefaultConfig() Config {
	return Config{
		MinSemicolons: 1,
		MinSpanLength: 20,
	}
}

// Segmenter detects and splits string citations
type Segmenter struct {
	config Config
	logger *slog.Logger
}

// Option configures a Segmenter
type Option func(*Segmenter)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Segmenter) {
		s.logger = logger
	}
}

// New creates a Segmenter
func New(config Config, opts ...Option) *Segmenter {
	if config.MinSemicolons <= 0 {
		config.MinSemicolons = 1
	}
	if config.MinSpanLength <= 0 {
		config.MinSpanLength = 20
	}
	s := &Segmenter{config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detect returns the spans of text that look like string citations
func (s *Segmenter) Detect(text string) []model.Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var spans []model.Span
	for _, sentence := range SplitSentences(text) {
		if s.IsStringCitation(text[sentence.Start:sentence.End]) {
			spans = append(spans, sentence)
		}
	}
	return spans
}

// IsStringCitation applies the detection heuristic to a single sentence
func (s *Segmenter) IsStringCitation(sentence string) bool {
	if len(strings.TrimSpace(sentence)) < s.config.MinSpanLength {
		return false
	}

	boundaries := boundarySemicolons(sentence)
	if len(boundaries) < s.config.MinSemicolons {
		return false
	}

	// Count parts that carry citation structure
	shaped := 0
	prev := 0
	for _, pos := range append(boundaries, len(sentence)) {
		if hasCitationStructure(sentence[prev:pos]) {
			shaped++
		}
		prev = pos + 1
	}
	if shaped >= 2 {
		return true
	}

	return HasSignal(sentence)
}

// Split splits a string citation at its boundary semicolons. offset is the
// text's position in the document; groupID tags every segment.
func (s *Segmenter) Split(text string, offset int, groupID string) ([]model.Segment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	var segments []model.Segment
	start := 0
	cuts := append(boundarySemicolons(text), len(text))
	for _, cut := range cuts {
		part := text[start:cut]
		lead := len(part) - len(strings.TrimLeftFunc(part, unicode.IsSpace))
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			position := len(segments)
			partStart := start + lead
			segments = append(segments, model.Segment{
				Text:     trimmed,
				Span:     model.Span{Start: offset + partStart, End: offset + partStart + len(trimmed)},
				GroupID:  groupID,
				Position: &position,
				Boundary: true,
			})
		}
		start = cut + 1
	}

	s.logger.Debug("split string citation",
		slog.String("group_id", groupID),
		slog.Int("segments", len(segments)),
	)
	return segments, nil
}

// Segment runs Detect and Split over a whole document. Spans whose split
// fails are skipped and reported through the returned error list.
func (s *Segmenter) Segment(text string) ([]model.Segment, []error) {
	var (
		segments []model.Segment
		errs     []error
	)
	for i, span := range s.Detect(text) {
		groupID := fmt.Sprintf("string_group_%d", i)
		parts, err := s.Split(text[span.Start:span.End], span.Start, groupID)
		if err != nil {
			errs = append(errs, fmt.Errorf("split %s: %w", groupID, err))
			continue
		}
		segments = append(segments, parts...)
	}
	return segments, errs
}

// HasSignal reports whether text contains a citation signal word
func HasSignal(text string) bool {
	return signalPattern.MatchString(text)
}

// SignalWords returns the recognized signal words, longest phrases first
func SignalWords() []string {
	out := make([]string, len(signalWords))
	copy(out, signalWords)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func hasCitationStructure(part string) bool {
	return caseFragmentPattern.MatchString(part) ||
		reporterFragmentPattern.MatchString(part) ||
		statuteFragmentPattern.MatchString(part)
}

// boundarySemicolons returns the offsets of semicolons outside balanced
// parentheses that are followed by the start of another citation.
func boundarySemicolons(text string) []int {
	protected := protectedRanges(text)
	var out []int
	for i := 0; i < len(text); i++ {
		if text[i] != ';' || inRanges(i, protected) {
			continue
		}
		if citationStartPattern.MatchString(text[i+1:]) {
			out = append(out, i)
		}
	}
	return out
}

// protectedRanges returns balanced parenthetical ranges
func protectedRanges(text string) []model.Span {
	var (
		ranges []model.Span
		depth  int
		open   = -1
	)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(':
			if depth == 0 {
				open = i
			}
			depth++
		case ')':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && open >= 0 {
				ranges = append(ranges, model.Span{Start: open, End: i + 1})
				open = -1
			}
		}
	}
	// An unclosed parenthesis protects the rest of the text
	if depth > 0 && open >= 0 {
		ranges = append(ranges, model.Span{Start: open, End: len(text)})
	}
	return ranges
}

func inRanges(pos int, ranges []model.Span) bool {
	for _, r := range ranges {
		if pos >= r.Start && pos < r.End {
			return true
		}
	}
	return false
}

// Package pipeline compiles documents into citation reports: it drives
// segmentation, resolution, verification, and secondary-source merging
// for one document at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aonanj/citation-verifier/internal/extract"
	"github.com/aonanj/citation-verifier/internal/extract/adapters"
	"github.com/aonanj/citation-verifier/internal/llm"
	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/resolve"
	"github.com/aonanj/citation-verifier/internal/score"
	"github.com/aonanj/citation-verifier/internal/secondary"
	"github.com/aonanj/citation-verifier/internal/segment"
	"github.com/aonanj/citation-verifier/internal/tokenize"
	"github.com/aonanj/citation-verifier/internal/verify"
	"github.com/aonanj/citation-verifier/internal/worker"
)

// ErrEmptyDocument is returned for blank input
var ErrEmptyDocument = errors.New("document text is empty")

// State is a compile phase, used in logs and spans
type State string

const (
	StateSegmenting       State = "segmenting"
	StateResolving        State = "resolving"
	StateCorrecting       State = "correcting"
	StateVerifying        State = "verifying"
	StateSecondaryMerging State = "secondary-merging"
	StateDone             State = "done"
)

var tracer = otel.Tracer("citeverify.pipeline")

var compileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "citeverify_compile_duration_seconds",
	Help:    "Duration of one document compile in seconds",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
})

// Compiler turns document text into a report. It is safe for concurrent
// use; each Compile call owns its own report and worker pool.
type Compiler struct {
	config    *model.Config
	segmenter *segment.Segmenter
	resolver  *resolve.Resolver
	detector  *secondary.Detector
	providers *verify.Providers
	fetcher   *Fetcher
	extractor extract.Extractor
	logger    *slog.Logger

	tokenizer tokenize.Tokenizer
	assistant llm.Provider
}

// Option configures a Compiler
type Option func(*Compiler)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithProviders replaces the verification providers
func WithProviders(p *verify.Providers) Option {
	return func(c *Compiler) {
		c.providers = p
	}
}

// WithTokenizer replaces the built-in Bluebook tokenizer
func WithTokenizer(t tokenize.Tokenizer) Option {
	return func(c *Compiler) {
		c.tokenizer = t
	}
}

// WithAssistant sets the state-law research assistant instead of building
// one from the LLM configuration
func WithAssistant(a llm.Provider) Option {
	return func(c *Compiler) {
		c.assistant = a
	}
}

// WithExtractor replaces the document text extractor
func WithExtractor(e extract.Extractor) Option {
	return func(c *Compiler) {
		c.extractor = e
	}
}

// NewCompiler creates a compiler. A configured LLM provider without
// credentials leaves state law unverifiable rather than failing; an
// unknown provider name is an error.
func NewCompiler(cfg *model.Config, opts ...Option) (*Compiler, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}

	c := &Compiler{
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tokenizer == nil {
		c.tokenizer = tokenize.NewBluebook(tokenize.WithLogger(c.logger))
	}

	if c.providers == nil {
		if c.assistant == nil {
			assistant, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
			switch {
			case errors.Is(err, llm.ErrNoCredentials):
				c.logger.Warn("state law research disabled", slog.String("provider", cfg.LLM.Provider), slog.String("error", err.Error()))
			case err != nil:
				return nil, fmt.Errorf("llm provider: %w", err)
			default:
				c.assistant = assistant
			}
		}
		c.providers = verify.NewProviders(cfg, c.assistant, verify.WithLogger(c.logger))
	}

	if c.extractor == nil {
		c.extractor = adapters.NewRegistry()
	}

	c.segmenter = segment.New(segment.Config{
		MinSemicolons: cfg.Segment.MinSemicolons,
		MinSpanLength: cfg.Segment.MinSpanLength,
	}, segment.WithLogger(c.logger))
	c.resolver = resolve.New(c.tokenizer, resolve.WithLogger(c.logger))
	c.detector = secondary.NewDetector(secondary.WithLogger(c.logger))
	c.fetcher = NewFetcher(cfg.HTTP.Timeout, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes,
		cfg.HTTP.RespectRobots, cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy)

	return c, nil
}

// compilation is the state of one Compile call. Only the goroutine running
// Compile touches it.
type compilation struct {
	state     State
	doc       model.DocumentID
	text      string
	report    *model.Report
	pool      *worker.Pool
	pending   map[string]bool
	nextIndex int
	span      trace.Span

	// orphans are short forms the tokenizer claimed but could not bind;
	// the secondary resolver gets a second look at them
	orphans []orphan
}

type orphan struct {
	span model.Span
	key  string
}

func (c *Compiler) enter(comp *compilation, s State) {
	comp.state = s
	comp.span.AddEvent(string(s))
	c.logger.Debug("compile state", slog.String("document_id", comp.doc.String()), slog.String("state", string(s)))
}

// Compile extracts, resolves, and verifies every citation in text. It
// fails only for blank text or a context cancelled before work starts;
// anything that goes wrong later degrades into report warnings and
// per-entry errors.
func (c *Compiler) Compile(ctx context.Context, text string) (*model.Report, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if timeout := c.config.HTTP.CompileTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	doc := model.NewDocumentID()
	ctx, span := tracer.Start(ctx, "compile", trace.WithAttributes(
		attribute.String("document.id", doc.String()),
		attribute.Int("document.length", len(text)),
	))
	defer span.End()

	comp := &compilation{
		doc:  doc,
		text: text,
		report: &model.Report{
			DocumentID: doc,
			Citations:  make(map[string]*model.Entry),
		},
		pending: make(map[string]bool),
		span:    span,
	}

	c.enter(comp, StateSegmenting)
	segments := c.segment(comp)

	c.enter(comp, StateResolving)
	graph := c.resolver.Resolve(ctx, doc, text, segments)
	comp.report.Warnings = append(comp.report.Warnings, graph.Warnings...)
	comp.nextIndex = len(graph.Nodes)

	c.enter(comp, StateCorrecting)
	assignment := c.correct(comp, graph)

	c.enter(comp, StateVerifying)
	comp.pool = worker.NewPool(ctx, c.config.Concurrency.StateLawWorkers, worker.WithLogger(c.logger))
	comp.pool.Start()
	defer comp.pool.Shutdown()
	for _, key := range assignment.Keys() {
		c.compileBucket(ctx, comp, assignment, key)
	}
	c.join(comp)

	c.enter(comp, StateSecondaryMerging)
	c.mergeSecondary(ctx, comp, graph)

	c.enter(comp, StateDone)
	report := comp.report
	report.CompiledAt = time.Now().UTC()
	score.Summarize(report)

	elapsed := time.Since(start)
	compileDuration.Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.Int("report.citations", report.Summary.Total),
		attribute.Int("report.occurrences", report.Summary.Occurrences),
	)
	span.SetStatus(codes.Ok, "")

	c.logger.Info("compiled document",
		slog.String("document_id", doc.String()),
		slog.Int("citations", report.Summary.Total),
		slog.Int("occurrences", report.Summary.Occurrences),
		slog.Int("verified", report.Summary.Verified),
		slog.Duration("elapsed", elapsed),
	)
	return report, nil
}

// segment runs the segmenter. A panic yields no segments, which means the
// whole text is resolved as one region.
func (c *Compiler) segment(comp *compilation) (segments []model.Segment) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("segmenter panic", slog.Any("panic", p))
			comp.report.Warnings = append(comp.report.Warnings, fmt.Sprintf("string citation detection failed: %v", p))
			segments = nil
		}
	}()

	segments, errs := c.segmenter.Segment(comp.text)
	for _, err := range errs {
		comp.report.Warnings = append(comp.report.Warnings, "string citation split failed: "+err.Error())
	}
	return segments
}

// correct applies string-local correction, keeping the provisional
// buckets if it panics
func (c *Compiler) correct(comp *compilation, g *resolve.Graph) (a *resolve.Assignment) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("correction panic", slog.Any("panic", p))
			comp.report.Warnings = append(comp.report.Warnings, fmt.Sprintf("string-local correction failed: %v", p))
			a = resolve.Uncorrected(g)
		}
	}()
	a = resolve.Correct(g)
	if len(a.Moves) > 0 {
		c.logger.Debug("corrected string citations", slog.Int("moves", len(a.Moves)))
	}
	return a
}

// compileBucket builds one entry and verifies it, or queues it for the
// state-law pool
func (c *Compiler) compileBucket(ctx context.Context, comp *compilation, a *resolve.Assignment, key string) {
	nodes := a.Nodes(key)
	if len(nodes) == 0 {
		return
	}
	rk := a.ResourceKey(key)

	rep, hasFull := representative(nodes)
	kind := rep.Kind
	if !hasFull && !rk.IsRaw() {
		kind = rk.Kind
	}

	entry := &model.Entry{
		ResourceKey:        rk,
		Type:               kind.String(),
		NormalizedCitation: resolve.Normalized(rep),
		Occurrences:        make([]model.Occurrence, 0, len(nodes)),
	}
	for _, n := range nodes {
		entry.Occurrences = append(entry.Occurrences, occurrence(n))
	}
	comp.report.Citations[key] = entry

	req := model.VerifyRequest{
		Token:         rep,
		NormalizedKey: entry.NormalizedCitation,
		Resource:      a.Resource(key),
		Fallback:      rep.Text,
	}

	if rk.IsRaw() && !hasFull {
		entry.Apply(model.Fail(model.SubShortFormUnresolved, model.Details{"matched_text": rep.Text}))
		for _, n := range nodes {
			comp.orphans = append(comp.orphans, orphan{span: n.Token.Loc.Span, key: key})
		}
		return
	}

	switch kind {
	case model.KindCase:
		entry.Apply(c.verify(ctx, c.providers.Case, req))

	case model.KindJournal:
		entry.Apply(c.verify(ctx, c.providers.Journal, req))

	case model.KindSecondary:
		entry.Apply(c.verify(ctx, c.providers.Secondary, req))

	case model.KindLaw:
		switch j := verify.ClassifyJurisdiction(req.Resource, rep.Text); j {
		case verify.JurisdictionFederal:
			entry.Apply(c.verify(ctx, c.providers.Federal, req))
		case verify.JurisdictionState:
			entry.Apply(model.Result{Status: model.StatusPending, Substatus: model.SubStateLawPending})
			comp.pending[key] = true
			comp.pool.Submit(worker.JobFunc{
				ID: key,
				// A panic here is left to the pool, which reports it as
				// the job's error
				Fn: func(ctx context.Context) (model.Result, error) {
					return c.providers.State.Verify(ctx, req), nil
				},
			})
		default:
			entry.Apply(model.Fail(model.SubUnsupportedJurisdiction, model.Details{"jurisdiction": string(j)}))
		}

	case model.KindOther:
		entry.Apply(model.Fail(model.UnsupportedSubstatus(entry.Type), nil))
	}
}

// verify calls a provider, turning a panic into an error result
func (c *Compiler) verify(ctx context.Context, v verify.Verifier, req model.VerifyRequest) (res model.Result) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("verifier panic", slog.String("citation", req.NormalizedKey), slog.Any("panic", p))
			res = model.Fail(model.SubLookupFailed, model.Details{"error": fmt.Sprint(p)})
		}
	}()
	return v.Verify(ctx, req)
}

// join waits for the state-law pool and patches pending entries
func (c *Compiler) join(comp *compilation) {
	for _, out := range comp.pool.Wait() {
		entry, ok := comp.report.Citations[out.Key]
		if !ok || !comp.pending[out.Key] {
			c.logger.Warn("state law result for unknown citation", slog.String("key", out.Key))
			continue
		}
		delete(comp.pending, out.Key)

		switch {
		case out.Err == nil:
			entry.Apply(out.Result)
		case errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded):
			entry.Apply(model.Fail(model.SubLookupFailed, model.Details{"error": out.Err.Error()}))
		default:
			entry.Apply(model.Fail(model.SubStateLawAsyncFailed, model.Details{"error": out.Err.Error()}))
		}
	}

	// Every submitted job yields an outcome; anything left was lost
	for key := range comp.pending {
		comp.report.Citations[key].Apply(model.Fail(model.SubStateLawAsyncFailed, model.Details{"error": "no result"}))
	}
}

// mergeSecondary finds secondary-source citations the tokenizer did not
// claim and merges them into the report
func (c *Compiler) mergeSecondary(ctx context.Context, comp *compilation, g *resolve.Graph) {
	orphaned := make(map[int]bool, len(comp.orphans))
	for _, o := range comp.orphans {
		orphaned[o.span.Start] = true
	}

	claimed := make([]model.Span, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if !orphaned[n.Token.Loc.Span.Start] {
			claimed = append(claimed, n.Token.Loc.Span)
		}
	}

	fulls, shorts := c.detectSecondary(comp, claimed)
	if len(fulls) == 0 && len(shorts) == 0 {
		return
	}

	// Tokenizer Id. forms that follow a secondary source belong to it, not
	// to the primary citation the tokenizer linked them to
	reoffered := reofferedIDs(g, orphaned, fulls, shorts)

	anchors := make([]secondary.Anchor, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		start := n.Token.Loc.Span.Start
		if orphaned[start] {
			continue
		}
		if _, ok := reoffered[start]; ok {
			shorts = append(shorts, idCitation(n))
			continue
		}
		a := secondary.Anchor{Span: n.Token.Loc.Span, Kind: anchorKind(n)}
		if a.Kind == model.KindSecondary {
			a.Key = n.Key
		}
		anchors = append(anchors, a)
	}

	res := secondary.Resolve(fulls, shorts, anchors)

	for _, f := range fulls {
		key := f.ResourceKey().String()
		if entry, ok := comp.report.Citations[key]; ok {
			entry.Occurrences = append(entry.Occurrences, c.secondaryOccurrence(comp, f))
			continue
		}

		entry := &model.Entry{
			ResourceKey:        f.ResourceKey(),
			Type:               model.KindSecondary.String(),
			NormalizedCitation: f.Normalized(),
			Occurrences:        []model.Occurrence{c.secondaryOccurrence(comp, f)},
		}
		entry.Apply(c.verify(ctx, c.providers.Secondary, verify.SecondaryRequest(f)))
		comp.report.Citations[key] = entry
	}

	for _, s := range res.Resolved {
		entry, ok := comp.report.Citations[s.Antecedent.String()]
		if n, isID := reoffered[s.Span.Start]; isID {
			// Keeps its tokenizer binding unless the secondary entry exists
			if ok {
				detach(comp, s.Span)
				entry.Occurrences = append(entry.Occurrences, occurrence(n))
			}
			continue
		}
		if !ok {
			c.adoptOrphan(comp, s)
			c.unresolvedSecondary(comp, s)
			continue
		}
		// The secondary resolver bound a short form the tokenizer could
		// not; its raw entry gives way
		c.adoptOrphan(comp, s)
		entry.Occurrences = append(entry.Occurrences, c.secondaryOccurrence(comp, s))
	}

	for _, s := range res.Unresolved {
		if _, isID := reoffered[s.Span.Start]; isID || c.isOrphan(comp, s) {
			continue
		}
		c.unresolvedSecondary(comp, s)
	}

	for _, s := range res.NonSecondary {
		c.logger.Debug("id. refers to primary authority",
			slog.String("matched_text", s.MatchedText),
			slog.Int("start", s.Span.Start),
		)
	}
}

// reofferedIDs returns the tokenizer's Id. nodes whose nearest preceding
// citation, tokenizer or secondary, is a secondary source. Keys are span
// starts.
func reofferedIDs(g *resolve.Graph, skip map[int]bool, fulls, shorts []secondary.Citation) map[int]resolve.Node {
	var found []model.Span
	for _, f := range fulls {
		found = append(found, f.Span)
	}
	for _, s := range shorts {
		if s.Category != model.CategoryID {
			found = append(found, s.Span)
		}
	}
	if len(found) == 0 {
		return nil
	}

	nodes := make([]resolve.Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if !skip[n.Token.Loc.Span.Start] {
			nodes = append(nodes, n)
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Token.Loc.Span.Start < nodes[j].Token.Loc.Span.Start })

	out := make(map[int]resolve.Node)
	for i, n := range nodes {
		if n.Token.Category != model.CategoryID {
			continue
		}
		pos := n.Token.Loc.Span.Start

		primaryEnd, secondaryEnd := -1, -1
		for _, prev := range nodes[:i] {
			end := prev.Token.Loc.Span.End
			if end > pos {
				continue
			}
			_, moved := out[prev.Token.Loc.Span.Start]
			if moved || anchorKind(prev) == model.KindSecondary {
				secondaryEnd = max(secondaryEnd, end)
			} else {
				primaryEnd = max(primaryEnd, end)
			}
		}
		for _, sp := range found {
			if sp.End <= pos {
				secondaryEnd = max(secondaryEnd, sp.End)
			}
		}

		if secondaryEnd > primaryEnd {
			out[pos] = n
		}
	}
	return out
}

func anchorKind(n resolve.Node) model.Kind {
	if !n.Key.IsRaw() {
		return n.Key.Kind
	}
	return n.Token.Kind
}

func idCitation(n resolve.Node) secondary.Citation {
	return secondary.Citation{
		Family:      secondary.FamilyUnknown,
		Category:    model.CategoryID,
		Form:        "id",
		MatchedText: n.Token.Text,
		Span:        n.Token.Loc.Span,
		PinCite:     n.Token.Fields.PinCite,
	}
}

// detach removes the occurrence at span from whichever entry holds it
func detach(comp *compilation, span model.Span) {
	for key, e := range comp.report.Citations {
		for i, o := range e.Occurrences {
			if o.Span != span {
				continue
			}
			e.Occurrences = append(e.Occurrences[:i:i], e.Occurrences[i+1:]...)
			if len(e.Occurrences) == 0 {
				delete(comp.report.Citations, key)
			}
			return
		}
	}
}

// isOrphan reports whether s was already claimed as an unbound short form
func (c *Compiler) isOrphan(comp *compilation, s secondary.Citation) bool {
	for _, o := range comp.orphans {
		if o.span.Overlaps(s.Span) {
			return true
		}
	}
	return false
}

// adoptOrphan drops the raw entry of an unbound short form that s covers
func (c *Compiler) adoptOrphan(comp *compilation, s secondary.Citation) {
	for i, o := range comp.orphans {
		if o.span.Overlaps(s.Span) {
			delete(comp.report.Citations, o.key)
			comp.orphans = append(comp.orphans[:i:i], comp.orphans[i+1:]...)
			return
		}
	}
}

// detectSecondary runs the detector, treating a panic as no citations
func (c *Compiler) detectSecondary(comp *compilation, claimed []model.Span) (fulls, shorts []secondary.Citation) {
	defer func() {
		if p := recover(); p != nil {
			c.logger.Error("secondary detector panic", slog.Any("panic", p))
			comp.report.Warnings = append(comp.report.Warnings, fmt.Sprintf("secondary source detection failed: %v", p))
			fulls, shorts = nil, nil
		}
	}()
	return c.detector.Detect(comp.text, claimed)
}

// unresolvedSecondary records a short form with no antecedent as its own
// warning entry
func (c *Compiler) unresolvedSecondary(comp *compilation, s secondary.Citation) {
	rk := model.NewResourceKey(model.KindSecondary, "unresolved", strconv.Itoa(s.Span.Start))
	entry := &model.Entry{
		ResourceKey:        rk,
		Type:               model.KindSecondary.String(),
		NormalizedCitation: s.Normalized(),
		Occurrences:        []model.Occurrence{c.secondaryOccurrence(comp, s)},
	}
	entry.Apply(model.Warn(model.SubShortFormUnresolved, model.Details{"matched_text": s.MatchedText}))
	comp.report.Citations[rk.String()] = entry
}

func (c *Compiler) secondaryOccurrence(comp *compilation, s secondary.Citation) model.Occurrence {
	o := model.Occurrence{
		Category:    s.Category,
		MatchedText: s.MatchedText,
		Span:        s.Span,
		Index:       comp.nextIndex,
		PinCite:     s.PinCite,
	}
	comp.nextIndex++
	return o
}

// representative is the bucket's first full citation, else its first token
func representative(nodes []resolve.Node) (model.Token, bool) {
	for _, n := range nodes {
		if n.Token.Category.IsFull() {
			return n.Token, true
		}
	}
	return nodes[0].Token, false
}

func occurrence(n resolve.Node) model.Occurrence {
	return model.Occurrence{
		Category:         n.Token.Category,
		MatchedText:      n.Token.Text,
		Span:             n.Token.Loc.Span,
		Index:            n.Token.Index,
		PinCite:          n.Token.Fields.PinCite,
		StringGroupID:    n.GroupID,
		PositionInString: n.Position,
	}
}

// CompileSource reads a file path or http(s) URL, extracts its text, and
// compiles it
func (c *Compiler) CompileSource(ctx context.Context, source string) (*model.Report, error) {
	var (
		data     []byte
		filename string
	)

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		result, err := c.fetcher.FetchWithRetry(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", source, err)
		}
		data, filename = result.Body, result.Filename
	} else {
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
		data, filename = b, source
	}

	text, err := c.extractor.Extract(data, filename)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", source, err)
	}

	report, err := c.Compile(ctx, text)
	if err != nil {
		return nil, err
	}
	report.Source = source
	return report, nil
}

var _ worker.Compiler = (*Compiler)(nil)

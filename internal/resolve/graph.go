// Package resolve binds citation tokens to resource keys. Resolve builds a
// provisional graph; Correct applies string-local correction to it and
// returns the final assignment.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/tokenize"
	"github.com/aonanj/citation-verifier/internal/util"
)

// Node is one token placed in the document
type Node struct {
	// Token has an absolute span, a document-wide index, and resolved fields
	Token model.Token

	// Key is the provisional bucket
	Key model.ResourceKey

	GroupID  string
	Position *int
}

// Graph is the immutable phase-one resolution of a document
type Graph struct {
	Document model.DocumentID
	Text     string
	Nodes    []Node

	// Resources holds canonical fields per key string
	Resources map[string]model.Fields

	// Warnings lists degradations such as tokenizer failures
	Warnings []string

	keys      map[string]model.ResourceKey
	order     []string
	canonical map[string]bool
}

// Key returns the resource key registered under s
func (g *Graph) Key(s string) (model.ResourceKey, bool) {
	k, ok := g.keys[s]
	return k, ok
}

// Buckets returns node indexes per key string, in first-seen key order
func (g *Graph) Buckets() ([]string, map[string][]int) {
	buckets := make(map[string][]int, len(g.order))
	for i, n := range g.Nodes {
		s := n.Key.String()
		buckets[s] = append(buckets[s], i)
	}
	order := make([]string, len(g.order))
	copy(order, g.order)
	return order, buckets
}

func (g *Graph) register(k model.ResourceKey, f model.Fields, full bool) {
	s := k.String()
	if _, ok := g.keys[s]; !ok {
		g.keys[s] = k
		g.order = append(g.order, s)
	}
	// The first full citation in a bucket supplies its canonical fields
	if _, ok := g.Resources[s]; !ok || (full && !g.canonical[s]) {
		g.Resources[s] = f
		g.canonical[s] = full
	}
}

// Resolver runs the tokenizer over document regions and binds the tokens
type Resolver struct {
	tokenizer tokenize.Tokenizer
	logger    *slog.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver
func New(tokenizer tokenize.Tokenizer, opts ...Option) *Resolver {
	r := &Resolver{tokenizer: tokenizer, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve tokenizes each region of text and binds every token to a
// provisional bucket. segments are the string-citation segments; text they
// do not cover is tokenized as standalone regions. A region whose
// tokenization fails contributes one raw bucket per scanned token.
func (r *Resolver) Resolve(ctx context.Context, doc model.DocumentID, text string, segments []model.Segment) *Graph {
	g := &Graph{
		Document:  doc,
		Text:      text,
		Resources: make(map[string]model.Fields),
		keys:      make(map[string]model.ResourceKey),
		canonical: make(map[string]bool),
	}

	for _, region := range Regions(text, segments) {
		tokens, raw := r.tokenize(ctx, region.Text, doc)
		if raw {
			g.Warnings = append(g.Warnings, fmt.Sprintf("tokenizer failed at offset %d; %d citations kept unresolved", region.Span.Start, len(tokens)))
		}
		r.place(g, region, tokens, raw)
	}

	r.logger.Debug("resolved document",
		slog.String("document_id", doc.String()),
		slog.Int("tokens", len(g.Nodes)),
		slog.Int("buckets", len(g.order)),
	)
	return g
}

// tokenize calls the tokenizer, recovering from panics. On failure it falls
// back to an unbound scan and reports raw=true.
func (r *Resolver) tokenize(ctx context.Context, text string, doc model.DocumentID) (tokens []model.Token, raw bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tokenizer panic", slog.Any("panic", p))
			tokens, raw = r.scan(text, doc), true
		}
	}()

	tokens, err := r.tokenizer.Tokenize(ctx, text, doc)
	if err != nil {
		r.logger.Warn("tokenizer failed, using raw fallback", slog.String("error", err.Error()))
		return r.scan(text, doc), true
	}
	return tokens, false
}

func (r *Resolver) scan(text string, doc model.DocumentID) []model.Token {
	scanner, ok := r.tokenizer.(tokenize.Scanner)
	if !ok {
		return nil
	}
	return scanner.Scan(text, doc)
}

// place binds one region's tokens and appends them to the graph
func (r *Resolver) place(g *Graph, region model.Segment, tokens []model.Token, raw bool) {
	base := len(g.Nodes)
	offset := region.Span.Start

	for i, tok := range tokens {
		local := tok
		node := Node{GroupID: region.GroupID, Position: region.Position}

		global := base + i
		if raw {
			local.Antecedent = -1
		} else if local.Antecedent >= 0 {
			local.Antecedent += base
		}

		switch {
		case raw:
			node.Key = model.RawKey(global)
		case local.Category.IsFull():
			node.Key, local.Fields = BindFull(local, region.Text)
		case local.Antecedent >= 0 && local.Antecedent < len(g.Nodes):
			node.Key = g.Nodes[local.Antecedent].Key
		default:
			local.Antecedent = crossRegion(g, local)
			if local.Antecedent >= 0 {
				node.Key = g.Nodes[local.Antecedent].Key
				local.Kind = g.Nodes[local.Antecedent].Token.Kind
			} else {
				node.Key = model.RawKey(global)
			}
		}

		local.Index = global
		local.Loc.Span = local.Loc.Span.Shift(offset)
		node.Token = local

		g.register(node.Key, local.Fields, local.Category.IsFull() && !raw)
		g.Nodes = append(g.Nodes, node)
	}
}

// crossRegion binds a short form the tokenizer left unbound, using nodes
// already placed from earlier regions.
func crossRegion(g *Graph, tok model.Token) int {
	switch tok.Category {
	case model.CategoryID:
		if len(g.Nodes) == 0 {
			return -1
		}
		prev := g.Nodes[len(g.Nodes)-1]
		if prev.Key.IsRaw() {
			return -1
		}
		if prev.Token.Category.IsFull() {
			return len(g.Nodes) - 1
		}
		return prev.Token.Antecedent
	case model.CategoryShort:
		for j := len(g.Nodes) - 1; j >= 0; j-- {
			n := g.Nodes[j].Token
			if n.Category.IsFull() && n.Kind == model.KindCase &&
				n.Fields.Volume == tok.Fields.Volume && tokenize.SameReporter(n.Fields.Reporter, tok.Fields.Reporter) {
				return j
			}
		}
	case model.CategorySupra, model.CategoryReference:
		guess := util.NormalizeForCompare(tok.Fields.AntecedentGuess)
		if guess == "" {
			return -1
		}
		for j := len(g.Nodes) - 1; j >= 0; j-- {
			n := g.Nodes[j].Token
			if !n.Category.IsFull() {
				continue
			}
			for _, name := range []string{n.Fields.CaseName, n.Fields.Author, n.Fields.Title} {
				if c := util.NormalizeForCompare(name); c != "" && strings.Contains(c, guess) {
					return j
				}
			}
		}
	case model.CategoryFull:
	}
	return -1
}

// Regions returns the string-citation segments plus standalone regions for
// the text outside every string citation, ordered by position. Without
// segments the whole text is one region.
func Regions(text string, segments []model.Segment) []model.Segment {
	if len(segments) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []model.Segment{{Text: text, Span: model.Span{Start: 0, End: len(text)}}}
	}

	sorted := make([]model.Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Span.Start < sorted[j].Span.Start })

	// Extent of each string group
	var groups []model.Span
	for i := 0; i < len(sorted); {
		span := sorted[i].Span
		j := i + 1
		for j < len(sorted) && sorted[j].GroupID == sorted[i].GroupID {
			span.End = sorted[j].Span.End
			j++
		}
		groups = append(groups, span)
		i = j
	}

	regions := make([]model.Segment, 0, len(sorted)+len(groups)+1)
	regions = append(regions, sorted...)
	prev := 0
	for _, span := range append(groups, model.Span{Start: len(text), End: len(text)}) {
		if span.Start > prev && strings.TrimSpace(text[prev:span.Start]) != "" {
			regions = append(regions, model.Segment{
				Text: text[prev:span.Start],
				Span: model.Span{Start: prev, End: span.Start},
			})
		}
		if span.End > prev {
			prev = span.End
		}
	}

	sort.SliceStable(regions, func(i, j int) bool { return regions[i].Span.Start < regions[j].Span.Start })
	return regions
}

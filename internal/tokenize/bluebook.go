package tokenize

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
)

// Case reporters, longer variants first because alternation is leftmost-first.
const reporters = `U\.\s?S\.|S\.\s?Ct\.|L\.\s?Ed\.\s?2d|L\.\s?Ed\.|` +
	`F\.\s?Supp\.\s?(?:2d|3d)|F\.\s?Supp\.|F\.\s?App'x|F\.\s?(?:2d|3d|4th)|F\.|B\.R\.|` +
	`Cal\.\s?Rptr\.\s?(?:2d|3d)|Cal\.\s?Rptr\.|Cal\.\s?App\.\s?(?:2d|3d|4th|5th)|Cal\.\s?(?:2d|3d|4th|5th)|` +
	`N\.Y\.S\.\s?(?:2d|3d)|N\.Y\.\s?(?:2d|3d)|Ill\.\s?(?:App\.\s?)?(?:2d|3d)|Wash\.\s?(?:App\.\s?)?2d|` +
	`N\.E\.\s?(?:2d|3d)|N\.E\.|N\.W\.\s?2d|N\.W\.|S\.E\.\s?2d|S\.E\.|S\.W\.\s?(?:2d|3d)|S\.W\.|` +
	`So\.\s?(?:2d|3d)|So\.|P\.\s?(?:2d|3d)|P\.|A\.\s?(?:2d|3d)|A\.`

const (
	sectionExpr = `\d+(?:[\-–.:/]?[A-Za-z0-9]+)*`
	pinExpr     = `\d+(?:[\-–]\d+)?`
	yearParen   = `(?:\s*\((?:[^()]*?\s)?(?P<year>\d{4})\))?`
	partyWord   = `[A-Z][\w.'&\-]*`
	partyExpr   = partyWord + `(?:\s+(?:` + partyWord + `|of|the|and|for|ex|rel\.|&))*`
)

var (
	partiesPattern = regexp.MustCompile(`(` + partyExpr + `)\s+v\.\s+(` + partyExpr + `),\s*$`)
	inRePattern    = regexp.MustCompile(`In\s+re\s+(` + partyExpr + `),\s*$`)
	leadingSignal  = regexp.MustCompile(`^(?:(?:See|see|Cf\.|cf\.|Compare|compare|Accord|accord|Contra|contra|But|but|also|generally|e\.g\.,?)\s+)+`)
)

// rule is one citation shape. The "core" group is the token span; other
// named groups map onto Fields.
type rule struct {
	name     string
	kind     model.Kind
	category model.Category
	pattern  *regexp.Regexp
	finish   func(tok *model.Token, text string)
}

// Bluebook is the built-in regex tokenizer for common Bluebook forms:
// federal and state statutes, case reporters, law journals, and the
// short, id. and supra forms that refer back to them.
type Bluebook struct {
	rules  []rule
	logger *slog.Logger
}

// Option configures a Bluebook tokenizer
type Option func(*Bluebook)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bluebook) {
		b.logger = logger
	}
}

// NewBluebook creates the built-in tokenizer with compiled patterns
func NewBluebook(opts ...Option) *Bluebook {
	b := &Bluebook{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}

	// Most specific shapes first; later matches overlapping an accepted
	// token are dropped.
	b.rules = []rule{
		{
			name: "usc", kind: model.KindLaw, category: model.CategoryFull,
			pattern: regexp.MustCompile(`\b(?P<core>(?P<title>\d+)\s+(?P<reporter>U\.\s?S\.\s?C\.(?:\s?A\.)?|U\.S\.\s+Code)\s+§§?\s*(?P<section>` + sectionExpr + `))(?:\s+et\s+seq\.)?` + yearParen),
			finish: func(tok *model.Token, _ string) {
				tok.Fields.Reporter = "U.S.C."
			},
		},
		{
			name: "cfr", kind: model.KindLaw, category: model.CategoryFull,
			pattern: regexp.MustCompile(`\b(?P<core>(?P<title>\d+)\s+(?P<reporter>C\.\s?F\.\s?R\.)\s+(?:§§?\s*|[Pp]arts?\s+)(?P<section>\d+(?:\.\d+)?))` + yearParen),
			finish: func(tok *model.Token, _ string) {
				tok.Fields.Reporter = "C.F.R."
			},
		},
		{
			name: "constitution", kind: model.KindLaw, category: model.CategoryFull,
			pattern: regexp.MustCompile(`(?P<core>(?P<reporter>U\.\s?S\.\s+Const\.)\s+(?P<title>(?:art\.|amend\.)\s+[IVXLC]+)(?:,\s+§\s*(?P<section>\d+))?)`),
			finish: func(tok *model.Token, _ string) {
				tok.Fields.Reporter = "U.S. Const."
			},
		},
		{
			name: "statutes_at_large", kind: model.KindLaw, category: model.CategoryFull,
			pattern: regexp.MustCompile(`\b(?P<core>(?P<volume>\d+)\s+(?P<reporter>Stat\.)\s+(?P<page>\d+))` + yearParen),
		},
		{
			name: "federal_register", kind: model.KindLaw, category: model.CategoryFull,
			pattern: regexp.MustCompile(`\b(?P<core>(?P<volume>\d+)\s+(?P<reporter>Fed\.\s?Reg\.)\s+(?P<page>\d+(?:,\d{3})*))` + yearParen),
			finish: func(tok *model.Token, _ string) {
				tok.Fields.Reporter = "Fed. Reg."
				tok.Fields.Page = strings.ReplaceAll(tok.Fields.Page, ",", "")
			},
		},
		{
			name: "public_law", kind: model.KindLaw, category: model.CategoryFull,
			pattern: regexp.MustCompile(`(?P<core>(?P<reporter>Pub\.\s?L\.|Public\s+Law|P\.L\.)\s+(?:No\.\s+)?(?P<congress>\d+)[-–](?P<lawnum>\d+))` + yearParen),
			finish: func(tok *model.Token, _ string) {
				tok.Fields.Reporter = "Pub. L."
				tok.Fields.Volume = tok.Fields.Congress
				tok.Fields.Page = tok.Fields.LawNumber
			},
		},
		{
			name: "state_code", kind: model.KindLaw, category: model.CategoryFull,
			pattern: regexp.MustCompile(`(?P<core>(?:(?P<title>\d+)\s+)?(?P<reporter>(?:[A-Z][A-Za-z.']*\.|Ohio|Iowa|Utah|Idaho|Alaska|Hawaii)(?:\s+[A-Z][A-Za-z.']*){0,4}?\s+(?:Code|Stat\.|Laws?|Comp\.\s+Stat\.|Cons\.\s+Stat\.|Rev\.\s+Stat\.|Gen\.\s+Stat\.|Comp\.\s+Laws)(?:\s+Ann\.)?)\s+§§?\s*(?P<section>` + sectionExpr + `))` + yearParen),
		},
		{
			name: "case", kind: model.KindCase, category: model.CategoryFull,
			pattern: regexp.MustCompile(`\b(?P<core>(?P<volume>\d{1,4})\s+(?P<reporter>` + reporters + `)\s+(?P<page>\d{1,5}))(?:,\s*(?P<pin>` + pinExpr + `))?`),
			finish: casePartiesBefore,
		},
		{
			name: "case_short", kind: model.KindCase, category: model.CategoryShort,
			pattern: regexp.MustCompile(`(?:\b(?P<guess>[A-Z][A-Za-z.'&\-]*),\s+)?\b(?P<core>(?P<volume>\d{1,4})\s+(?P<reporter>` + reporters + `)\s+at\s+(?P<pin>` + pinExpr + `))`),
		},
		{
			name: "journal", kind: model.KindJournal, category: model.CategoryFull,
			pattern: regexp.MustCompile(`\b(?P<core>(?P<volume>\d{1,4})\s+(?P<reporter>(?:[A-Z][A-Za-z.&']*\s+){0,6}?(?:L\.\s?Rev\.|Rev\.|L\.\s?J\.|J\.|L\.\s?Q\.|Q\.))\s+(?P<page>\d{1,5}))(?:,\s*(?P<pin>` + pinExpr + `))?(?:\s*\((?P<year>\d{4})\))?`),
			finish: func(tok *model.Token, _ string) {
				tok.Fields.Journal = tok.Fields.Reporter
			},
		},
		{
			name: "id", kind: model.KindOther, category: model.CategoryID,
			pattern: regexp.MustCompile(`(?:^|[\s(\[;,])(?P<core>(?:[Ii]d|[Ii]bid)\.(?:,?\s+at\s+(?P<pin>` + pinExpr + `))?)`),
		},
		{
			name: "supra", kind: model.KindOther, category: model.CategorySupra,
			pattern: regexp.MustCompile(`\b(?P<guess>[A-Z][A-Za-z.'&\-]*(?:\s+[A-Z][A-Za-z.'&\-]*){0,3}),?\s+(?P<core>supra(?:\s+note\s+\d+)?(?:,?\s+at\s+(?P<pin>` + pinExpr + `))?)`),
			finish: func(tok *model.Token, _ string) {
				tok.Fields.AntecedentGuess = stripSignal(tok.Fields.AntecedentGuess)
			},
		},
	}
	return b
}

// Tokenize scans text and binds short forms to their antecedents
func (b *Bluebook) Tokenize(ctx context.Context, text string, doc model.DocumentID) ([]model.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := b.Scan(text, doc)
	Link(tokens)
	return tokens, nil
}

// Scan returns every citation in text ordered by position, unbound
func (b *Bluebook) Scan(text string, doc model.DocumentID) []model.Token {
	var (
		tokens  []model.Token
		claimed []model.Span
	)
	for _, r := range b.rules {
		for _, m := range r.pattern.FindAllStringSubmatchIndex(text, -1) {
			tok, ok := r.token(text, m)
			if !ok || overlapsAny(tok.Loc.Span, claimed) {
				continue
			}
			tok.Loc.Document = doc
			claimed = append(claimed, tok.Loc.Span)
			tokens = append(tokens, tok)
		}
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].Loc.Span.Start < tokens[j].Loc.Span.Start
	})
	for i := range tokens {
		tokens[i].Index = i
	}

	b.logger.Debug("scanned citations", slog.Int("tokens", len(tokens)), slog.Int("text_len", len(text)))
	return tokens
}

func (r rule) token(text string, m []int) (model.Token, bool) {
	core := r.pattern.SubexpIndex("core")
	if core < 0 || m[2*core] < 0 {
		return model.Token{}, false
	}
	start, end := m[2*core], m[2*core+1]

	get := func(name string) string {
		i := r.pattern.SubexpIndex(name)
		if i < 0 || m[2*i] < 0 {
			return ""
		}
		return util.CleanString(text[m[2*i]:m[2*i+1]])
	}

	tok := model.Token{
		Category: r.category,
		Kind:     r.kind,
		Text:     text[start:end],
		Loc:      model.Loc{Span: model.Span{Start: start, End: end}},
		Fields: model.Fields{
			Reporter:        get("reporter"),
			Volume:          get("volume"),
			Page:            get("page"),
			Section:         get("section"),
			Title:           get("title"),
			Year:            get("year"),
			PinCite:         get("pin"),
			Congress:        get("congress"),
			LawNumber:       get("lawnum"),
			AntecedentGuess: get("guess"),
		},
		Antecedent: -1,
	}
	if r.finish != nil {
		r.finish(&tok, text)
	}
	return tok, true
}

// casePartiesBefore reads "Plaintiff v. Defendant," or "In re Party,"
// immediately before a full case citation.
func casePartiesBefore(tok *model.Token, text string) {
	from := tok.Loc.Span.Start - 300
	if from < 0 {
		from = 0
	}
	window := text[from:tok.Loc.Span.Start]

	if m := partiesPattern.FindStringSubmatch(window); m != nil {
		tok.Fields.Plaintiff = stripSignal(util.CleanString(m[1]))
		tok.Fields.Defendant = util.CleanString(m[2])
		return
	}
	if m := inRePattern.FindStringSubmatch(window); m != nil {
		tok.Fields.CaseName = "In re " + util.CleanString(m[1])
	}
}

func stripSignal(s string) string {
	return strings.TrimSpace(leadingSignal.ReplaceAllString(s, ""))
}

func overlapsAny(span model.Span, spans []model.Span) bool {
	for _, s := range spans {
		if span.Overlaps(s) {
			return true
		}
	}
	return false
}

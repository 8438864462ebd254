package secondary

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
)

type pattern struct {
	form     string
	family   Family
	category model.Category
	re       *regexp.Regexp

	// boundary requires the match to open the text or follow "." or ";"
	// and whitespace
	boundary bool
}

var fullPatterns = []pattern{
	{form: "cjs", family: FamilyCJS, category: model.CategoryFull, re: regexp.MustCompile(
		`(?i)(?P<volume>\d+)\s+C\.J\.S\.\s+(?P<title>[A-Z][A-Za-z\s&]+?)\s+§+\s*(?P<section>\d+[A-Za-z]?(?:[.\-]\d+)*)(?:\s*\((?P<year>\d{4})\))?`)},
	{form: "amjur", family: FamilyAmJur, category: model.CategoryFull, re: regexp.MustCompile(
		`(?i)(?P<volume>\d+)\s+Am\.\s*Jur\.\s*(?P<edition>\d+d)?\s+(?P<title>[A-Z][A-Za-z\s&]+?)\s+§+\s*(?P<section>\d+[A-Za-z]?(?:[.\-]\d+)*)(?:\s*\((?P<year>\d{4})\))?`)},
	{form: "alr", family: FamilyALR, category: model.CategoryFull, re: regexp.MustCompile(
		`(?i)(?P<volume>\d+)\s+A\.L\.R\.(?:\s*(?P<series>\d+[a-z]{1,2}))?\s+(?P<page>\d+)(?:\s*\((?P<year>\d{4})\))?`)},
	{form: "restatement", family: FamilyRestatement, category: model.CategoryFull, re: regexp.MustCompile(
		`(?i)Restatement\s+\((?P<edition>First|Second|Third|Fourth)\)\s+(?:of\s+)?(?P<title>[A-Z][A-Za-z\s&]+?)\s+§+\s*(?P<section>\d+[A-Za-z]?(?:[.\-]\d+)*)(?:\s*\((?P<year>\d{4})\))?`)},
	{form: "treatise", family: FamilyTreatise, category: model.CategoryFull, re: regexp.MustCompile(
		`(?i)(?P<author>[A-Z][A-Za-z\s.,'&]+?),\s+(?P<title>[A-Z][A-Za-z\s:]+?)\s+§+\s*(?P<section>\d+[A-Za-z]?(?:[.:\-]\d+)*)(?:\s*\((?P<edition>\d+(?:st|nd|rd|th)\s+ed\.)?\s*(?P<year>\d{4})\))?`)},
}

var shortPatterns = []pattern{
	{form: "id", family: FamilyUnknown, category: model.CategoryID, boundary: true, re: regexp.MustCompile(
		`(?i)\*?\bId\.\*?(?:\s+at\s+(?P<pin>[\d.]+))?(?:\s*\((?P<paren>[^)]+)\))?`)},
	{form: "ibid", family: FamilyUnknown, category: model.CategoryID, boundary: true, re: regexp.MustCompile(
		`(?i)\bIbid\.(?:\s+at\s+(?P<pin>[\d.]+))?(?:\s*\((?P<paren>[^)]+)\))?`)},
	{form: "supra", family: FamilyUnknown, category: model.CategorySupra, re: regexp.MustCompile(
		`(?i)(?P<title>[A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+){0,3}),\s+supra\s+note\s+(?P<note>\d+)(?:,?\s+at\s+(?P<pin>[\d.]+))?(?:\s*\((?P<paren>[^)]+)\))?`)},
	{form: "cjs_short", family: FamilyCJS, category: model.CategoryShort, re: regexp.MustCompile(
		`(?i)(?P<volume>\d+)\s+C\.J\.S\.\s+§+\s*(?P<section>\d+[A-Za-z]?(?:[.\-]\d+)*)(?:\s+at\s+(?P<page>[\d.]+))?`)},
	{form: "amjur_short", family: FamilyAmJur, category: model.CategoryShort, re: regexp.MustCompile(
		`(?i)(?P<volume>\d+)\s+Am\.\s*Jur\.\s*(?P<edition>\d+d)?\s+§+\s*(?P<section>\d+[A-Za-z]?(?:[.\-]\d+)*)(?:\s+at\s+(?P<page>[\d.]+))?`)},
	{form: "alr_short", family: FamilyALR, category: model.CategoryShort, re: regexp.MustCompile(
		`(?i)(?P<volume>\d+)\s+A\.L\.R\.(?:\s*(?P<series>\d+[a-z]{1,2}))?\s+at\s+(?P<page>\d+)`)},
	{form: "restatement_short", family: FamilyRestatement, category: model.CategoryShort, re: regexp.MustCompile(
		`(?i)Restatement\s+(?:\((?P<edition>First|Second|Third|Fourth)\)\s+)?§+\s*(?P<section>\d+[A-Za-z]?(?:[.\-]\d+)*)`)},
}

// Primary-law forms that the secondary patterns must never claim
var exclusions = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bU\.S\.C\.\s+§`),
	regexp.MustCompile(`(?i)\b[A-Z][a-z]+\.\s+(?:Civ\.|Penal|Bus\.|Fam\.|Health|Gov't)\s+Code\s+§`),
	regexp.MustCompile(`(?i)\bC\.F\.R\.\s+§`),
	regexp.MustCompile(`(?i)\bStat\.\s+\d+`),
	regexp.MustCompile(`(?i)\bPub\.\s*L\.`),
	regexp.MustCompile(`(?i)\bComp\.\s+Laws`),
	regexp.MustCompile(`(?i)\bRev\.\s+Stat`),
	regexp.MustCompile(`(?i)\bGen\.\s+Stat`),
	regexp.MustCompile(`(?i)\bAnn\.\s+Code`),
}

// Detector finds full and short secondary-source citations
type Detector struct {
	logger *slog.Logger
}

// Option configures a Detector
type Option func(*Detector)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// NewDetector creates a Detector
func NewDetector(opts ...Option) *Detector {
	d := &Detector{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the full and short secondary citations in text, each
// ordered by position. Matches overlapping a claimed span (a citation the
// tokenizer already found) or an exclusion pattern are skipped; short forms
// overlapping a full secondary citation are skipped too.
func (d *Detector) Detect(text string, claimed []model.Span) (fulls, shorts []Citation) {
	for _, p := range fullPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			span := model.Span{Start: m[0], End: m[1]}
			if overlaps(span, claimed) || overlapsCitation(span, fulls) {
				d.logger.Debug("skipping claimed secondary match", slog.Int("start", span.Start))
				continue
			}
			if excluded(text[span.Start:span.End]) {
				d.logger.Debug("skipping excluded secondary match", slog.String("text", clip(text[span.Start:span.End])))
				continue
			}
			fulls = append(fulls, p.citation(text, m))
		}
	}

	for _, p := range shortPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
			span := model.Span{Start: m[0], End: m[1]}
			if p.boundary && !atBoundary(text, span.Start) {
				continue
			}
			if overlaps(span, claimed) || overlapsCitation(span, fulls) || overlapsCitation(span, shorts) {
				continue
			}
			if excluded(text[span.Start:span.End]) {
				continue
			}
			shorts = append(shorts, p.citation(text, m))
		}
	}

	sort.SliceStable(fulls, func(i, j int) bool { return fulls[i].Span.Start < fulls[j].Span.Start })
	sort.SliceStable(shorts, func(i, j int) bool { return shorts[i].Span.Start < shorts[j].Span.Start })

	d.logger.Debug("detected secondary citations", slog.Int("full", len(fulls)), slog.Int("short", len(shorts)))
	return fulls, shorts
}

func (p pattern) citation(text string, m []int) Citation {
	get := func(name string) string {
		i := p.re.SubexpIndex(name)
		if i < 0 || m[2*i] < 0 {
			return ""
		}
		return util.CleanString(text[m[2*i]:m[2*i+1]])
	}

	return Citation{
		Family:      p.family,
		Category:    p.category,
		Form:        p.form,
		MatchedText: text[m[0]:m[1]],
		Span:        model.Span{Start: m[0], End: m[1]},
		Volume:      get("volume"),
		Title:       get("title"),
		Section:     strings.TrimRight(get("section"), ".:"),
		Page:        strings.TrimRight(get("page"), "."),
		PinCite:     strings.TrimRight(get("pin"), "."),
		Year:        get("year"),
		Edition:     get("edition"),
		Series:      get("series"),
		Author:      get("author"),
	}
}

// atBoundary reports whether pos opens text or follows "." or ";" and at
// least one space.
func atBoundary(text string, pos int) bool {
	before := text[:pos]
	trimmed := strings.TrimRight(before, " \t\r\n")
	if trimmed == "" {
		return true
	}
	if len(trimmed) == len(before) {
		return false
	}
	last := trimmed[len(trimmed)-1]
	return last == '.' || last == ';'
}

func excluded(s string) bool {
	for _, re := range exclusions {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func overlaps(span model.Span, spans []model.Span) bool {
	for _, s := range spans {
		if span.Overlaps(s) {
			return true
		}
	}
	return false
}

func overlapsCitation(span model.Span, cites []Citation) bool {
	for _, c := range cites {
		if span.Overlaps(c.Span) {
			return true
		}
	}
	return false
}

func clip(s string) string {
	if len(s) > 50 {
		return s[:50]
	}
	return s
}

// Package secondary detects citations to secondary legal sources
// (encyclopedias, restatements, treatises, A.L.R. annotations) and binds
// their short forms to full citations.
package secondary

import (
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
)

// Family identifies the kind of secondary source
type Family string

const (
	FamilyCJS          Family = "cjs"
	FamilyAmJur        Family = "amjur"
	FamilyALR          Family = "alr"
	FamilyRestatement  Family = "restatement"
	FamilyTreatise     Family = "treatise"
	FamilyUnknown      Family = "unknown"
	FamilyNonSecondary Family = "non_secondary"
)

// SourceName is the catalog name of a family, used in searches
func (f Family) SourceName() string {
	switch f {
	case FamilyCJS:
		return "Corpus Juris Secundum"
	case FamilyAmJur:
		return "American Jurisprudence"
	case FamilyALR:
		return "American Law Reports"
	case FamilyRestatement:
		return "Restatement"
	case FamilyTreatise:
		return "Treatise"
	default:
		return ""
	}
}

// Citation is one secondary-source citation found in a document
type Citation struct {
	Family      Family
	Category    model.Category
	Form        string // pattern that matched: cjs, id, ibid, supra, cjs_short, ...
	MatchedText string
	Span        model.Span

	Volume  string
	Title   string
	Section string
	Page    string
	PinCite string
	Year    string
	Edition string
	Series  string
	Author  string

	// Antecedent is the resource key of the full citation a short form
	// refers to; zero when unresolved.
	Antecedent model.ResourceKey
}

// ResourceKey returns secondary::family::volume::title|author::section|page,
// with "unknown" standing in for missing parts. The volume part carries the
// edition or series ("12 5th", "Second") so that editions of one work keep
// distinct keys.
func (c Citation) ResourceKey() model.ResourceKey {
	return model.NewResourceKey(model.KindSecondary,
		orUnknown(string(c.Family)),
		orUnknown(strings.TrimSpace(c.Volume+" "+firstNonEmpty(c.Series, c.Edition))),
		orUnknown(firstNonEmpty(c.Title, c.Author)),
		orUnknown(firstNonEmpty(c.Section, c.Page)),
	)
}

// Normalized renders the citation in Bluebook style for its family
func (c Citation) Normalized() string {
	var parts []string
	add := func(s ...string) {
		for _, p := range s {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}

	switch c.Family {
	case FamilyCJS:
		add(c.Volume + " C.J.S.")
		add(c.Title)
		if c.Section != "" {
			add("§ " + c.Section)
		}
		if c.Year != "" {
			add("(" + c.Year + ")")
		}
	case FamilyAmJur:
		add(c.Volume+" Am. Jur.", c.Edition, c.Title)
		if c.Section != "" {
			add("§ " + c.Section)
		}
		if c.Year != "" {
			add("(" + c.Year + ")")
		}
	case FamilyALR:
		add(c.Volume+" A.L.R."+c.Series, c.Page)
		if c.Year != "" {
			add("(" + c.Year + ")")
		}
	case FamilyRestatement:
		add("Restatement")
		if c.Edition != "" {
			add("(" + c.Edition + ")")
		}
		if c.Title != "" {
			add("of " + c.Title)
		}
		if c.Section != "" {
			add("§ " + c.Section)
		}
		if c.Year != "" {
			add("(" + c.Year + ")")
		}
	case FamilyTreatise:
		if c.Author != "" {
			add(c.Author + ",")
		}
		add(c.Title)
		if c.Section != "" {
			add("§ " + c.Section)
		}
		if ed := strings.TrimSpace(c.Edition + " " + c.Year); ed != "" {
			add("(" + ed + ")")
		}
	default:
		return util.CleanString(c.MatchedText)
	}

	if c.PinCite != "" && !c.Category.IsFull() {
		add("at " + c.PinCite)
	}
	return strings.Join(parts, " ")
}

func orUnknown(s string) string {
	if s = util.CleanString(s); s == "" {
		return "unknown"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

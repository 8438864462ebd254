package resolve

import (
	"fmt"
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
)

// BindFull completes a full citation's fields from the surrounding text
// and returns its resource key. tok's span must be relative to text.
func BindFull(tok model.Token, text string) (model.ResourceKey, model.Fields) {
	f := tok.Fields
	span := tok.Loc.Span

	switch tok.Kind {
	case model.KindCase:
		f.CaseName = CaseName(f, text, span.Start)
		if f.Year == "" || f.Court == "" {
			court, year := CourtYear(text, span.End)
			if f.Year == "" {
				f.Year = year
			}
			if f.Court == "" {
				f.Court = court
			}
		}
		return model.NewResourceKey(model.KindCase,
			util.CleanString(f.CaseName),
			util.CleanString(f.Reporter),
			util.CleanString(f.Volume),
			util.CleanString(f.Page),
			util.CleanString(f.Year),
		), f

	case model.KindLaw:
		return model.NewResourceKey(model.KindLaw,
			util.CleanString(firstNonEmpty(f.Title, f.Volume, f.Chapter)),
			util.CleanString(firstNonEmpty(f.Reporter, f.Code)),
			util.CleanString(firstNonEmpty(f.Section, f.Page)),
			util.CleanString(f.Year),
		), f

	case model.KindJournal:
		if f.Author == "" && f.Title == "" {
			f.Author, f.Title = JournalAuthorTitle(text, span.Start)
		}
		if f.Journal == "" {
			f.Journal = f.Reporter
		}
		return model.NewResourceKey(model.KindJournal,
			util.CleanString(f.Author),
			util.CleanString(f.Title),
			util.CleanString(f.Volume),
			util.CleanString(f.Journal),
			util.CleanString(f.Page),
			util.CleanString(f.Year),
		), f

	case model.KindSecondary:
		return model.NewResourceKey(model.KindSecondary, util.CleanString(tok.Text)), f

	case model.KindOther:
		return model.NewResourceKey(model.KindOther, util.CleanString(tok.Text)), f

	default:
		return model.NewResourceKey(model.KindOther, util.CleanString(tok.Text)), f
	}
}

// Normalized renders a token's citation in a canonical Bluebook-like form
func Normalized(tok model.Token) string {
	f := tok.Fields
	if !tok.Category.IsFull() {
		return util.CleanString(tok.Text)
	}

	switch tok.Kind {
	case model.KindCase, model.KindJournal:
		if f.Volume != "" && f.Reporter != "" && f.Page != "" {
			return fmt.Sprintf("%s %s %s", f.Volume, f.Reporter, f.Page)
		}
	case model.KindLaw:
		switch {
		case f.Reporter == "Pub. L." && f.Congress != "" && f.LawNumber != "":
			return fmt.Sprintf("Pub. L. No. %s-%s", f.Congress, f.LawNumber)
		case f.Reporter == "U.S. Const.":
			if f.Section != "" {
				return fmt.Sprintf("U.S. Const. %s, § %s", f.Title, f.Section)
			}
			return fmt.Sprintf("U.S. Const. %s", f.Title)
		case f.Section != "":
			return util.CleanString(fmt.Sprintf("%s %s § %s", f.Title, f.Reporter, f.Section))
		case f.Volume != "" && f.Page != "":
			return fmt.Sprintf("%s %s %s", f.Volume, f.Reporter, f.Page)
		}
	case model.KindSecondary, model.KindOther:
	}
	return util.CleanString(tok.Text)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

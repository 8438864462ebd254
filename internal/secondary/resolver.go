package secondary

import (
	"sort"
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
)

// Anchor is one citation on the document timeline that an Id. may refer
// to. Key and Family are set only for secondary anchors.
type Anchor struct {
	Span   model.Span
	Kind   model.Kind
	Key    model.ResourceKey
	Family Family
}

// Resolution partitions short forms by outcome
type Resolution struct {
	// Resolved short forms carry their antecedent key and family
	Resolved []Citation

	// Unresolved short forms found no antecedent
	Unresolved []Citation

	// NonSecondary holds Id. forms whose nearest preceding citation is
	// primary authority; they are not secondary references.
	NonSecondary []Citation
}

// Resolve binds each short form to a full citation. Id. and Ibid. take the
// nearest citation ending at or before them across upstream and secondary
// citations alike; supra matches a full citation's title; bare short forms
// match a full citation of the same family and volume.
func Resolve(fulls, shorts []Citation, upstream []Anchor) Resolution {
	timeline := make([]Anchor, 0, len(upstream)+len(fulls)+len(shorts))
	timeline = append(timeline, upstream...)
	for _, f := range fulls {
		timeline = append(timeline, Anchor{Span: f.Span, Kind: model.KindSecondary, Key: f.ResourceKey(), Family: f.Family})
	}

	ordered := make([]Citation, len(shorts))
	copy(ordered, shorts)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Span.Start < ordered[j].Span.Start })

	var res Resolution
	for _, s := range ordered {
		switch s.Category {
		case model.CategoryID:
			prev, ok := preceding(timeline, s.Span.Start)
			switch {
			case !ok:
				res.Unresolved = append(res.Unresolved, s)
				continue
			case prev.Kind != model.KindSecondary:
				s.Family = FamilyNonSecondary
				res.NonSecondary = append(res.NonSecondary, s)
				continue
			}
			s.Antecedent = prev.Key
			s.Family = prev.Family
		case model.CategorySupra:
			f, ok := bySupraTitle(fulls, s)
			if !ok {
				res.Unresolved = append(res.Unresolved, s)
				continue
			}
			s.Antecedent = f.ResourceKey()
			s.Family = f.Family
		default:
			f, ok := byVolume(fulls, s)
			if !ok {
				res.Unresolved = append(res.Unresolved, s)
				continue
			}
			s.Antecedent = f.ResourceKey()
			s.Title = f.Title
			s.Year = f.Year
			if s.Edition == "" {
				s.Edition = f.Edition
			}
		}

		res.Resolved = append(res.Resolved, s)
		timeline = append(timeline, Anchor{Span: s.Span, Kind: model.KindSecondary, Key: s.Antecedent, Family: s.Family})
	}
	return res
}

// preceding returns the anchor with the greatest end at or before pos
func preceding(timeline []Anchor, pos int) (Anchor, bool) {
	var best Anchor
	found := false
	for _, a := range timeline {
		if a.Span.End > pos {
			continue
		}
		if !found || a.Span.End > best.Span.End {
			best, found = a, true
		}
	}
	return best, found
}

func bySupraTitle(fulls []Citation, s Citation) (Citation, bool) {
	want := util.NormalizeWords(s.Title)
	if want == "" {
		return Citation{}, false
	}
	for i := len(fulls) - 1; i >= 0; i-- {
		f := fulls[i]
		if f.Span.Start >= s.Span.Start {
			continue
		}
		have := util.NormalizeWords(f.Title)
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return f, true
		}
	}
	return Citation{}, false
}

func byVolume(fulls []Citation, s Citation) (Citation, bool) {
	for i := len(fulls) - 1; i >= 0; i-- {
		f := fulls[i]
		if f.Span.Start >= s.Span.Start || f.Family != s.Family {
			continue
		}
		if s.Volume != "" && f.Volume != "" && s.Volume != f.Volume {
			continue
		}
		if differs(s.Edition, f.Edition) || differs(s.Series, f.Series) {
			continue
		}
		return f, true
	}
	return Citation{}, false
}

func differs(a, b string) bool {
	return a != "" && b != "" && !strings.EqualFold(a, b)
}

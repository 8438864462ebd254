package tokenize

import (
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
)

// Link binds each short, id., supra or reference token to the index of the
// full citation it refers to, searching backward. Tokens must be ordered by
// position with Index equal to their slice position. Unbound tokens keep
// Antecedent -1.
func Link(tokens []model.Token) {
	for i := range tokens {
		t := &tokens[i]
		t.Antecedent = -1

		switch t.Category {
		case model.CategoryFull:
			continue
		case model.CategoryID:
			if i > 0 {
				t.Antecedent = rootOf(tokens, i-1)
			}
		case model.CategoryShort:
			t.Antecedent = findShortAntecedent(tokens, i)
		case model.CategorySupra, model.CategoryReference:
			t.Antecedent = FindByName(tokens[:i], t.Fields.AntecedentGuess)
		}

		if t.Antecedent >= 0 {
			t.Kind = tokens[t.Antecedent].Kind
		}
	}
}

// rootOf returns the full citation token j refers to, or -1
func rootOf(tokens []model.Token, j int) int {
	if tokens[j].Category.IsFull() {
		return j
	}
	return tokens[j].Antecedent
}

// findShortAntecedent returns the nearest preceding full case with the same
// volume and reporter, preferring one whose parties match the short form's
// name.
func findShortAntecedent(tokens []model.Token, i int) int {
	short := tokens[i].Fields
	guess := util.NormalizeForCompare(short.AntecedentGuess)

	fallback := -1
	for j := i - 1; j >= 0; j-- {
		full := tokens[j]
		if !full.Category.IsFull() || full.Kind != model.KindCase {
			continue
		}
		if full.Fields.Volume != short.Volume || !SameReporter(full.Fields.Reporter, short.Reporter) {
			continue
		}
		if guess == "" || nameMatches(full.Fields, guess) {
			return j
		}
		if fallback < 0 {
			fallback = j
		}
	}
	return fallback
}

// FindByName returns the index of the last full token in tokens whose
// party, case name, author, or title contains name, or -1.
func FindByName(tokens []model.Token, name string) int {
	guess := util.NormalizeForCompare(name)
	if guess == "" {
		return -1
	}
	for j := len(tokens) - 1; j >= 0; j-- {
		if tokens[j].Category.IsFull() && nameMatches(tokens[j].Fields, guess) {
			return j
		}
	}
	return -1
}

func nameMatches(f model.Fields, normalized string) bool {
	for _, candidate := range []string{f.Plaintiff, f.Defendant, f.CaseName, f.Author, f.Title} {
		c := util.NormalizeForCompare(candidate)
		if c != "" && strings.Contains(c, normalized) {
			return true
		}
	}
	return false
}

// SameReporter compares reporter abbreviations ignoring spacing
func SameReporter(a, b string) bool {
	return strings.ReplaceAll(a, " ", "") == strings.ReplaceAll(b, " ", "")
}

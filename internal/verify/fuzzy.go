package verify

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/aonanj/citation-verifier/internal/util"
)

// PartialRatio scores, from 0 to 100, how well the shorter string matches
// the best-aligned window of the longer one.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	n := len(ra)
	short := string(ra)
	best := 0.0
	for i := 0; i+n <= len(rb); i++ {
		if r := ratio(short, string(rb[i:i+n])); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func ratio(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * float64(longest-d) / float64(longest)
}

// Similarity compares two names after normalization
func Similarity(a, b string) float64 {
	na, nb := util.NormalizeForCompare(a), util.NormalizeForCompare(b)
	if na == "" {
		na = strings.ToLower(a)
	}
	if nb == "" {
		nb = strings.ToLower(b)
	}
	return PartialRatio(na, nb)
}

// containsEither reports whether either normalized string contains the other
func containsEither(a, b string) bool {
	na, nb := util.NormalizeForCompare(a), util.NormalizeForCompare(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aonanj/citation-verifier/internal/model"
)

// Periods after these words do not end a sentence. Keys are lowercase
// without the trailing period.
var abbreviations = map[string]bool{
	"v": true, "vs": true, "id": true, "ibid": true, "al": true, "cf": true,
	"e.g": true, "i.e": true, "etc": true, "no": true, "nos": true,
	"cir": true, "ct": true, "supp": true, "app": true, "rev": true, "stat": true,
	"reg": true, "jur": true, "l": true, "j": true, "ann": true, "gen": true,
	"comp": true, "fed": true, "civ": true, "crim": true, "proc": true, "evid": true,
	"const": true, "amend": true, "art": true, "cl": true, "ch": true, "pt": true,
	"pub": true, "sec": true, "secs": true, "seq": true, "ed": true, "eds": true,
	"inc": true, "co": true, "corp": true, "ltd": true, "bd": true, "educ": true,
	"dist": true, "div": true, "super": true, "sup": true, "misc": true,
	"mr": true, "mrs": true, "ms": true, "dr": true, "st": true, "prof": true,
	"univ": true, "hosp": true, "ins": true, "mut": true, "mfg": true, "auth": true,
	"admin": true, "envtl": true, "transp": true, "dep't": true, "gov't": true,
	"ass'n": true, "int'l": true, "nat'l": true, "comm'n": true, "cnty": true,
	"ala": true, "ariz": true, "ark": true, "cal": true, "colo": true, "conn": true,
	"del": true, "fla": true, "ga": true, "haw": true, "ill": true, "ind": true,
	"kan": true, "ky": true, "la": true, "me": true, "md": true, "mass": true,
	"mich": true, "minn": true, "miss": true, "mo": true, "mont": true, "neb": true,
	"nev": true, "okla": true, "or": true, "pa": true, "tenn": true, "tex": true,
	"vt": true, "va": true, "wash": true, "wis": true, "wyo": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "aug": true, "sept": true,
	"oct": true, "nov": true, "dec": true,
}

// SplitSentences splits text into trimmed sentence spans. A sentence ends at
// '.', '?' or '!' followed by whitespace and an upper-case letter (or the end
// of the text), unless the period closes an abbreviation or an initial.
func SplitSentences(text string) []model.Span {
	var spans []model.Span
	start := 0
	for i := 0; i < len(text); i++ {
		if !IsSentenceEnd(text, i) {
			continue
		}
		if span, ok := trimSpan(text, start, i+1); ok {
			spans = append(spans, span)
		}
		start = i + 1
	}
	if span, ok := trimSpan(text, start, len(text)); ok {
		spans = append(spans, span)
	}
	return spans
}

// IsSentenceEnd reports whether the byte at i terminates a sentence
func IsSentenceEnd(text string, i int) bool {
	switch text[i] {
	case '?', '!':
	case '.':
		if IsAbbreviationAt(text, i) {
			return false
		}
	default:
		return false
	}

	rest := text[i+1:]
	trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
	if trimmed == "" {
		return true
	}
	if len(trimmed) == len(rest) {
		// No whitespace after the terminator
		return false
	}
	r, _ := utf8.DecodeRuneInString(trimmed)
	return unicode.IsUpper(r) || r == '"' || r == '“'
}

// IsAbbreviationAt reports whether the period at i closes an abbreviation,
// an initial such as "A.", or a dotted form such as "U.S.".
func IsAbbreviationAt(text string, i int) bool {
	word := wordBefore(text, i)
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		r, _ := utf8.DecodeRuneInString(word)
		return unicode.IsLetter(r)
	}
	if strings.Contains(word, ".") {
		// "U.S", "F.3d", "e.g"
		return !strings.HasSuffix(word, ")")
	}
	return abbreviations[strings.ToLower(word)]
}

// PrecedingBoundary returns the offset just after the nearest sentence or
// string-citation boundary before pos, or 0.
func PrecedingBoundary(text string, pos int) int {
	if pos > len(text) {
		pos = len(text)
	}
	for i := pos - 1; i >= 0; i-- {
		switch text[i] {
		case ';', '\n':
			return i + 1
		case '.', '?', '!':
			if text[i] == '.' && IsAbbreviationAt(text, i) {
				continue
			}
			if i+1 < len(text) && !unicode.IsSpace(rune(text[i+1])) {
				continue
			}
			return i + 1
		}
	}
	return 0
}

// wordBefore returns the run of non-space characters that ends at i
// (exclusive), without leading punctuation such as "(" or quotes.
func wordBefore(text string, i int) string {
	j := i
	for j > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:j])
		if unicode.IsSpace(r) || r == '(' || r == '[' || r == '"' || r == '“' || r == ',' {
			break
		}
		j -= size
	}
	return text[j:i]
}

func trimSpan(text string, start, end int) (model.Span, bool) {
	for start < end && isSpaceByte(text[start]) {
		start++
	}
	for end > start && isSpaceByte(text[end-1]) {
		end--
	}
	if start >= end {
		return model.Span{}, false
	}
	return model.Span{Start: start, End: end}, true
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

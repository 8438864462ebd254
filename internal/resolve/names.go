package resolve

import (
	"regexp"
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/segment"
	"github.com/aonanj/citation-verifier/internal/util"
)

const (
	nameWindow    = 300
	maxCourtChars = 22
)

var (
	baseWord    = `[A-Z][\w.\-&'/]*,?`
	connectors  = `(?:of|the|and|for|in|on|at|et|al\.?|ex|rel\.?|&)`
	namePattern = baseWord + `(?:\s+(?:` + baseWord + `|` + connectors + `))*`

	inRePattern   = regexp.MustCompile(`(In\s+re\s+` + namePattern + `)\s*$`)
	versusPattern = regexp.MustCompile(`(` + namePattern + `\s+v\.\s+` + namePattern + `)\s*$`)

	yearPattern       = regexp.MustCompile(`\b(?:17|18|19|20)\d{2}\b`)
	parentheticalHead = regexp.MustCompile(`^(?:,\s*[\d\-–, ]+)?\s*\(([^()]*)\)`)
	etAlPattern       = regexp.MustCompile(`(?i),?\s+et\s+al\.?$`)

	noiseSingle = map[string]bool{
		"see": true, "cf.": true, "cf": true, "compare": true, "but": true,
		"accord": true, "contra": true, "e.g.": true, "e.g": true,
	}
	noisePairs = map[[2]string]bool{
		{"see", "also"}:    true,
		{"see", "e.g."}:    true,
		{"but", "see"}:     true,
		{"but", "cf."}:     true,
		{"but", "compare"}: true,
	}
)

// CaseName returns the best name for a full case citation: the tokenizer's
// name, then its parties, then a name mined from the text before start.
func CaseName(f model.Fields, text string, start int) string {
	if name := util.CleanString(f.CaseName); name != "" {
		return name
	}
	if f.Plaintiff != "" && f.Defendant != "" {
		return util.CleanString(f.Plaintiff + " v. " + f.Defendant)
	}
	if f.Plaintiff != "" {
		if strings.HasPrefix(strings.ToLower(f.Plaintiff), "in re ") {
			return util.CleanString(f.Plaintiff)
		}
		return util.CleanString("In re " + f.Plaintiff)
	}
	return MineCaseName(text, start)
}

// MineCaseName looks for "In re X" or "X v. Y" ending at the last comma
// before start. Leading signal words are dropped. It returns "" when no
// plausible name is found.
func MineCaseName(text string, start int) string {
	if start <= 0 || start > len(text) {
		return ""
	}
	preceding := strings.TrimRight(text[:start], " \t\r\n")
	comma := strings.LastIndex(preceding, ",")
	if comma < 0 {
		return ""
	}
	caseSegment := strings.TrimRight(preceding[:comma], " \t\r\n")
	if caseSegment == "" {
		return ""
	}
	if len(caseSegment) > nameWindow {
		caseSegment = caseSegment[len(caseSegment)-nameWindow:]
	}

	if m := inRePattern.FindStringSubmatch(caseSegment); m != nil {
		return util.CleanString(m[1])
	}

	m := versusPattern.FindStringSubmatch(caseSegment)
	if m == nil {
		return ""
	}
	tokens := strings.Fields(m[1])
	idx := 0
	for idx < len(tokens) {
		current := strings.ToLower(strings.Trim(tokens[idx], ",;:"))
		if idx+1 < len(tokens) {
			next := strings.ToLower(strings.Trim(tokens[idx+1], ",;:"))
			if noisePairs[[2]string{current, next}] {
				idx += 2
				continue
			}
		}
		if noiseSingle[current] {
			idx++
			continue
		}
		break
	}

	candidate := strings.Join(tokens[idx:], " ")
	left, right, ok := strings.Cut(candidate, " v. ")
	if !ok || !hasUpper(left) || !hasUpper(right) {
		return ""
	}
	return candidate
}

// CourtYear reads the court and year from the parenthetical that follows
// a case citation ending at end, skipping an optional pin cite. Courts
// longer than a short abbreviation are discarded.
func CourtYear(text string, end int) (court, year string) {
	if end < 0 || end > len(text) {
		return "", ""
	}
	m := parentheticalHead.FindStringSubmatch(text[end:])
	if m == nil {
		return "", ""
	}
	inner := m[1]
	loc := yearPattern.FindStringIndex(inner)
	if loc == nil {
		return "", ""
	}
	year = inner[loc[0]:loc[1]]
	court = util.CleanString(strings.TrimRight(util.CleanString(inner[:loc[0]]), ",;"))
	if len(court) > maxCourtChars {
		court = ""
	}
	return court, year
}

// JournalAuthorTitle mines the author and title written before a journal
// citation starting at start. The text between the preceding sentence or
// string-citation boundary and the citation is split on commas: the last
// part is the title and everything before it is the author list.
func JournalAuthorTitle(text string, start int) (author, title string) {
	if start <= 0 || start > len(text) {
		return "", ""
	}
	fragment := text[segment.PrecedingBoundary(text, start):start]
	fragment = strings.NewReplacer(`"`, "", "“", "", "”", "").Replace(fragment)

	var parts []string
	for _, p := range strings.Split(fragment, ",") {
		if p = util.CleanString(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", ""
	}

	title = parts[len(parts)-1]
	if len(parts) > 1 {
		author = strings.Join(parts[:len(parts)-1], ", ")
	}
	author = stripLeadingSignal(author)
	author = util.CleanString(etAlPattern.ReplaceAllString(author, ""))
	if author == "" {
		title = stripLeadingSignal(title)
	}
	return author, title
}

// FirstParty returns the normalized first party of a case name, or the
// whole normalized name when it has no "v.".
func FirstParty(name string) string {
	if left, _, ok := strings.Cut(name, " v. "); ok {
		return util.NormalizeForCompare(left)
	}
	return util.NormalizeForCompare(name)
}

func stripLeadingSignal(s string) string {
	lower := strings.ToLower(s)
	for _, signal := range segment.SignalWords() {
		if strings.HasPrefix(lower, signal+" ") {
			return util.CleanString(s[len(signal):])
		}
	}
	return s
}

func hasUpper(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

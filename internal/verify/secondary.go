package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/secondary"
	"github.com/aonanj/citation-verifier/internal/util"
)

const (
	locSource = "library_of_congress"

	titleThreshold     = 72
	containerThreshold = 65
	authorThreshold    = 70

	secondaryVerified = 0.80
	secondaryWarning  = 0.60
	secondaryStop     = 0.85
)

// SecondaryRequest builds the verification request for a detected
// secondary-source citation
func SecondaryRequest(c secondary.Citation) model.VerifyRequest {
	return model.VerifyRequest{
		Token: model.Token{
			Category: c.Category,
			Kind:     model.KindSecondary,
			Text:     c.MatchedText,
		},
		NormalizedKey: c.Normalized(),
		Fallback:      c.MatchedText,
		Resource: model.Fields{
			Volume:  c.Volume,
			Title:   c.Title,
			Section: c.Section,
			Page:    c.Page,
			Year:    c.Year,
			Author:  c.Author,
		},
	}
}

// secondaryFields is what the catalog search matches on
type secondaryFields struct {
	family  secondary.Family
	volume  string
	title   string
	section string
	year    string
	author  string
	series  string
}

// SecondaryVerifier searches the Library of Congress catalog for
// encyclopedias, restatements, treatises and A.L.R. volumes and scores the
// results with fuzzy field matching.
type SecondaryVerifier struct {
	transport *Transport
	searchURL string
	detector  *secondary.Detector
	logger    *slog.Logger
}

// NewSecondaryVerifier creates a Library of Congress verifier
func NewSecondaryVerifier(transport *Transport, config model.ProviderConfig) *SecondaryVerifier {
	base := config.BaseURL
	if base == "" {
		base = "https://www.loc.gov"
	}
	return &SecondaryVerifier{
		transport: transport,
		searchURL: strings.TrimSuffix(base, "/") + "/search/",
		detector:  secondary.NewDetector(secondary.WithLogger(transport.logger)),
		logger:    transport.logger,
	}
}

// fields recovers family, edition and series by re-detecting the fallback
// text; request fields fill anything the detector left empty.
func (v *SecondaryVerifier) fields(req model.VerifyRequest) secondaryFields {
	f := fieldsOf(req)
	out := secondaryFields{
		family:  secondary.FamilyUnknown,
		volume:  util.CleanString(f.Volume),
		title:   util.CleanString(f.Title),
		section: util.CleanString(firstNonEmpty(f.Section, f.Page)),
		year:    util.CleanString(f.Year),
		author:  util.CleanString(f.Author),
	}

	if text := firstNonEmpty(req.Fallback, req.Token.Text); text != "" {
		if fulls, _ := v.detector.Detect(text, nil); len(fulls) > 0 {
			c := fulls[0]
			out.family = c.Family
			out.series = c.Series
			out.volume = firstNonEmpty(out.volume, c.Volume)
			out.title = firstNonEmpty(out.title, c.Title)
			out.section = firstNonEmpty(out.section, c.Section, c.Page)
			out.year = firstNonEmpty(out.year, c.Year)
			out.author = firstNonEmpty(out.author, c.Author)
		}
	}
	return out
}

// secondaryQueries builds search variants from most to least specific
func secondaryQueries(f secondaryFields) []string {
	var queries []string
	name := f.family.SourceName()

	if name != "" && f.title != "" && f.volume != "" {
		parts := []string{name, f.title, "volume " + f.volume}
		if f.section != "" {
			parts = append(parts, "section "+f.section)
		}
		if f.year != "" {
			parts = append(parts, f.year)
		}
		queries = append(queries, strings.Join(parts, " "))
	}
	if name != "" && f.title != "" && f.year != "" {
		queries = append(queries, name+" "+f.title+" "+f.year)
	}
	if name != "" && f.title != "" {
		queries = append(queries, name+" "+f.title)
	}
	if f.author != "" && f.title != "" {
		parts := []string{f.author, f.title}
		if f.year != "" {
			parts = append(parts, f.year)
		}
		queries = append(queries, strings.Join(parts, " "))
	}
	if f.title != "" {
		parts := []string{f.title}
		if f.volume != "" {
			parts = append(parts, "volume "+f.volume)
		}
		if f.year != "" {
			parts = append(parts, f.year)
		}
		queries = append(queries, strings.Join(parts, " "))
	}
	if f.family == secondary.FamilyALR && f.series != "" {
		q := "American Law Reports " + f.series
		if f.volume != "" {
			q += " volume " + f.volume
		}
		queries = append(queries, q)
	}
	return uniqueStrings(queries...)
}

// flexStrings decodes a JSON string or list of strings
type flexStrings []string

func (s *flexStrings) UnmarshalJSON(data []byte) error {
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		out := make(flexStrings, 0, len(list))
		for _, item := range list {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		*s = out
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*s = flexStrings{single}
		}
		return nil
	}
	// Objects and numbers carry nothing we match on
	return nil
}

type locResult struct {
	Title        string      `json:"title"`
	PartOf       flexStrings `json:"partof"`
	Date         string      `json:"date"`
	Contributor  flexStrings `json:"contributor"`
	Contributors flexStrings `json:"contributors"`
	URL          string      `json:"url"`
}

type locMatch struct {
	result     locResult
	confidence float64
	fields     []string
}

// Verify implements Verifier
func (v *SecondaryVerifier) Verify(ctx context.Context, req model.VerifyRequest) model.Result {
	f := v.fields(req)
	queries := secondaryQueries(f)
	if len(queries) == 0 {
		return model.Fail(model.SubInsufficientData, model.Details{
			"source": locSource,
			"family": string(f.family),
		})
	}

	v.logger.Debug("searching library of congress",
		slog.String("citation", citationText(req)),
		slog.Int("queries", len(queries)),
	)

	var (
		best    *locMatch
		errs    []string
		lastErr error
	)
	for _, q := range queries {
		results, err := v.search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return model.Fail(model.SubLookupFailed, model.Details{"source": locSource, "error": ctx.Err().Error()})
			}
			errs = append(errs, err.Error())
			lastErr = err
			continue
		}
		for _, r := range results {
			m, ok := scoreSecondary(f, r)
			if !ok {
				continue
			}
			if best == nil || m.confidence > best.confidence {
				best = &m
			}
			if m.confidence >= secondaryStop {
				break
			}
		}
		if best != nil && best.confidence >= secondaryStop {
			break
		}
	}

	if best == nil {
		if len(errs) == len(queries) {
			return model.Fail(substatusFor(lastErr), model.Details{
				"source":            locSource,
				"errors":            errs,
				"queries_attempted": len(queries),
			})
		}
		return model.NoMatch(model.SubNoMatch, model.Details{
			"source":            locSource,
			"queries_attempted": len(queries),
		})
	}

	details := model.Details{
		"source":         locSource,
		"confidence":     math.Round(best.confidence*1000) / 1000,
		"matched_fields": best.fields,
		"extracted": map[string]any{
			"family": string(f.family),
			"volume": f.volume,
			"title":  f.title,
			"author": f.author,
			"year":   f.year,
		},
		"library_of_congress": map[string]any{
			"title": best.result.Title,
			"date":  best.result.Date,
			"url":   best.result.URL,
		},
	}
	switch {
	case best.confidence >= secondaryVerified:
		return model.Verified(details)
	case best.confidence >= secondaryWarning:
		return model.Warn(model.SubInsufficientConfidence, details)
	default:
		return model.NoMatch(model.SubInsufficientConfidence, details)
	}
}

func (v *SecondaryVerifier) search(ctx context.Context, query string) ([]locResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("fo", "json")
	params.Set("at", "results,pagination")
	target := v.searchURL + "?" + params.Encode()

	var page struct {
		Results []locResult `json:"results"`
	}
	err := v.transport.retry(ctx, "library of congress search", func() error {
		page.Results = nil
		return v.transport.getJSON(ctx, target, nil, &page)
	})
	if err != nil {
		return nil, fmt.Errorf("loc search %q: %w", query, err)
	}
	return page.Results, nil
}

// scoreSecondary averages the per-field scores of one catalog record and
// reports whether enough fields agree for it to count as a match
func scoreSecondary(f secondaryFields, r locResult) (locMatch, bool) {
	title := util.CleanString(r.Title)
	partOf := util.CleanString(strings.Join(r.PartOf, " "))
	combined := strings.ToLower(title + " " + partOf)
	name := f.family.SourceName()

	var (
		scores  []float64
		matched []string
	)
	add := func(field string, score float64) {
		matched = append(matched, field)
		scores = append(scores, score)
	}

	if f.title != "" && title != "" {
		if s := Similarity(f.title, title); s >= titleThreshold {
			add("title", s/100)
		}
	}

	if name != "" && (title != "" || partOf != "") {
		if strings.Contains(combined, strings.ToLower(name)) {
			add("source", 1)
		} else if s := Similarity(name, partOf); s >= containerThreshold {
			add("source", s/100)
		}
	}

	if f.volume != "" {
		for _, p := range []string{"volume " + f.volume, "vol. " + f.volume, "v. " + f.volume} {
			if strings.Contains(combined, p) {
				add("volume", 1)
				break
			}
		}
	}

	contributors := append(append([]string{}, r.Contributor...), r.Contributors...)
	if f.author != "" && len(contributors) > 0 {
		bestAuthor := 0.0
		for _, c := range contributors {
			bestAuthor = max(bestAuthor, Similarity(f.author, c))
		}
		if bestAuthor >= authorThreshold {
			add("author", bestAuthor/100)
		}
	}

	if f.year != "" && r.Date != "" {
		if got := extractYear(r.Date); got == f.year {
			add("year", 1)
		} else if got != "" {
			want, err1 := strconv.Atoi(f.year)
			have, err2 := strconv.Atoi(got)
			if err1 == nil && err2 == nil && abs(want-have) <= 2 {
				add("year_approximate", 0.8)
			}
		}
	}

	if len(scores) == 0 {
		return locMatch{}, false
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	confidence := sum / float64(len(scores))

	has := func(field string) bool {
		for _, m := range matched {
			if m == field {
				return true
			}
		}
		return false
	}
	ok := (has("title") && confidence >= 0.7) ||
		(has("source") && has("volume") && confidence >= 0.6) ||
		(has("title") && has("source") && confidence >= 0.65)

	return locMatch{result: r, confidence: confidence, fields: matched}, ok
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

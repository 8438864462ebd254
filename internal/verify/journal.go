package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
)

const (
	openAlexSource        = "openalex"
	semanticScholarSource = "semantic_scholar"
	sourceNameThreshold   = 75
)

// Bluebook journal abbreviations expanded before a source-name search
var journalWords = map[string]string{
	"l.": "Law", "rev.": "Review", "j.": "Journal", "q.": "Quarterly", "u.": "University",
	"harv.": "Harvard", "colum.": "Columbia", "stan.": "Stanford", "mich.": "Michigan",
	"cal.": "California", "chi.": "Chicago", "va.": "Virginia", "geo.": "Georgetown",
	"tex.": "Texas", "pa.": "Pennsylvania", "nw.": "Northwestern", "n.y.u.": "New York University",
	"b.u.": "Boston University", "wash.": "Washington", "minn.": "Minnesota", "wis.": "Wisconsin",
	"ill.": "Illinois", "iowa": "Iowa", "fordham": "Fordham", "vand.": "Vanderbilt",
	"int'l": "International", "comp.": "Comparative", "const.": "Constitutional", "crim.": "Criminal",
	"envtl.": "Environmental", "tech.": "Technology", "pol'y": "Policy", "bus.": "Business",
	"sch.": "School", "ann.": "Annual", "am.": "American", "bull.": "Bulletin",
}

// JournalVerifier checks law-review and journal articles against OpenAlex
// and falls back to Semantic Scholar.
type JournalVerifier struct {
	transport *Transport
	openAlex  string
	mailto    string
	s2        string
	s2Key     string
	logger    *slog.Logger
}

// NewJournalVerifier creates a journal verifier
func NewJournalVerifier(transport *Transport, openAlex model.ProviderConfig, mailto string, semanticScholar model.ProviderConfig) *JournalVerifier {
	oa := openAlex.BaseURL
	if oa == "" {
		oa = "https://api.openalex.org"
	}
	s2 := semanticScholar.BaseURL
	if s2 == "" {
		s2 = "https://api.semanticscholar.org"
	}
	return &JournalVerifier{
		transport: transport,
		openAlex:  strings.TrimSuffix(oa, "/"),
		mailto:    strings.TrimSpace(mailto),
		s2:        strings.TrimSuffix(s2, "/"),
		s2Key:     strings.TrimSpace(semanticScholar.APIKey),
		logger:    transport.logger,
	}
}

type journalQuery struct {
	author, title, volume, journal, page string
}

func (q journalQuery) extracted() map[string]any {
	return map[string]any{
		"author":  q.author,
		"title":   q.title,
		"volume":  q.volume,
		"journal": q.journal,
		"page":    q.page,
	}
}

// Verify implements Verifier. Each strategy either verifies, offers a
// warning candidate, or fails; a warning is returned only when no strategy
// verifies.
func (v *JournalVerifier) Verify(ctx context.Context, req model.VerifyRequest) model.Result {
	f := fieldsOf(req)
	q := journalQuery{
		author:  util.CleanString(f.Author),
		title:   util.CleanString(f.Title),
		volume:  util.CleanString(f.Volume),
		journal: util.CleanString(firstNonEmpty(f.Journal, f.Reporter)),
		page:    util.CleanString(f.Page),
	}
	hasBiblio := q.volume != "" && q.journal != "" && q.page != ""
	if q.title == "" && !hasBiblio {
		return model.Fail(model.SubInsufficientData, model.Details{
			"source":    openAlexSource,
			"extracted": q.extracted(),
		})
	}

	var (
		candidate *model.Result
		failures  []error
	)
	strategies := []func(context.Context, journalQuery) (*model.Result, error){
		v.byTitle,
		v.bySource,
		v.semanticScholar,
	}
	for _, strategy := range strategies {
		res, err := strategy(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return model.Fail(model.SubLookupFailed, model.Details{"source": openAlexSource, "error": ctx.Err().Error()})
			}
			failures = append(failures, err)
			continue
		}
		if res == nil {
			continue
		}
		if res.Status == model.StatusVerified {
			return *res
		}
		if candidate == nil {
			candidate = res
		}
	}

	if candidate != nil {
		return *candidate
	}
	if len(failures) > 0 && len(failures) == len(strategies) {
		msgs := make([]string, len(failures))
		for i, err := range failures {
			msgs[i] = err.Error()
		}
		return model.Fail(substatusFor(failures[0]), model.Details{"source": openAlexSource, "errors": msgs})
	}
	return model.NoMatch(model.SubNoMatch, model.Details{"source": openAlexSource, "extracted": q.extracted()})
}

type oaAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type oaWork struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	DisplayName string         `json:"display_name"`
	Authorships []oaAuthorship `json:"authorships"`
	Biblio      struct {
		Volume    string `json:"volume"`
		FirstPage string `json:"first_page"`
	} `json:"biblio"`
}

func (w oaWork) title() string {
	return firstNonEmpty(w.Title, w.DisplayName)
}

func (w oaWork) authors() []string {
	names := make([]string, 0, len(w.Authorships))
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			names = append(names, a.Author.DisplayName)
		}
	}
	return names
}

type oaSource struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

func (v *JournalVerifier) openAlexURL(path string, params url.Values) string {
	if v.mailto != "" {
		params.Set("mailto", v.mailto)
	}
	return v.openAlex + path + "?" + params.Encode()
}

// byTitle searches works by quoted title and confirms an author
func (v *JournalVerifier) byTitle(ctx context.Context, q journalQuery) (*model.Result, error) {
	if q.title == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("filter", fmt.Sprintf("title.search:%q", q.title))
	params.Set("per-page", "25")

	var page struct {
		Results []oaWork `json:"results"`
	}
	if err := v.transport.retry(ctx, "openalex works", func() error {
		return v.transport.getJSON(ctx, v.openAlexURL("/works", params), nil, &page)
	}); err != nil {
		return nil, fmt.Errorf("openalex title search: %w", err)
	}

	var titleOnly *oaWork
	for i, w := range page.Results {
		if !containsEither(q.title, w.title()) {
			continue
		}
		if author, ok := matchAuthor(q.author, w.authors()); ok {
			return ptr(model.Verified(model.Details{
				"source":         openAlexSource,
				"work_id":        w.ID,
				"matched_author": author,
			})), nil
		}
		if titleOnly == nil {
			titleOnly = &page.Results[i]
		}
	}

	if titleOnly == nil {
		return nil, nil
	}
	return ptr(model.Warn(model.MismatchSubstatus("author"), model.Details{
		"source":    openAlexSource,
		"extracted": q.extracted(),
		"openalex": map[string]any{
			"work_id": titleOnly.ID,
			"title":   titleOnly.title(),
			"authors": titleOnly.authors(),
		},
	})), nil
}

// bySource resolves the journal to an OpenAlex source and looks the article
// up by volume and first page
func (v *JournalVerifier) bySource(ctx context.Context, q journalQuery) (*model.Result, error) {
	if q.volume == "" || q.journal == "" || q.page == "" {
		return nil, nil
	}

	sourceID, err := v.findSource(ctx, q.journal)
	if err != nil {
		return nil, err
	}
	if sourceID == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("filter", fmt.Sprintf("primary_location.source.id:%s,biblio.volume:%s,biblio.first_page:%s", sourceID, q.volume, q.page))
	params.Set("per-page", "25")

	var page struct {
		Results []oaWork `json:"results"`
	}
	if err := v.transport.retry(ctx, "openalex works", func() error {
		return v.transport.getJSON(ctx, v.openAlexURL("/works", params), nil, &page)
	}); err != nil {
		return nil, fmt.Errorf("openalex biblio search: %w", err)
	}

	for _, w := range page.Results {
		if w.Biblio.Volume == q.volume && w.Biblio.FirstPage == q.page {
			return ptr(model.Verified(model.Details{
				"source":    openAlexSource,
				"work_id":   w.ID,
				"source_id": sourceID,
				"title":     w.title(),
			})), nil
		}
	}
	return nil, nil
}

func (v *JournalVerifier) findSource(ctx context.Context, journal string) (string, error) {
	for _, name := range uniqueStrings(ExpandJournal(journal), journal) {
		params := url.Values{}
		params.Set("filter", "display_name.search:"+name)
		params.Set("per-page", "25")

		var page struct {
			Results []oaSource `json:"results"`
		}
		if err := v.transport.retry(ctx, "openalex sources", func() error {
			return v.transport.getJSON(ctx, v.openAlexURL("/sources", params), nil, &page)
		}); err != nil {
			return "", fmt.Errorf("openalex source search: %w", err)
		}
		if len(page.Results) == 0 {
			continue
		}
		first := page.Results[0]
		if Similarity(name, first.DisplayName) >= sourceNameThreshold {
			v.logger.Debug("openalex source matched", slog.String("journal", name), slog.String("source", first.DisplayName))
			return first.ID[strings.LastIndex(first.ID, "/")+1:], nil
		}
	}
	return "", nil
}

type s2Paper struct {
	PaperID string `json:"paperId"`
	Title   string `json:"title"`
	Venue   string `json:"venue"`
	Year    int    `json:"year"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Journal *struct {
		Name   string `json:"name"`
		Volume string `json:"volume"`
		Pages  string `json:"pages"`
	} `json:"journal"`
}

func (p s2Paper) authors() []string {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		names = append(names, a.Name)
	}
	return names
}

// semanticScholar tries several query variants against the graph search
func (v *JournalVerifier) semanticScholar(ctx context.Context, q journalQuery) (*model.Result, error) {
	var queries []string
	if q.title != "" {
		queries = append(queries, fmt.Sprintf("%q", q.title))
		if q.author != "" {
			queries = append(queries, q.title+" "+q.author)
		}
	}
	if q.journal != "" && q.volume != "" && q.page != "" {
		queries = append(queries, strings.Join([]string{ExpandJournal(q.journal), q.volume, q.page}, " "))
	}

	header := http.Header{}
	if v.s2Key != "" {
		header.Set("x-api-key", v.s2Key)
	}

	var (
		candidate *model.Result
		lastErr   error
		succeeded bool
	)
	for _, query := range queries {
		params := url.Values{}
		params.Set("query", query)
		params.Set("limit", "10")
		params.Set("fields", "title,authors,venue,year,journal")
		target := v.s2 + "/graph/v1/paper/search?" + params.Encode()

		var page struct {
			Data []s2Paper `json:"data"`
		}
		err := v.transport.retry(ctx, "semantic scholar search", func() error {
			return v.transport.getJSON(ctx, target, header, &page)
		})
		if err != nil {
			lastErr = err
			continue
		}
		succeeded = true

		for _, p := range page.Data {
			if res := v.matchPaper(q, p); res != nil {
				if res.Status == model.StatusVerified {
					return res, nil
				}
				if candidate == nil {
					candidate = res
				}
			}
		}
	}

	if candidate != nil {
		return candidate, nil
	}
	if !succeeded && lastErr != nil {
		return nil, fmt.Errorf("semantic scholar search: %w", lastErr)
	}
	return nil, nil
}

func (v *JournalVerifier) matchPaper(q journalQuery, p s2Paper) *model.Result {
	if p.Journal != nil && q.volume != "" && q.page != "" &&
		p.Journal.Volume == q.volume && firstPage(p.Journal.Pages) == q.page {
		return ptr(model.Verified(model.Details{
			"source":   semanticScholarSource,
			"paper_id": p.PaperID,
			"title":    p.Title,
		}))
	}

	if q.title == "" || !containsEither(q.title, p.Title) {
		return nil
	}
	if author, ok := matchAuthor(q.author, p.authors()); ok {
		return ptr(model.Verified(model.Details{
			"source":         semanticScholarSource,
			"paper_id":       p.PaperID,
			"matched_author": author,
		}))
	}
	return ptr(model.Warn(model.MismatchSubstatus("author"), model.Details{
		"source":    semanticScholarSource,
		"extracted": q.extracted(),
		"semantic_scholar": map[string]any{
			"paper_id": p.PaperID,
			"title":    p.Title,
			"authors":  p.authors(),
		},
	}))
}

// matchAuthor finds a listed author containing, or contained in, want
func matchAuthor(want string, authors []string) (string, bool) {
	if util.NormalizeForCompare(want) == "" {
		return "", false
	}
	for _, a := range authors {
		if containsEither(want, a) {
			return a, true
		}
	}
	return "", false
}

// ExpandJournal spells out common Bluebook journal abbreviations, e.g.
// "Harv. L. Rev." becomes "Harvard Law Review".
func ExpandJournal(abbrev string) string {
	words := strings.Fields(abbrev)
	for i, w := range words {
		if full, ok := journalWords[strings.ToLower(w)]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

func firstPage(pages string) string {
	pages = strings.TrimSpace(pages)
	if i := strings.IndexAny(pages, "-–"); i >= 0 {
		pages = pages[:i]
	}
	return strings.TrimSpace(pages)
}

func uniqueStrings(values ...string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func ptr(r model.Result) *model.Result {
	return &r
}

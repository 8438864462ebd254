package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
)

const (
	courtListenerSource = "courtlistener"
	caseNameThreshold   = 75
)

var (
	volumeReporterPage = regexp.MustCompile(`(?P<volume>\d+)\s+(?P<reporter>[\w.'-]+(?:\s[\w.'-]+)*?)\s+(?P<page>\d+)`)
	yearPattern        = regexp.MustCompile(`\b(1[6-9]\d{2}|20\d{2}|2100)\b`)
)

// CaseVerifier looks case citations up in the CourtListener citation
// lookup API and compares the case name and year.
type CaseVerifier struct {
	transport *Transport
	endpoint  string
	apiKey    string
	logger    *slog.Logger
}

// NewCaseVerifier creates a CourtListener verifier
func NewCaseVerifier(transport *Transport, config model.ProviderConfig) *CaseVerifier {
	base := config.BaseURL
	if base == "" {
		base = "https://www.courtlistener.com"
	}
	return &CaseVerifier{
		transport: transport,
		endpoint:  strings.TrimSuffix(base, "/") + "/api/rest/v4/citation-lookup/",
		apiKey:    strings.TrimSpace(config.APIKey),
		logger:    transport.logger,
	}
}

type clCluster struct {
	ID            int    `json:"id"`
	CaseName      string `json:"case_name"`
	CaseNameShort string `json:"case_name_short"`
	CaseNameFull  string `json:"case_name_full"`
	DateFiled     string `json:"date_filed"`
	AbsoluteURL   string `json:"absolute_url"`
}

type clResult struct {
	Citation     string      `json:"citation"`
	Status       int         `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Clusters     []clCluster `json:"clusters"`
}

func (c clCluster) name() string {
	return util.CleanString(firstNonEmpty(c.CaseName, c.CaseNameShort, c.CaseNameFull))
}

// Verify implements Verifier
func (v *CaseVerifier) Verify(ctx context.Context, req model.VerifyRequest) model.Result {
	f := fieldsOf(req)
	volume, reporter, page := v.lookupFields(f, citationText(req))
	lookup := map[string]any{"volume": volume, "reporter": reporter, "page": page}

	if volume == "" || reporter == "" || page == "" {
		return model.Fail(model.SubInsufficientData, model.Details{
			"source":         courtListenerSource,
			"lookup_request": lookup,
		})
	}
	if v.apiKey == "" {
		return model.Fail(model.SubMissingCredentials, model.Details{"source": courtListenerSource})
	}

	result, err := v.lookup(ctx, volume, reporter, page)
	if err != nil {
		sub := substatusFor(err)
		v.logger.Error("courtlistener lookup failed",
			slog.String("citation", citationText(req)),
			slog.String("substatus", sub),
			slog.String("error", err.Error()),
		)
		return model.Fail(sub, model.Details{"source": courtListenerSource, "lookup_request": lookup})
	}
	if result == nil || len(result.Clusters) == 0 {
		return model.NoMatch(model.SubNoMatch, model.Details{"source": courtListenerSource, "lookup_request": lookup})
	}

	cluster := result.Clusters[0]
	expectedName := util.CleanString(f.CaseName)
	if expectedName == "" && f.Plaintiff != "" && f.Defendant != "" {
		expectedName = f.Plaintiff + " v. " + f.Defendant
	}
	expectedYear := extractYear(f.Year)
	actualName := cluster.name()
	actualYear := extractYear(cluster.DateFiled)

	var mismatches []string
	if !namesMatch(expectedName, actualName) {
		mismatches = append(mismatches, "case_name")
	}
	if expectedYear != actualYear {
		mismatches = append(mismatches, "year")
	}

	if len(mismatches) > 0 {
		return model.Warn(model.MismatchSubstatus(mismatches[0]), model.Details{
			"source":            courtListenerSource,
			"mismatched_fields": mismatches,
			"extracted": map[string]any{
				"case_name": expectedName,
				"year":      expectedYear,
			},
			"court_listener": map[string]any{
				"case_name": actualName,
				"year":      actualYear,
			},
			"lookup_request": lookup,
		})
	}

	return model.Verified(model.Details{
		"source":     courtListenerSource,
		"cluster_id": cluster.ID,
		"case_name":  actualName,
	})
}

func (v *CaseVerifier) lookupFields(f model.Fields, text string) (volume, reporter, page string) {
	volume = util.CleanString(f.Volume)
	reporter = util.CleanString(f.Reporter)
	page = util.CleanString(f.Page)
	if volume != "" && reporter != "" && page != "" {
		return volume, reporter, page
	}

	if m := volumeReporterPage.FindStringSubmatch(text); m != nil {
		volume = firstNonEmpty(volume, m[volumeReporterPage.SubexpIndex("volume")])
		reporter = firstNonEmpty(reporter, m[volumeReporterPage.SubexpIndex("reporter")])
		page = firstNonEmpty(page, m[volumeReporterPage.SubexpIndex("page")])
	}
	return volume, reporter, page
}

// lookup posts the citation and returns the first result, or nil when
// CourtListener found nothing
func (v *CaseVerifier) lookup(ctx context.Context, volume, reporter, page string) (*clResult, error) {
	form := url.Values{}
	form.Set("volume", volume)
	form.Set("reporter", reporter)
	form.Set("page", page)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+v.apiKey)

	resp, err := v.transport.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("courtlistener request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, RetryAfter: retryAfter(resp.Header)}
	}

	body, err := v.transport.readBody(resp)
	if err != nil {
		return nil, err
	}
	return decodeLookup(body)
}

// decodeLookup accepts the v4 list payload and the older {"results": [...]} shape
func decodeLookup(body []byte) (*clResult, error) {
	var list []clResult
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return nil, nil
		}
		return &list[0], nil
	}

	var wrapped struct {
		Results []clResult `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	if len(wrapped.Results) == 0 {
		return nil, nil
	}
	return &wrapped.Results[0], nil
}

// namesMatch compares normalized case names; one missing side is a mismatch
func namesMatch(expected, actual string) bool {
	e, a := util.NormalizeForCompare(expected), util.NormalizeForCompare(actual)
	switch {
	case e == "" && a == "":
		return true
	case e == "" || a == "":
		return false
	case e == a:
		return true
	}
	return PartialRatio(e, a) >= caseNameThreshold
}

func extractYear(s string) string {
	return yearPattern.FindString(s)
}

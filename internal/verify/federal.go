package verify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
)

const (
	govInfoSource = "govinfo"

	// firstPublicLawCongress is the earliest Congress GovInfo publishes public laws for
	firstPublicLawCongress = 104
)

// Jurisdiction classifies a law citation
type Jurisdiction string

const (
	JurisdictionFederal Jurisdiction = "federal"
	JurisdictionState   Jurisdiction = "state"
	JurisdictionUnknown Jurisdiction = "unknown"
)

// Checked in order; the first hit decides
var federalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bU\.?\s*S\.?\s*C\.?(?:\s?A\.)?(?:\s|§|$)`),
	regexp.MustCompile(`(?i)\bU\.S\.\s+Code\b`),
	regexp.MustCompile(`(?i)\bC\.?\s*F\.?\s*R\.?(?:\s|§|$)`),
	regexp.MustCompile(`(?i)\bU\.?\s*S\.?\s*Const\.?`),
	regexp.MustCompile(`(?i)\bPub\.?\s*L\.`),
	regexp.MustCompile(`(?i)\bPublic\s+Law\b`),
	regexp.MustCompile(`(?i)^\d+\s+Stat\.\s+\d+$`),
	regexp.MustCompile(`(?i)\bFed\.?\s*Reg\.?`),
}

var stateMarkers = []string{
	"alabama", "alaska", "arizona", "arkansas", "california", "colorado", "connecticut", "delaware",
	"florida", "georgia", "hawaii", "idaho", "illinois", "indiana", "iowa", "kansas", "kentucky", "louisiana",
	"maine", "maryland", "massachusetts", "michigan", "minnesota", "mississippi", "missouri", "montana",
	"nebraska", "nevada", "new hampshire", "new jersey", "new mexico", "new york", "north carolina",
	"north dakota", "ohio", "oklahoma", "oregon", "pennsylvania", "rhode island", "south carolina",
	"south dakota", "tennessee", "texas", "utah", "vermont", "virginia", "washington", "west virginia",
	"wisconsin", "wyoming",
	`ala\.`, `ariz\.`, `ark\.`, `cal\.`, `colo\.`, `conn\.`, `del\.`, `fla\.`, `ga\.`, `haw\.`,
	`ill\.`, `ind\.`, `kan\.`, `ky\.`, `la\.`, `me\.`, `md\.`, `mass\.`, `mich\.`, `minn\.`,
	`miss\.`, `mo\.`, `mont\.`, `neb\.`, `nev\.`, `n\. ?h\.`, `n\. ?j\.`, `n\. ?m\.`, `n\. ?y\.`, `n\. ?c\.`,
	`n\. ?d\.`, `okla\.`, `or\.`, `pa\.`, `r\. ?i\.`, `s\. ?c\.`, `s\. ?d\.`, `tenn\.`, `tex\.`,
	`vt\.`, `va\.`, `wash\.`, `w\. ?va\.`, `wis\.`, `wyo\.`,
	`rev\.? ?stat\.?`, `gen\.? ?stat\.?`, `ann\.?`, "code", `comp\.? ?laws`, `stat\.? ann\.?`,
}

var stateRegex = func() *regexp.Regexp {
	alts := make([]string, len(stateMarkers))
	for i, m := range stateMarkers {
		if strings.HasSuffix(m, `.`) || strings.HasSuffix(m, `.?`) {
			alts[i] = m
		} else {
			alts[i] = m + `\b`
		}
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)`)
}()

var pubLawPattern = regexp.MustCompile(`(?i)pub\.?\s*l\.?\s*(?:no\.?\s*)?(?P<congress>\d+)[-–](?P<lawnum>\d+)`)

var cfrPartPattern = regexp.MustCompile(`^(\d+)(?:\.(\d+))?$`)

// ClassifyJurisdiction decides whether a law citation is federal, state,
// or unknown. Federal signals are checked first.
func ClassifyJurisdiction(f model.Fields, fallback string) Jurisdiction {
	if util.CleanString(f.Reporter) == "Stat." {
		return JurisdictionFederal
	}

	var parts []string
	for _, p := range []string{f.Title, f.Volume, f.Reporter, f.Code} {
		if p = util.CleanString(p); p != "" {
			parts = append(parts, p)
		}
	}
	text := strings.Join(parts, " ")
	if text == "" {
		text = util.CleanString(fallback)
	}

	for _, re := range federalPatterns {
		if re.MatchString(text) {
			return JurisdictionFederal
		}
	}
	if stateRegex.MatchString(text) {
		return JurisdictionState
	}
	return JurisdictionUnknown
}

// FederalVerifier fetches federal law through the GovInfo link service and
// accepts the citation when a PDF comes back.
type FederalVerifier struct {
	transport *Transport
	linkBase  string
	apiKey    string
	logger    *slog.Logger
}

// NewFederalVerifier creates a GovInfo verifier
func NewFederalVerifier(transport *Transport, config model.ProviderConfig) *FederalVerifier {
	base := config.BaseURL
	if base == "" {
		base = "https://www.govinfo.gov"
	}
	return &FederalVerifier{
		transport: transport,
		linkBase:  strings.TrimSuffix(base, "/") + "/link/",
		apiKey:    strings.TrimSpace(config.APIKey),
		logger:    transport.logger,
	}
}

// endpoint is a GovInfo link path plus its query
type endpoint struct {
	path  string
	query url.Values
}

// Verify implements Verifier
func (v *FederalVerifier) Verify(ctx context.Context, req model.VerifyRequest) model.Result {
	f := fieldsOf(req)
	text := citationText(req)

	if j := ClassifyJurisdiction(f, text); j != JurisdictionFederal {
		return model.Fail(model.SubUnsupportedJurisdiction, model.Details{"jurisdiction": string(j)})
	}

	ep, failure := buildEndpoint(f, text)
	if failure != nil {
		if text != "" {
			failure.Details["citation"] = text
		}
		return *failure
	}

	if v.apiKey != "" {
		ep.query.Set("api_key", v.apiKey)
	}
	target := v.linkBase + ep.path
	if len(ep.query) > 0 {
		target += "?" + ep.query.Encode()
	}
	details := model.Details{"source": govInfoSource, "endpoint": ep.path}

	if !v.transport.CheckRobots(ctx, target) {
		details["reason"] = "disallowed by robots.txt"
		return model.Fail(model.SubLookupForbidden, details)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return model.Fail(model.SubLookupFailed, details)
	}
	httpReq.Header.Set("Accept", "*/*")

	resp, err := v.transport.Do(ctx, httpReq)
	if err != nil {
		v.logger.Error("govinfo lookup failed", slog.String("endpoint", ep.path), slog.String("error", err.Error()))
		return model.Fail(model.SubLookupFailed, details)
	}
	defer func() { _ = resp.Body.Close() }()

	details["status_code"] = resp.StatusCode
	if resp.StatusCode == http.StatusBadRequest {
		return model.NoMatch(model.SubNoMatch, details)
	}
	if sub, ok := statusSubstatus(resp.StatusCode); ok {
		v.logger.Error("govinfo lookup rejected", slog.String("endpoint", ep.path), slog.Int("status", resp.StatusCode))
		return model.Fail(sub, details)
	}
	if resp.StatusCode != http.StatusOK {
		return model.NoMatch(model.SubNoMatch, details)
	}

	body, err := v.transport.readBody(resp)
	if err != nil {
		return model.Fail(model.SubLookupFailed, details)
	}

	contentType := resp.Header.Get("Content-Type")
	if len(body) == 0 || !strings.Contains(strings.ToLower(contentType), "pdf") || !bytes.HasPrefix(body, []byte("%PDF")) {
		details["content_type"] = contentType
		details["content_length"] = len(body)
		return model.NoMatch(model.SubNoMatch, details)
	}

	return model.Verified(model.Details{"source": govInfoSource, "endpoint": ep.path})
}

// buildEndpoint maps a federal citation onto its GovInfo link path
func buildEndpoint(f model.Fields, text string) (*endpoint, *model.Result) {
	insufficient := func(required ...string) *model.Result {
		r := model.Fail(model.SubInsufficientData, model.Details{"source": govInfoSource, "required_fields": required})
		return &r
	}

	reporter := util.CleanString(f.Reporter)
	switch reporter {
	case "U.S.C.":
		title := util.CleanString(f.Title)
		section := util.StripSection(f.Section)
		if title == "" || section == "" {
			return nil, insufficient("title", "section")
		}
		return &endpoint{path: fmt.Sprintf("uscode/%s/%s", title, section), query: url.Values{}}, nil

	case "C.F.R.":
		title := util.CleanString(firstNonEmpty(f.Title, f.Volume, f.Chapter))
		section := util.StripSection(firstNonEmpty(f.Section, f.Page))
		m := cfrPartPattern.FindStringSubmatch(section)
		if title == "" || m == nil {
			return nil, insufficient("title", "section")
		}
		q := url.Values{}
		if m[2] != "" {
			q.Set("sectionnum", m[2])
		}
		return &endpoint{path: fmt.Sprintf("cfr/%s/%s", title, m[1]), query: q}, nil

	case "Stat.":
		volume := util.CleanString(firstNonEmpty(f.Volume, f.Title))
		page := util.StripSection(firstNonEmpty(f.Page, f.Section))
		if volume == "" || page == "" {
			return nil, insufficient("volume", "page")
		}
		return &endpoint{path: fmt.Sprintf("statute/%s/%s", volume, page), query: url.Values{}}, nil

	case "Fed. Reg.":
		volume := util.CleanString(firstNonEmpty(f.Volume, f.Title))
		page := util.StripSection(firstNonEmpty(f.Page, f.Section))
		if volume == "" || page == "" {
			return nil, insufficient("volume", "page")
		}
		return &endpoint{path: fmt.Sprintf("fr/%s/%s", volume, page), query: url.Values{}}, nil

	case "Pub. L.", "Pub. L. No.":
		congress := util.CleanString(f.Congress)
		lawnum := util.CleanString(f.LawNumber)
		if congress == "" || lawnum == "" {
			if m := pubLawPattern.FindStringSubmatch(text); m != nil {
				congress = firstNonEmpty(congress, m[pubLawPattern.SubexpIndex("congress")])
				lawnum = firstNonEmpty(lawnum, m[pubLawPattern.SubexpIndex("lawnum")])
			}
		}
		if congress == "" || lawnum == "" {
			return nil, insufficient("congress", "lawnum")
		}
		if n, err := strconv.Atoi(congress); err == nil && n < firstPublicLawCongress {
			r := model.Fail(model.SubPredatesAvailableData, model.Details{"source": govInfoSource, "congress": congress})
			return nil, &r
		}
		return &endpoint{path: fmt.Sprintf("plaw/%s/public/%s", congress, lawnum), query: url.Values{}}, nil

	default:
		r := model.Fail(model.SubUnsupportedReporter, model.Details{"source": govInfoSource, "reporter": reporter})
		return nil, &r
	}
}

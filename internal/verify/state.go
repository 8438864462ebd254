package verify

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aonanj/citation-verifier/internal/llm"
	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
)

// Confidence thresholds for research verdicts
const (
	verifiedConfidence = 0.85
	warningConfidence  = 0.50
)

// StateVerifier asks a research assistant whether a state statute, code
// section, or regulation exists and is in effect. The compiler always runs
// it on the background pool.
type StateVerifier struct {
	assistant llm.Provider
	domains   []string
	logger    *slog.Logger
}

// NewStateVerifier creates a state-law verifier. A nil assistant makes
// every lookup fail with missing_credentials.
func NewStateVerifier(assistant llm.Provider, allowedDomains []string, logger *slog.Logger) *StateVerifier {
	if len(allowedDomains) == 0 {
		allowedDomains = llm.DefaultConfig().AllowedDomains
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StateVerifier{assistant: assistant, domains: allowedDomains, logger: logger}
}

// Verify implements Verifier
func (v *StateVerifier) Verify(ctx context.Context, req model.VerifyRequest) model.Result {
	f := fieldsOf(req)
	reporter := util.CleanString(firstNonEmpty(f.Reporter, f.Code))
	section := util.StripSection(firstNonEmpty(f.Section, f.Page))
	if reporter == "" || section == "" {
		return model.Fail(model.SubInsufficientData, model.Details{
			"source":          "llm",
			"required_fields": []string{"reporter", "section"},
		})
	}

	citation := reporter + " § " + section
	if title := util.CleanString(firstNonEmpty(f.Title, f.Chapter)); title != "" {
		citation = title + " " + citation
	}
	if year := util.CleanString(f.Year); year != "" {
		citation += " (" + year + ")"
	}

	if v.assistant == nil {
		return model.Fail(model.SubMissingCredentials, model.Details{"source": "llm", "citation": citation})
	}

	source := v.assistant.Name()
	resp, err := v.assistant.Research(ctx, llm.ResearchRequest{
		Citation:       citation,
		AllowedDomains: v.domains,
	})
	if err != nil {
		details := model.Details{"source": source, "citation": citation, "error": err.Error()}
		switch {
		case errors.Is(err, llm.ErrNoCredentials):
			return model.Fail(model.SubMissingCredentials, details)
		case errors.Is(err, llm.ErrInvalidVerdict), errors.Is(err, llm.ErrDisallowedSource):
			return model.Fail(model.SubLookupInvalidPayload, details)
		default:
			v.logger.Error("state law research failed", slog.String("citation", citation), slog.String("error", err.Error()))
			return model.Fail(model.SubLookupFailed, details)
		}
	}

	return verdictResult(resp, source, citation)
}

// verdictResult maps a research verdict onto a result. A confidence score
// decides on its own; otherwise the model's status is used as given.
func verdictResult(resp *llm.ResearchResponse, source, citation string) model.Result {
	verdict := resp.Verdict
	details := model.Details{
		"source":        source,
		"model":         resp.Model,
		"extracted":     map[string]any{"citation": citation},
		"closest_match": verdict.Citation,
	}
	if len(resp.CitedURLs) > 0 {
		details["cited_urls"] = resp.CitedURLs
	}

	if verdict.Confidence != nil {
		c := *verdict.Confidence
		details["confidence"] = c
		switch {
		case c >= verifiedConfidence:
			return model.Verified(details)
		case c >= warningConfidence:
			return model.Warn(model.SubInsufficientConfidence, details)
		default:
			return model.NoMatch(model.SubNoMatch, details)
		}
	}

	switch strings.ReplaceAll(verdict.Status, " ", "_") {
	case string(model.StatusVerified):
		return model.Verified(details)
	case string(model.StatusWarning):
		return model.Warn(model.SubInsufficientConfidence, details)
	case string(model.StatusNoMatch):
		return model.NoMatch(model.SubNoMatch, details)
	case string(model.StatusError):
		return model.Fail(model.SubLookupFailed, details)
	default:
		return model.Fail(model.SubLookupInvalidPayload, details)
	}
}

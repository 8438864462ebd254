package model

// Status is the shared five-state verification vocabulary
type Status string

const (
	StatusVerified Status = "verified"
	StatusWarning  Status = "warning"
	StatusNoMatch  Status = "no_match"
	StatusPending  Status = "pending"
	StatusError    Status = "error"
)

// IsTerminal reports whether no further update is expected
func (s Status) IsTerminal() bool {
	return s != StatusPending && s != ""
}

// Substatus values surfaced with a status
const (
	SubInsufficientData        = "insufficient_citation_data"
	SubUnsupportedType         = "unsupported_citation_type"
	SubUnsupportedJurisdiction = "unsupported_jurisdiction"
	SubUnsupportedReporter     = "unsupported_reporter"
	SubMissingCredentials      = "missing_credentials"
	SubLookupFailed            = "lookup_failed"
	SubLookupAuthFailed        = "lookup_auth_failed"
	SubLookupForbidden         = "lookup_forbidden"
	SubLookupRateLimited       = "lookup_rate_limited"
	SubLookupServiceError      = "lookup_service_error"
	SubLookupInvalidPayload    = "lookup_invalid_payload"
	SubNoMatch                 = "no_match"
	SubShortFormUnresolved     = "short_form_unresolved"
	SubStateLawAsyncFailed     = "state_law_async_failed"
	SubStateLawPending         = "state_law_verification_pending"
	SubPredatesAvailableData   = "citation_predates_available_data"
	SubInsufficientConfidence  = "insufficient_confidence"
)

// MismatchSubstatus returns the substatus for a disagreeing field
func MismatchSubstatus(field string) string {
	return field + "_mismatch"
}

// UnsupportedSubstatus returns the substatus for a type without a provider
func UnsupportedSubstatus(entryType string) string {
	return entryType + "_verification_unsupported"
}

// Details carries provider-specific evidence for a verification outcome
type Details map[string]any

// Result is a single verification outcome
type Result struct {
	Status    Status  `json:"status"`
	Substatus string  `json:"substatus,omitempty"`
	Details   Details `json:"verification_details,omitempty"`
}

// Verified returns a verified result with optional details
func Verified(details Details) Result {
	return Result{Status: StatusVerified, Details: details}
}

// Warn returns a warning result
func Warn(substatus string, details Details) Result {
	return Result{Status: StatusWarning, Substatus: substatus, Details: details}
}

// NoMatch returns a no_match result
func NoMatch(substatus string, details Details) Result {
	return Result{Status: StatusNoMatch, Substatus: substatus, Details: details}
}

// Fail returns an error result
func Fail(substatus string, details Details) Result {
	return Result{Status: StatusError, Substatus: substatus, Details: details}
}

// VerifyRequest is what the compiler hands a provider for one bucket
type VerifyRequest struct {
	// Token is the bucket's representative token
	Token Token

	// NormalizedKey is the normalized citation string
	NormalizedKey string

	// Resource holds the canonical fields bound to the resource key
	Resource Fields

	// Fallback is the raw matched text
	Fallback string
}

// Occurrence records one appearance of an authority in the document
type Occurrence struct {
	Category         Category `json:"category"`
	MatchedText      string   `json:"matched_text"`
	Span             Span     `json:"span"`
	Index            int      `json:"index"`
	PinCite          string   `json:"pin_cite,omitempty"`
	StringGroupID    string   `json:"string_group_id,omitempty"`
	PositionInString *int     `json:"position_in_string,omitempty"`
}

// Entry is the compiled record for one resource key
type Entry struct {
	ResourceKey        ResourceKey  `json:"resource_key"`
	Type               string       `json:"type"`
	Status             Status       `json:"status"`
	Substatus          string       `json:"substatus,omitempty"`
	NormalizedCitation string       `json:"normalized_citation"`
	Details            Details      `json:"verification_details,omitempty"`
	Occurrences        []Occurrence `json:"occurrences"`
}

// Apply copies a verification result onto the entry
func (e *Entry) Apply(r Result) {
	e.Status = r.Status
	e.Substatus = r.Substatus
	e.Details = r.Details
}

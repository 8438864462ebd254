package verify

import (
	"github.com/aonanj/citation-verifier/internal/llm"
	"github.com/aonanj/citation-verifier/internal/model"
)

// Provider names used in metrics, spans, and verification details
const (
	ProviderCourtListener = "courtlistener"
	ProviderGovInfo       = "govinfo"
	ProviderLLM           = "llm"
	ProviderOpenAlex      = "openalex"
	ProviderLOC           = "library_of_congress"
)

// Providers is one verifier per citation kind
type Providers struct {
	Case      Verifier
	Federal   Verifier
	State     Verifier
	Journal   Verifier
	Secondary Verifier
}

// NewProviders builds instrumented verifiers sharing one transport, so
// rate limits and cooldowns apply across providers. A nil assistant leaves
// state law without credentials.
func NewProviders(cfg *model.Config, assistant llm.Provider, opts ...Option) *Providers {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	t := NewTransport(cfg.HTTP, cfg.RateLimiting, opts...)
	p := cfg.Providers

	return &Providers{
		Case:      Instrument(ProviderCourtListener, NewCaseVerifier(t, p.CourtListener)),
		Federal:   Instrument(ProviderGovInfo, NewFederalVerifier(t, p.GovInfo)),
		State:     Instrument(ProviderLLM, NewStateVerifier(assistant, cfg.LLM.AllowedDomains, t.logger)),
		Journal:   Instrument(ProviderOpenAlex, NewJournalVerifier(t, p.OpenAlex, p.OpenAlexMailto, p.SemanticScholar)),
		Secondary: Instrument(ProviderLOC, NewSecondaryVerifier(t, p.LibraryOfCongress)),
	}
}

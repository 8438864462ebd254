package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aonanj/citation-verifier/internal/llm"
	"github.com/aonanj/citation-verifier/internal/model"
)

type fakeAssistant struct {
	resp *llm.ResearchResponse
	err  error
	got  llm.ResearchRequest
}

func (f *fakeAssistant) Name() string { return "fake" }

func (f *fakeAssistant) Research(ctx context.Context, req llm.ResearchRequest) (*llm.ResearchResponse, error) {
	f.got = req
	return f.resp, f.err
}

func (f *fakeAssistant) IsAvailable(ctx context.Context) bool { return true }

func confidence(c float64) *float64 { return &c }

func stateRequest() model.VerifyRequest {
	return model.VerifyRequest{
		Token: model.Token{
			Kind:   model.KindLaw,
			Fields: model.Fields{Reporter: "Cal. Civ. Code", Section: "§ 1714", Year: "2020"},
		},
		NormalizedKey: "Cal. Civ. Code § 1714",
	}
}

func TestStateVerifier_Research(t *testing.T) {
	assistant := &fakeAssistant{resp: &llm.ResearchResponse{
		Model:     "test-model",
		CitedURLs: []string{"https://law.justia.com/codes/california/civ/1714/"},
		Verdict:   llm.Verdict{Status: "verified", Citation: "Cal. Civ. Code § 1714", Confidence: confidence(0.92)},
	}}
	v := NewStateVerifier(assistant, nil, nil)

	res := v.Verify(context.Background(), stateRequest())

	assert.Equal(t, model.StatusVerified, res.Status)
	assert.Equal(t, "Cal. Civ. Code § 1714 (2020)", assistant.got.Citation)
	assert.Equal(t, []string{"law.justia.com", "law.cornell.edu", "codes.findlaw.com"}, assistant.got.AllowedDomains)
	assert.Equal(t, "fake", res.Details["source"])
	assert.Equal(t, "Cal. Civ. Code § 1714", res.Details["closest_match"])
}

func TestStateVerifier_Failures(t *testing.T) {
	tests := []struct {
		desc    string
		err     error
		wantSub string
	}{
		{desc: "no credentials", err: llm.ErrNoCredentials, wantSub: model.SubMissingCredentials},
		{desc: "unparsable answer", err: llm.ErrInvalidVerdict, wantSub: model.SubLookupInvalidPayload},
		{desc: "disallowed source", err: llm.ErrDisallowedSource, wantSub: model.SubLookupInvalidPayload},
		{desc: "api failure", err: errors.New("openai: 500"), wantSub: model.SubLookupFailed},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			v := NewStateVerifier(&fakeAssistant{err: test.err}, nil, nil)
			res := v.Verify(context.Background(), stateRequest())

			assert.Equal(t, model.StatusError, res.Status)
			assert.Equal(t, test.wantSub, res.Substatus)
		})
	}
}

func TestStateVerifier_WithoutAssistant(t *testing.T) {
	v := NewStateVerifier(nil, nil, nil)
	res := v.Verify(context.Background(), stateRequest())

	assert.Equal(t, model.StatusError, res.Status)
	assert.Equal(t, model.SubMissingCredentials, res.Substatus)
}

func TestStateVerifier_InsufficientData(t *testing.T) {
	v := NewStateVerifier(&fakeAssistant{}, nil, nil)
	res := v.Verify(context.Background(), model.VerifyRequest{
		Token: model.Token{Kind: model.KindLaw, Fields: model.Fields{Reporter: "Cal. Civ. Code"}},
	})

	assert.Equal(t, model.StatusError, res.Status)
	assert.Equal(t, model.SubInsufficientData, res.Substatus)
}

func TestVerdictResult(t *testing.T) {
	tests := []struct {
		desc          string
		verdict       llm.Verdict
		wantStatus    model.Status
		wantSubstatus string
	}{
		{desc: "high confidence", verdict: llm.Verdict{Status: "no_match", Confidence: confidence(0.9)}, wantStatus: model.StatusVerified},
		{desc: "at verified threshold", verdict: llm.Verdict{Confidence: confidence(0.85)}, wantStatus: model.StatusVerified},
		{desc: "middling confidence", verdict: llm.Verdict{Status: "verified", Confidence: confidence(0.6)}, wantStatus: model.StatusWarning, wantSubstatus: model.SubInsufficientConfidence},
		{desc: "at warning threshold", verdict: llm.Verdict{Confidence: confidence(0.5)}, wantStatus: model.StatusWarning, wantSubstatus: model.SubInsufficientConfidence},
		{desc: "low confidence", verdict: llm.Verdict{Status: "verified", Confidence: confidence(0.2)}, wantStatus: model.StatusNoMatch, wantSubstatus: model.SubNoMatch},
		{desc: "status only", verdict: llm.Verdict{Status: "verified"}, wantStatus: model.StatusVerified},
		{desc: "spaced no match", verdict: llm.Verdict{Status: "no match"}, wantStatus: model.StatusNoMatch, wantSubstatus: model.SubNoMatch},
		{desc: "warning status", verdict: llm.Verdict{Status: "warning"}, wantStatus: model.StatusWarning, wantSubstatus: model.SubInsufficientConfidence},
		{desc: "error status", verdict: llm.Verdict{Status: "error"}, wantStatus: model.StatusError, wantSubstatus: model.SubLookupFailed},
		{desc: "unknown status", verdict: llm.Verdict{Status: "maybe"}, wantStatus: model.StatusError, wantSubstatus: model.SubLookupInvalidPayload},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			res := verdictResult(&llm.ResearchResponse{Verdict: test.verdict}, "fake", "Cal. Civ. Code § 1714")

			require.Equal(t, test.wantStatus, res.Status)
			assert.Equal(t, test.wantSubstatus, res.Substatus)
			assert.Contains(t, res.Details, "extracted")
			assert.Contains(t, res.Details, "closest_match")
		})
	}
}

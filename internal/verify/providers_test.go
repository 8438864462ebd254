package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aonanj/citation-verifier/internal/model"
)

func TestNewProviders_Defaults(t *testing.T) {
	p := NewProviders(nil, nil)
	require.NotNil(t, p)

	for name, v := range map[string]Verifier{
		"case": p.Case, "federal": p.Federal, "state": p.State, "journal": p.Journal, "secondary": p.Secondary,
	} {
		assert.NotNil(t, v, name)
	}

	// Without an assistant state law cannot be researched
	res := p.State.Verify(context.Background(), stateRequest())
	assert.Equal(t, model.StatusError, res.Status)
	assert.Equal(t, model.SubMissingCredentials, res.Substatus)

	// Without a CourtListener token cases are not looked up
	res = p.Case.Verify(context.Background(), brownRequest())
	assert.Equal(t, model.SubMissingCredentials, res.Substatus)
}

func TestInstrument_PassesResultThrough(t *testing.T) {
	want := model.Warn("year_mismatch", model.Details{"source": "test"})
	v := Instrument("test", VerifierFunc(func(ctx context.Context, req model.VerifyRequest) model.Result {
		return want
	}))

	assert.Equal(t, want, v.Verify(context.Background(), brownRequest()))
}

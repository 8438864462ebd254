package verify

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/aonanj/citation-verifier/internal/model"
)

func TestInstrument_CountsByStatus(t *testing.T) {
	verified := verificationsTotal.WithLabelValues("metrics_test", string(model.StatusVerified))
	failed := verificationsTotal.WithLabelValues("metrics_test", string(model.StatusError))
	beforeVerified := testutil.ToFloat64(verified)
	beforeFailed := testutil.ToFloat64(failed)

	next := model.Verified(nil)
	v := Instrument("metrics_test", VerifierFunc(func(ctx context.Context, req model.VerifyRequest) model.Result {
		return next
	}))

	v.Verify(context.Background(), brownRequest())
	v.Verify(context.Background(), brownRequest())
	next = model.Fail(model.SubLookupFailed, nil)
	res := v.Verify(context.Background(), brownRequest())

	assert.Equal(t, model.SubLookupFailed, res.Substatus, "results pass through unchanged")
	assert.Equal(t, beforeVerified+2, testutil.ToFloat64(verified))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
	assert.Positive(t, testutil.CollectAndCount(verificationDuration, "citeverify_verification_duration_seconds"))
}

package verify

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aonanj/citation-verifier/internal/model"
)

var tracer = otel.Tracer("citeverify.verify")

var (
	// verificationsTotal counts verifications by provider and outcome
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citeverify_verifications_total",
		Help: "Total citation verifications by provider and status",
	}, []string{"provider", "status"})

	// verificationDuration tracks provider latency
	verificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "citeverify_verification_duration_seconds",
		Help:    "Citation verification duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"provider"})
)

type instrumented struct {
	provider string
	next     Verifier
}

// Instrument wraps v with a trace span and verification metrics
func Instrument(provider string, v Verifier) Verifier {
	return &instrumented{provider: provider, next: v}
}

func (i *instrumented) Verify(ctx context.Context, req model.VerifyRequest) model.Result {
	ctx, span := tracer.Start(ctx, "verify."+i.provider,
		trace.WithAttributes(
			attribute.String("citation.kind", req.Token.Kind.String()),
			attribute.String("citation.normalized", citationText(req)),
		),
	)
	defer span.End()

	start := time.Now()
	res := i.next.Verify(ctx, req)
	verificationDuration.WithLabelValues(i.provider).Observe(time.Since(start).Seconds())
	verificationsTotal.WithLabelValues(i.provider, string(res.Status)).Inc()

	span.SetAttributes(
		attribute.String("verify.status", string(res.Status)),
		attribute.String("verify.substatus", res.Substatus),
	)
	if res.Status == model.StatusError {
		span.SetStatus(codes.Error, res.Substatus)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return res
}

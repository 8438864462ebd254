// Package score summarizes a compiled report by verification status.
package score

import (
	"math"

	"github.com/aonanj/citation-verifier/internal/model"
)

// Scorer counts entries per status and grades the report
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate builds the summary for a set of entries
func (s *Scorer) Calculate(citations map[string]*model.Entry) model.Summary {
	var sum model.Summary
	for _, e := range citations {
		if e == nil {
			continue
		}
		sum.Total++
		sum.Occurrences += len(e.Occurrences)

		switch e.Status {
		case model.StatusVerified:
			sum.Verified++
		case model.StatusWarning:
			sum.Warning++
		case model.StatusNoMatch:
			sum.NoMatch++
		case model.StatusPending:
			sum.Pending++
		case model.StatusError:
			sum.Error++
		}
	}

	// Errors say nothing about the citation itself, so they do not count
	// against the ratio
	checked := sum.Verified + sum.Warning + sum.NoMatch
	if checked > 0 {
		ratio := float64(sum.Verified) / float64(checked)
		sum.VerifiedRatio = math.Round(ratio*1000) / 1000
	}
	sum.Confidence = s.determineConfidence(sum.VerifiedRatio, checked, sum.NoMatch)
	return sum
}

// determineConfidence grades how far the report can be trusted
func (s *Scorer) determineConfidence(ratio float64, checked, noMatch int) string {
	if checked < 3 {
		return "low"
	}

	switch {
	case ratio >= 0.8 && noMatch == 0:
		return "high"
	case ratio >= 0.6:
		return "medium"
	default:
		return "low"
	}
}

// Summarize fills in report.Summary
func Summarize(report *model.Report) {
	if report == nil {
		return
	}
	report.Summary = NewScorer().Calculate(report.Citations)
}

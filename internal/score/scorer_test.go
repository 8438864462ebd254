package score

import (
	"testing"

	"github.com/aonanj/citation-verifier/internal/model"
)

func entries(statuses ...model.Status) map[string]*model.Entry {
	out := make(map[string]*model.Entry, len(statuses))
	for i, s := range statuses {
		out[string(rune('a'+i))] = &model.Entry{
			Status:      s,
			Occurrences: make([]model.Occurrence, i+1),
		}
	}
	return out
}

func TestScorer_Calculate_Counts(t *testing.T) {
	scorer := NewScorer()

	sum := scorer.Calculate(entries(
		model.StatusVerified, model.StatusVerified, model.StatusWarning,
		model.StatusNoMatch, model.StatusPending, model.StatusError,
	))

	if sum.Total != 6 {
		t.Errorf("Expected total 6, got %d", sum.Total)
	}
	// 1+2+3+4+5+6
	if sum.Occurrences != 21 {
		t.Errorf("Expected 21 occurrences, got %d", sum.Occurrences)
	}
	if sum.Verified != 2 || sum.Warning != 1 || sum.NoMatch != 1 || sum.Pending != 1 || sum.Error != 1 {
		t.Errorf("Unexpected counts: %+v", sum)
	}
	if sum.VerifiedRatio != 0.5 {
		t.Errorf("Expected ratio 0.5, got %v", sum.VerifiedRatio)
	}
}

func TestScorer_Calculate_Empty(t *testing.T) {
	sum := NewScorer().Calculate(nil)

	if sum.Total != 0 || sum.VerifiedRatio != 0 {
		t.Errorf("Expected empty summary, got %+v", sum)
	}
	if sum.Confidence != "low" {
		t.Errorf("Expected low confidence, got %s", sum.Confidence)
	}
}

func TestScorer_DetermineConfidence(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		desc    string
		ratio   float64
		checked int
		noMatch int
		want    string
	}{
		{desc: "too few checked", ratio: 1, checked: 2, want: "low"},
		{desc: "all verified", ratio: 1, checked: 10, want: "high"},
		{desc: "verified with a miss", ratio: 0.9, checked: 10, noMatch: 1, want: "medium"},
		{desc: "mostly verified", ratio: 0.65, checked: 10, noMatch: 2, want: "medium"},
		{desc: "mostly unverified", ratio: 0.3, checked: 10, noMatch: 7, want: "low"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := scorer.determineConfidence(tt.ratio, tt.checked, tt.noMatch); got != tt.want {
				t.Errorf("determineConfidence(%v, %d, %d) = %s, want %s", tt.ratio, tt.checked, tt.noMatch, got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	report := &model.Report{Citations: entries(model.StatusVerified, model.StatusVerified, model.StatusVerified)}
	Summarize(report)

	if report.Summary.Total != 3 || report.Summary.Confidence != "high" {
		t.Errorf("Unexpected summary: %+v", report.Summary)
	}

	// nil is a no-op
	Summarize(nil)
}

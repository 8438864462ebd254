package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_StringCitation(t *testing.T) {
	text := "Smith v. Jones, 123 F.3d 45 (9th Cir. 1997); Doe v. Roe, 1 F.3d 1 (1st Cir. 1990)."
	s := New(DefaultConfig())

	spans := s.Detect(text)
	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len(text), spans[0].End)

	segments, err := s.Split(text[spans[0].Start:spans[0].End], spans[0].Start, "string_group_0")
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, "Smith v. Jones, 123 F.3d 45 (9th Cir. 1997)", segments[0].Text)
	assert.Equal(t, "Doe v. Roe, 1 F.3d 1 (1st Cir. 1990).", segments[1].Text)
	for i, seg := range segments {
		require.NotNil(t, seg.Position)
		assert.Equal(t, i, *seg.Position)
		assert.Equal(t, "string_group_0", seg.GroupID)
		assert.True(t, seg.Boundary)
		assert.Equal(t, seg.Text, text[seg.Span.Start:seg.Span.End])
	}
}

func TestDetect_NotStringCitation(t *testing.T) {
	tests := []struct {
		desc string
		text string
	}{
		{
			desc: "single case citation",
			text: "Brown v. Board of Education, 347 U.S. 483 (1954).",
		},
		{
			desc: "semicolon inside parenthetical",
			text: "Brown v. Board of Education, 347 U.S. 483 (1954) (holding that separate is unequal; Doe v. Roe noted).",
		},
		{
			desc: "prose semicolon",
			text: "The court was persuaded by the record; it therefore reversed the judgment below.",
		},
		{
			desc: "too short",
			text: "A; B v. C.",
		},
		{
			desc: "empty",
			text: "   ",
		},
	}

	s := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Empty(t, s.Detect(tt.text))
		})
	}
}

func TestDetect_SignalWithSemicolon(t *testing.T) {
	text := "See 42 U.S.C. § 1983; cf. Monroe v. Pape, 365 U.S. 167 (1961)."
	s := New(DefaultConfig())
	assert.Len(t, s.Detect(text), 1)
}

func TestDetect_MinSemicolons(t *testing.T) {
	text := "Smith v. Jones, 123 F.3d 45 (9th Cir. 1997); Doe v. Roe, 1 F.3d 1 (1st Cir. 1990)."
	s := New(Config{MinSemicolons: 2})
	assert.Empty(t, s.Detect(text))
}

func TestSplit_EmptyInput(t *testing.T) {
	s := New(DefaultConfig())
	_, err := s.Split("  \n ", 10, "g")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestSplit_AbsoluteSpans(t *testing.T) {
	text := "Smith v. Jones, 1 F.3d 2 (1990);   Doe v. Roe, 3 F.3d 4 (1991)"
	s := New(DefaultConfig())

	segments, err := s.Split(text, 100, "g")
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, 0, *segments[0].Position)
	assert.Equal(t, 1, *segments[1].Position)
	for _, seg := range segments {
		assert.Equal(t, seg.Text, text[seg.Span.Start-100:seg.Span.End-100])
	}
}

func TestSplit_ParentheticalNeverSplit(t *testing.T) {
	text := "Smith v. Jones, 1 F.3d 2 (1990) (citing Able v. Baker; Carr v. Dunn); Doe v. Roe, 3 F.3d 4 (1991)"
	s := New(DefaultConfig())

	segments, err := s.Split(text, 0, "g")
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Contains(t, segments[0].Text, "Able v. Baker; Carr v. Dunn")
}

// Consecutive segments must tile the string citation: the bytes between
// them are only separators.
func TestSplit_SegmentsPartitionSpan(t *testing.T) {
	texts := []string{
		"Smith v. Jones, 123 F.3d 45 (9th Cir. 1997); Doe v. Roe, 1 F.3d 1 (1st Cir. 1990).",
		"See Able v. Baker, 1 U.S. 1 (1800); Carr v. Dunn, 2 U.S. 2 (1801); id. at 5; 42 U.S.C. § 1983.",
		"  Smith v. Jones, 1 F.3d 2 (1990) (a; b);   Doe v. Roe, 3 F.3d 4 (1991)  ",
	}

	s := New(DefaultConfig())
	for _, text := range texts {
		segments, err := s.Split(text, 7, "g")
		require.NoError(t, err)
		require.NotEmpty(t, segments)

		prevEnd := 7 + len(text) - len(strings.TrimLeft(text, " "))
		for _, seg := range segments {
			require.GreaterOrEqual(t, seg.Span.Start, prevEnd)
			gap := text[prevEnd-7 : seg.Span.Start-7]
			assert.Empty(t, strings.Trim(gap, "; \t\n"), "gap %q", gap)
			prevEnd = seg.Span.End
		}
		tail := text[prevEnd-7:]
		assert.Empty(t, strings.TrimSpace(tail))
	}
}

func TestSegment_AssignsGroupIDs(t *testing.T) {
	text := "Smith v. Jones, 1 F.3d 2 (1990); Doe v. Roe, 3 F.3d 4 (1991). " +
		"The court agreed. Able v. Baker, 5 F.3d 6 (1992); Carr v. Dunn, 7 F.3d 8 (1993)."
	s := New(DefaultConfig())

	segments, errs := s.Segment(text)
	require.Empty(t, errs)
	require.Len(t, segments, 4)
	assert.Equal(t, "string_group_0", segments[0].GroupID)
	assert.Equal(t, "string_group_0", segments[1].GroupID)
	assert.Equal(t, "string_group_1", segments[2].GroupID)
	assert.Equal(t, 0, *segments[2].Position)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		desc string
		text string
		want []string
	}{
		{
			desc: "abbreviations do not split",
			text: "Brown v. Board of Education, 347 U.S. 483 (1954). Id. at 490.",
			want: []string{"Brown v. Board of Education, 347 U.S. 483 (1954).", "Id. at 490."},
		},
		{
			desc: "initials do not split",
			text: "A. Author, Article Title, 75 Rev. 617 (2010). Next sentence.",
			want: []string{"A. Author, Article Title, 75 Rev. 617 (2010).", "Next sentence."},
		},
		{
			desc: "lowercase continuation",
			text: "It was decided in 1990. and then appealed.",
			want: []string{"It was decided in 1990. and then appealed."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var got []string
			for _, span := range SplitSentences(tt.text) {
				got = append(got, tt.text[span.Start:span.End])
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrecedingBoundary(t *testing.T) {
	text := "Prior sentence ends here. See A. Author, Article Title, 75 Rev. 617 (2010)."
	pos := strings.Index(text, "75 Rev.")
	start := PrecedingBoundary(text, pos)
	assert.Equal(t, " See A. Author, Article Title, ", text[start:pos])

	text = "Smith v. Jones, 1 F.3d 2 (1990); B. Writer, Title Here, 9 L. Rev. 1 (2001)."
	pos = strings.Index(text, "9 L. Rev.")
	start = PrecedingBoundary(text, pos)
	assert.Equal(t, " B. Writer, Title Here, ", text[start:pos])
}

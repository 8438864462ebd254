package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the closed set of citation families the engine knows about.
type Kind int

const (
	KindOther Kind = iota
	KindCase
	KindLaw
	KindJournal
	KindSecondary
)

func (k Kind) String() string {
	switch k {
	case KindCase:
		return "case"
	case KindLaw:
		return "law"
	case KindJournal:
		return "journal"
	case KindSecondary:
		return "secondary"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText renders the kind as its lowercase name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Category classifies a token by how it refers to an authority
type Category string

const (
	CategoryFull      Category = "full"
	CategoryShort     Category = "short"
	CategorySupra     Category = "supra"
	CategoryID        Category = "id"
	CategoryReference Category = "reference"
)

// IsFull reports whether the category denotes a full citation
func (c Category) IsFull() bool {
	return c == CategoryFull
}

// DocumentID identifies one compiled document
type DocumentID = uuid.UUID

// NewDocumentID returns a fresh document identifier
func NewDocumentID() DocumentID {
	return uuid.New()
}

// Span is a half-open byte range [Start, End) in a document
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Shift returns the span translated by offset
func (s Span) Shift(offset int) Span {
	return Span{Start: s.Start + offset, End: s.End + offset}
}

// Overlaps reports whether two spans share at least one byte
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Len returns the span length
func (s Span) Len() int {
	return s.End - s.Start
}

// Loc is a self-contained location: a span inside a specific document.
type Loc struct {
	Span     Span       `json:"span"`
	Document DocumentID `json:"document_id"`
}

// Fields holds the structured groups a tokenizer extracted for a citation.
// Unused fields stay empty.
type Fields struct {
	Reporter        string `json:"reporter,omitempty"`
	Volume          string `json:"volume,omitempty"`
	Page            string `json:"page,omitempty"`
	Section         string `json:"section,omitempty"`
	Title           string `json:"title,omitempty"`
	Chapter         string `json:"chapter,omitempty"`
	Code            string `json:"code,omitempty"`
	Year            string `json:"year,omitempty"`
	Court           string `json:"court,omitempty"`
	Plaintiff       string `json:"plaintiff,omitempty"`
	Defendant       string `json:"defendant,omitempty"`
	CaseName        string `json:"case_name,omitempty"`
	Author          string `json:"author,omitempty"`
	Journal         string `json:"journal,omitempty"`
	PinCite         string `json:"pin_cite,omitempty"`
	Congress        string `json:"congress,omitempty"`
	LawNumber       string `json:"lawnum,omitempty"`
	AntecedentGuess string `json:"antecedent_guess,omitempty"`
}

// Token is a typed citation produced by a tokenizer.
type Token struct {
	Index    int      `json:"index"`
	Category Category `json:"category"`
	Kind     Kind     `json:"kind"`
	Text     string   `json:"text"`
	Loc      Loc      `json:"loc"`
	Fields   Fields   `json:"fields"`

	// Antecedent is the index of the full token the tokenizer bound this
	// short form to, or -1.
	Antecedent int `json:"antecedent"`
}

// Span returns the token's document span
func (t Token) Span() Span {
	return t.Loc.Span
}

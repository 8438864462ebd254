// Package tokenize turns plain text into typed citation tokens.
package tokenize

import (
	"context"

	"github.com/aonanj/citation-verifier/internal/model"
)

// Tokenizer finds citations in text. Returned tokens carry spans relative
// to text, consecutive indexes starting at 0, and an Antecedent index for
// every short form the tokenizer could bind.
type Tokenizer interface {
	Tokenize(ctx context.Context, text string, doc model.DocumentID) ([]model.Token, error)
}

// Scanner lists citations without binding short forms. The resolver falls
// back to Scan when Tokenize fails so no citation is lost.
type Scanner interface {
	Scan(text string, doc model.DocumentID) []model.Token
}

// Package extract turns document bytes into the plain text the compiler
// reads. Format-specific adapters live in extract/adapters.
package extract

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var (
	// ErrUnsupportedFormat is returned for documents no adapter can read
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrNoText is returned when a document yields only whitespace
	ErrNoText = errors.New("document contains no text")
)

// Extractor converts a document to plain text. filename may be empty; it
// only hints at the format.
type Extractor interface {
	Extract(data []byte, filename string) (string, error)
}

// ExtractorFunc adapts a function to Extractor
type ExtractorFunc func(data []byte, filename string) (string, error)

// Extract calls f
func (f ExtractorFunc) Extract(data []byte, filename string) (string, error) {
	return f(data, filename)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainText decodes UTF-8 text, dropping a byte-order mark and
// normalizing line endings. Invalid sequences are replaced.
func PlainText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// Elements whose contents are never visible
var hiddenElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"template": true, "svg": true, "head": true,
}

// Elements that end a line of text
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "pre": true,
	"table": true, "ul": true, "ol": true, "dd": true, "dt": true,
}

// VisibleText returns the text under n, skipping scripts and styles.
// Block elements become line breaks so sentences in separate paragraphs
// stay apart.
func VisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hiddenElements[n.Data] {
			return
		}

		if n.Type == html.TextNode {
			if buf.Len() > 0 && !endsWithSpace(buf.String()) && startsWord(n.Data) {
				buf.WriteString(" ")
			}
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				buf.WriteString(text)
				if endsWithSpaceRaw(n.Data) {
					buf.WriteString(" ")
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n")
		}
	}

	walk(n)
	return CollapseBlankLines(buf.String())
}

// CollapseBlankLines trims every line and drops empty ones
func CollapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func endsWithSpace(s string) bool {
	return strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n")
}

// startsWord reports whether raw text began with whitespace, meaning it is
// a separate word from whatever precedes it
func startsWord(raw string) bool {
	r, _ := utf8.DecodeRuneInString(raw)
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

func endsWithSpaceRaw(raw string) bool {
	r, _ := utf8.DecodeLastRuneInString(raw)
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

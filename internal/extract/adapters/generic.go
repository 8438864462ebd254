package adapters

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/aonanj/citation-verifier/internal/extract"
)

// TextAdapter reads plain-text documents. It is the registry fallback.
type TextAdapter struct{}

// NewTextAdapter creates a plain-text adapter
func NewTextAdapter() *TextAdapter {
	return &TextAdapter{}
}

// Name returns the adapter name
func (a *TextAdapter) Name() string {
	return "text"
}

// CanHandle accepts any text/* content
func (a *TextAdapter) CanHandle(filename string, contentType string) bool {
	return strings.HasPrefix(contentType, "text/")
}

// Extract decodes the bytes as UTF-8
func (a *TextAdapter) Extract(data []byte, filename string) (string, error) {
	return extract.PlainText(data), nil
}

// HTMLAdapter extracts the visible text of any HTML page
type HTMLAdapter struct {
	BaseAdapter
}

// NewHTMLAdapter creates an HTML adapter
func NewHTMLAdapter() *HTMLAdapter {
	return &HTMLAdapter{}
}

// Name returns the adapter name
func (a *HTMLAdapter) Name() string {
	return "html"
}

// CanHandle accepts HTML and XHTML
func (a *HTMLAdapter) CanHandle(filename string, contentType string) bool {
	return contentType == "text/html" || contentType == "application/xhtml+xml"
}

// Extract returns the page text, skipping navigation chrome
func (a *HTMLAdapter) Extract(data []byte, filename string) (string, error) {
	doc, err := a.ParseHTML(data)
	if err != nil {
		return "", err
	}
	a.Remove(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && (n.Data == "nav" || n.Data == "footer")
	})
	return extract.VisibleText(doc), nil
}

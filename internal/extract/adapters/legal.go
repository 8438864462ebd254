package adapters

import (
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/aonanj/citation-verifier/internal/extract"
)

// LegalAdapter extracts the opinion or statute body from pages saved from
// legal research sites, dropping headnotes, navigation, and page chrome.
type LegalAdapter struct {
	BaseAdapter
	legalMarkers []string
	bodyClasses  []string
	chromeRoles  map[string]bool
}

// NewLegalAdapter creates a new legal document adapter
func NewLegalAdapter() *LegalAdapter {
	return &LegalAdapter{
		legalMarkers: []string{
			"courtlistener", "law.cornell.edu", "justia", "casetext",
			"findlaw", "govinfo", "opinion", "statute",
		},
		bodyClasses: []string{
			"opinion-body", "opinion", "plaintext", "statute", "codes-content",
		},
		chromeRoles: map[string]bool{
			"navigation":  true,
			"banner":      true,
			"contentinfo": true,
			"search":      true,
		},
	}
}

// Name returns the adapter name
func (a *LegalAdapter) Name() string {
	return "legal"
}

// CanHandle checks for an HTML file named after a legal source. URLs are
// matched too, since fetched pages pass their URL as the filename.
func (a *LegalAdapter) CanHandle(filename string, contentType string) bool {
	if contentType != "text/html" && contentType != "application/xhtml+xml" {
		return false
	}
	lower := strings.ToLower(filename)
	base := strings.ToLower(filepath.Base(filename))
	for _, marker := range a.legalMarkers {
		if strings.Contains(lower, marker) || strings.Contains(base, marker) {
			return true
		}
	}
	return false
}

// Extract returns the text of the main opinion or statute container
func (a *LegalAdapter) Extract(data []byte, filename string) (string, error) {
	doc, err := a.ParseHTML(data)
	if err != nil {
		return "", err
	}

	a.Remove(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		switch n.Data {
		case "nav", "header", "footer", "aside", "form":
			return true
		}
		return a.chromeRoles[a.GetAttribute(n, "role")]
	})

	// Focus on the opinion container when the site marks one
	body := a.FindFirst(doc, func(n *html.Node) bool {
		for _, class := range a.bodyClasses {
			if a.HasClass(n, class) {
				return true
			}
		}
		return false
	})

	if body == nil {
		body = a.FindFirst(doc, func(n *html.Node) bool {
			return n.Type == html.ElementNode &&
				(n.Data == "main" || n.Data == "article" || a.GetAttribute(n, "role") == "main")
		})
	}

	if body == nil {
		body = doc
	}

	return extract.VisibleText(body), nil
}

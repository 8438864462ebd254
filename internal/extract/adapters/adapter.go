package adapters

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/aonanj/citation-verifier/internal/extract"
)

// Adapter extracts text from one document format
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter can read the named document
	CanHandle(filename string, contentType string) bool

	// Extract returns the document's plain text
	Extract(data []byte, filename string) (string, error)
}

// Registry picks an adapter per document and implements extract.Extractor
type Registry struct {
	adapters []Adapter
	fallback Adapter
}

// NewRegistry creates a registry with the built-in adapters
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
	}

	// Most specific first
	registry.Register(NewLegalAdapter())
	registry.Register(NewHTMLAdapter())

	registry.fallback = NewTextAdapter()

	return registry
}

// Register registers a new adapter
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the adapter for the document, falling back to plain text
func (r *Registry) FindAdapter(filename string, contentType string) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(filename, contentType) {
			return adapter
		}
	}
	if r.fallback.CanHandle(filename, contentType) {
		return r.fallback
	}
	return nil
}

// Extract implements extract.Extractor
func (r *Registry) Extract(data []byte, filename string) (string, error) {
	contentType := DetectContentType(data, filename)
	adapter := r.FindAdapter(filename, contentType)
	if adapter == nil {
		return "", fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, contentType)
	}

	text, err := adapter.Extract(data, filename)
	if err != nil {
		return "", fmt.Errorf("%s adapter: %w", adapter.Name(), err)
	}
	if strings.TrimSpace(text) == "" {
		return "", extract.ErrNoText
	}
	return text, nil
}

var _ extract.Extractor = (*Registry)(nil)

// DetectContentType uses the file extension when it is known and sniffs
// the bytes otherwise. Parameters such as charset are dropped.
func DetectContentType(data []byte, filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", ".md":
		return "text/plain"
	case ".html", ".htm", ".xhtml":
		return "text/html"
	}
	return MediaType(http.DetectContentType(data))
}

// MediaType strips parameters from a Content-Type header value
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// BaseAdapter provides HTML helpers shared by adapters
type BaseAdapter struct{}

// ParseHTML parses HTML bytes into a node tree
func (b *BaseAdapter) ParseHTML(data []byte) (*html.Node, error) {
	return html.Parse(strings.NewReader(extract.PlainText(data)))
}

// GetAttribute gets an attribute value from a node
func (b *BaseAdapter) GetAttribute(n *html.Node, attrKey string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}

// HasClass checks if a node has a specific CSS class
func (b *BaseAdapter) HasClass(n *html.Node, className string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, class := range strings.Fields(b.GetAttribute(n, "class")) {
		if class == className {
			return true
		}
	}
	return false
}

// FindFirst finds the first node matching a predicate
func (b *BaseAdapter) FindFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	var result *html.Node

	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if predicate(node) {
			result = node
			return true
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}

	walk(n)
	return result
}

// Remove detaches every node matching a predicate
func (b *BaseAdapter) Remove(n *html.Node, predicate func(*html.Node) bool) {
	var doomed []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			doomed = append(doomed, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	for _, node := range doomed {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

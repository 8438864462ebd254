package extract

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func parseHTML(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("Failed to parse HTML: %v", err)
	}
	return doc
}

func TestVisibleText_SkipInvisibleElements(t *testing.T) {
	doc := parseHTML(t, `
	<html>
	<head>
		<title>Opinion</title>
		<script>var x = "script content";</script>
		<style>body { color: red; }</style>
	</head>
	<body>
		<p>See <i>Brown v. Board of Education</i>, 347 U.S. 483 (1954).</p>
		<noscript>Noscript content</noscript>
		<iframe src="example.com">Iframe content</iframe>
		<p>Id. at 490.</p>
	</body>
	</html>
	`)

	text := VisibleText(doc)

	want := "See Brown v. Board of Education, 347 U.S. 483 (1954).\nId. at 490."
	if text != want {
		t.Errorf("VisibleText() = %q, want %q", text, want)
	}

	for _, hidden := range []string{"script content", "color: red", "Noscript", "Iframe", "Opinion"} {
		if strings.Contains(text, hidden) {
			t.Errorf("Should not extract %q", hidden)
		}
	}
}

func TestVisibleText_InlineSpacing(t *testing.T) {
	tests := []struct {
		desc string
		html string
		want string
	}{
		{desc: "adjacent spans", html: `<span>Smith</span> <span>v. Jones</span>`, want: "Smith v. Jones"},
		{desc: "split word", html: `<b>Sec</b>tion`, want: "Section"},
		{desc: "line break", html: `42 U.S.C.<br>§ 1983`, want: "42 U.S.C.\n§ 1983"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := VisibleText(parseHTML(t, tt.html)); got != tt.want {
				t.Errorf("VisibleText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		desc string
		data []byte
		want string
	}{
		{desc: "bom and crlf", data: []byte("\xEF\xBB\xBFline one\r\nline two"), want: "line one\nline two"},
		{desc: "bare cr", data: []byte("a\rb"), want: "a\nb"},
		{desc: "invalid utf8", data: []byte("ok \xff"), want: "ok �"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := PlainText(tt.data); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractorFunc(t *testing.T) {
	var e Extractor = ExtractorFunc(func(data []byte, filename string) (string, error) {
		return filename + ":" + string(data), nil
	})

	got, err := e.Extract([]byte("text"), "brief.txt")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "brief.txt:text" {
		t.Errorf("Unexpected result: %s", got)
	}
}

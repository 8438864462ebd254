package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aonanj/citation-verifier/internal/model"
)

func journalRequest() model.VerifyRequest {
	return model.VerifyRequest{
		Token: model.Token{
			Kind: model.KindJournal,
			Fields: model.Fields{
				Author:  "Samuel D. Warren & Louis D. Brandeis",
				Title:   "The Right to Privacy",
				Volume:  "4",
				Journal: "Harv. L. Rev.",
				Page:    "193",
			},
		},
		NormalizedKey: "Warren & Brandeis, The Right to Privacy, 4 Harv. L. Rev. 193",
	}
}

// journalServer serves OpenAlex and Semantic Scholar from one handler
type journalServer struct {
	works   func(filter string) string
	sources string
	s2      func(query string) (int, string)
	queries []string
}

func (js *journalServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/works":
			assert.Equal(t, "test@example.com", q.Get("mailto"))
			_, _ = fmt.Fprint(w, js.works(q.Get("filter")))
		case "/sources":
			_, _ = fmt.Fprint(w, js.sources)
		case "/graph/v1/paper/search":
			js.queries = append(js.queries, q.Get("query"))
			assert.Equal(t, "s2-key", r.Header.Get("x-api-key"))
			status, body := js.s2(q.Get("query"))
			w.WriteHeader(status)
			_, _ = fmt.Fprint(w, body)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestJournalVerifier(t *testing.T, base string) *JournalVerifier {
	t.Helper()
	return NewJournalVerifier(testTransport(t),
		model.ProviderConfig{BaseURL: base}, "test@example.com",
		model.ProviderConfig{BaseURL: base, APIKey: "s2-key"})
}

func emptyS2(string) (int, string) { return http.StatusOK, `{"data": []}` }

func TestJournalVerifier_TitleAndAuthor(t *testing.T) {
	js := &journalServer{
		works: func(filter string) string {
			assert.Equal(t, `title.search:"The Right to Privacy"`, filter)
			return `{"results": [{"id": "https://openalex.org/W1", "title": "The Right to Privacy",
				"authorships": [{"author": {"display_name": "Louis D. Brandeis"}}]}]}`
		},
		s2: emptyS2,
	}
	server := js.start(t)
	defer server.Close()

	res := newTestJournalVerifier(t, server.URL).Verify(context.Background(), journalRequest())

	require.Equal(t, model.StatusVerified, res.Status)
	assert.Equal(t, "openalex", res.Details["source"])
	assert.Equal(t, "Louis D. Brandeis", res.Details["matched_author"])
}

func TestJournalVerifier_SourceAndBiblio(t *testing.T) {
	js := &journalServer{
		works: func(filter string) string {
			if strings.HasPrefix(filter, "title.search:") {
				return `{"results": []}`
			}
			assert.Equal(t, "primary_location.source.id:S123,biblio.volume:4,biblio.first_page:193", filter)
			return `{"results": [{"id": "https://openalex.org/W2", "display_name": "The Right to Privacy",
				"biblio": {"volume": "4", "first_page": "193"}}]}`
		},
		sources: `{"results": [{"id": "https://openalex.org/S123", "display_name": "Harvard Law Review"}]}`,
		s2:      emptyS2,
	}
	server := js.start(t)
	defer server.Close()

	res := newTestJournalVerifier(t, server.URL).Verify(context.Background(), journalRequest())

	require.Equal(t, model.StatusVerified, res.Status)
	assert.Equal(t, "S123", res.Details["source_id"])
}

func TestJournalVerifier_TitleOnlyWarns(t *testing.T) {
	js := &journalServer{
		works: func(filter string) string {
			if strings.HasPrefix(filter, "title.search:") {
				return `{"results": [{"id": "https://openalex.org/W3", "title": "The Right to Privacy",
					"authorships": [{"author": {"display_name": "Someone Else"}}]}]}`
			}
			return `{"results": []}`
		},
		sources: `{"results": []}`,
		s2:      emptyS2,
	}
	server := js.start(t)
	defer server.Close()

	res := newTestJournalVerifier(t, server.URL).Verify(context.Background(), journalRequest())

	require.Equal(t, model.StatusWarning, res.Status)
	assert.Equal(t, "author_mismatch", res.Substatus)
	assert.Contains(t, res.Details, "extracted")
	assert.Contains(t, res.Details, "openalex")
}

func TestJournalVerifier_SemanticScholarFallback(t *testing.T) {
	js := &journalServer{
		works:   func(string) string { return `{"results": []}` },
		sources: `{"results": []}`,
		s2: func(query string) (int, string) {
			return http.StatusOK, `{"data": [{"paperId": "abc", "title": "The Right to Privacy",
				"authors": [{"name": "Samuel D. Warren"}], "journal": {"name": "Harvard Law Review", "volume": "4", "pages": "193-220"}}]}`
		},
	}
	server := js.start(t)
	defer server.Close()

	res := newTestJournalVerifier(t, server.URL).Verify(context.Background(), journalRequest())

	require.Equal(t, model.StatusVerified, res.Status)
	assert.Equal(t, "semantic_scholar", res.Details["source"])
	require.NotEmpty(t, js.queries)
	assert.Equal(t, `"The Right to Privacy"`, js.queries[0])
}

func TestJournalVerifier_NoMatch(t *testing.T) {
	js := &journalServer{
		works:   func(string) string { return `{"results": []}` },
		sources: `{"results": []}`,
		s2:      emptyS2,
	}
	server := js.start(t)
	defer server.Close()

	res := newTestJournalVerifier(t, server.URL).Verify(context.Background(), journalRequest())

	assert.Equal(t, model.StatusNoMatch, res.Status)
	assert.Equal(t, model.SubNoMatch, res.Substatus)
	assert.Equal(t, []string{
		`"The Right to Privacy"`,
		"The Right to Privacy Samuel D. Warren & Louis D. Brandeis",
		"Harvard Law Review 4 193",
	}, js.queries)
}

func TestJournalVerifier_AllLookupsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	res := newTestJournalVerifier(t, server.URL).Verify(context.Background(), journalRequest())

	assert.Equal(t, model.StatusError, res.Status)
	assert.Equal(t, model.SubLookupServiceError, res.Substatus)
}

func TestJournalVerifier_InsufficientData(t *testing.T) {
	v := newTestJournalVerifier(t, "http://127.0.0.1:1")
	res := v.Verify(context.Background(), model.VerifyRequest{
		Token: model.Token{Kind: model.KindJournal, Fields: model.Fields{Author: "Warren"}},
	})

	assert.Equal(t, model.StatusError, res.Status)
	assert.Equal(t, model.SubInsufficientData, res.Substatus)
}

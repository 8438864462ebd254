package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aonanj/citation-verifier/internal/model"
)

func TestMain(m *testing.M) {
	newBackOff = func(retries int) backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(retries))
	}
	os.Exit(m.Run())
}

// testTransport talks to httptest servers without robots checks or rate limits
func testTransport(t *testing.T) *Transport {
	t.Helper()
	return NewTransport(model.HTTPConfig{Timeout: 5 * time.Second}, model.RateLimitingConfig{})
}

func TestTransport_Retry(t *testing.T) {
	tests := []struct {
		desc     string
		statuses []int
		wantErr  bool
		wantHits int32
	}{
		{desc: "succeeds first time", statuses: []int{200}, wantHits: 1},
		{desc: "retries server errors", statuses: []int{503, 502, 200}, wantHits: 3},
		{desc: "retries rate limiting", statuses: []int{429, 200}, wantHits: 2},
		{desc: "gives up after the cap", statuses: []int{500, 500, 500, 500, 500}, wantErr: true, wantHits: 4},
		{desc: "does not retry client errors", statuses: []int{404, 200}, wantErr: true, wantHits: 1},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&hits, 1)
				w.WriteHeader(test.statuses[n-1])
				_, _ = fmt.Fprint(w, `{"ok": true}`)
			}))
			defer server.Close()

			tr := testTransport(t)
			var out struct {
				OK bool `json:"ok"`
			}
			err := tr.retry(context.Background(), "test", func() error {
				return tr.getJSON(context.Background(), server.URL, nil, &out)
			})

			if test.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.True(t, out.OK)
			}
			assert.Equal(t, test.wantHits, atomic.LoadInt32(&hits))
		})
	}
}

func TestTransport_InvalidPayloadIsPermanent(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = fmt.Fprint(w, `not json`)
	}))
	defer server.Close()

	tr := testTransport(t)
	var out map[string]any
	err := tr.retry(context.Background(), "test", func() error {
		return tr.getJSON(context.Background(), server.URL, nil, &out)
	})

	require.ErrorIs(t, err, errInvalidPayload)
	assert.Equal(t, model.SubLookupInvalidPayload, substatusFor(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestTransport_RetryAfterStartsCooldown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	tr := testTransport(t)
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := tr.Do(context.Background(), req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Greater(t, tr.cooldown.Remaining(server.URL), 20*time.Second)

	// The next request waits for the cooldown and gives up with the context
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	_, err = tr.Do(ctx, req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransport_SetsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		_, _ = fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	tr := NewTransport(model.HTTPConfig{UserAgent: "citeverify-test/1.0"}, model.RateLimitingConfig{})
	var out map[string]any
	require.NoError(t, tr.getJSON(context.Background(), server.URL, nil, &out))
	assert.Equal(t, "citeverify-test/1.0", got)
}

func TestSubstatusFor(t *testing.T) {
	tests := []struct {
		desc string
		err  error
		want string
	}{
		{desc: "unauthorized", err: &StatusError{Code: 401}, want: model.SubLookupAuthFailed},
		{desc: "forbidden", err: &StatusError{Code: 403}, want: model.SubLookupForbidden},
		{desc: "rate limited", err: &StatusError{Code: 429}, want: model.SubLookupRateLimited},
		{desc: "server error", err: fmt.Errorf("wrapped: %w", &StatusError{Code: 502}), want: model.SubLookupServiceError},
		{desc: "other status", err: &StatusError{Code: 404}, want: model.SubLookupFailed},
		{desc: "invalid payload", err: fmt.Errorf("%w: eof", errInvalidPayload), want: model.SubLookupInvalidPayload},
		{desc: "transport", err: errors.New("connection refused"), want: model.SubLookupFailed},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			assert.Equal(t, test.want, substatusFor(test.err))
		})
	}
}

func TestRetryAfter(t *testing.T) {
	h := http.Header{}
	assert.Zero(t, retryAfter(h))

	h.Set("Retry-After", "12")
	assert.Equal(t, 12*time.Second, retryAfter(h))

	h.Set("Retry-After", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))
	d := retryAfter(h)
	assert.Greater(t, d, 50*time.Second)
	assert.LessOrEqual(t, d, time.Minute)

	h.Set("Retry-After", "soon")
	assert.Zero(t, retryAfter(h))
}

func TestFieldsOf(t *testing.T) {
	req := model.VerifyRequest{
		Token: model.Token{Fields: model.Fields{
			Volume:   "347",
			Reporter: "U.S.",
			Page:     "483",
			CaseName: "Brown v. Bd. of Educ.",
		}},
		Resource: model.Fields{
			CaseName: "Brown v. Board of Education",
			Year:     "1954",
		},
	}

	f := fieldsOf(req)
	assert.Equal(t, "Brown v. Board of Education", f.CaseName)
	assert.Equal(t, "1954", f.Year)
	assert.Equal(t, "347", f.Volume)
	assert.Equal(t, "U.S.", f.Reporter)
	assert.Equal(t, "483", f.Page)
}

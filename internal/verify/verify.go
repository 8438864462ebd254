// Package verify checks resolved citations against authoritative sources.
// Providers never return Go errors to their caller: every failure is mapped
// onto a model.Result with a named substatus.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aonanj/citation-verifier/internal/cache"
	"github.com/aonanj/citation-verifier/internal/model"
	"github.com/aonanj/citation-verifier/internal/util"
	"github.com/aonanj/citation-verifier/internal/worker"
)

// maxRetries caps retried lookups when the configuration leaves it unset
const maxRetries = 3

// Verifier checks one resource bucket
type Verifier interface {
	Verify(ctx context.Context, req model.VerifyRequest) model.Result
}

// VerifierFunc adapts a function to Verifier
type VerifierFunc func(ctx context.Context, req model.VerifyRequest) model.Result

// Verify calls f
func (f VerifierFunc) Verify(ctx context.Context, req model.VerifyRequest) model.Result {
	return f(ctx, req)
}

// newBackOff builds the retry schedule for retried lookups (replaced in tests)
var newBackOff = func(retries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = time.Minute
	return backoff.WithMaxRetries(b, uint64(retries))
}

var errInvalidPayload = errors.New("invalid response payload")

// StatusError is a non-success HTTP response from an authority
type StatusError struct {
	Code       int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// Transport sends polite requests to authorities. Every request first waits
// out any Retry-After cooldown for its host, then takes a token from the
// host's rate limiter. A 429 response puts the host into cooldown.
type Transport struct {
	client    util.HTTPDoer
	limiter   *worker.Limiter
	cooldown  *cache.Cooldown
	robots    *util.RobotsChecker
	userAgent string
	maxBytes  int64
	retries   int
	logger    *slog.Logger
}

// Option configures a Transport
type Option func(*Transport)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client util.HTTPDoer) Option {
	return func(t *Transport) {
		t.client = client
	}
}

// WithLimiter shares a host limiter between transports
func WithLimiter(limiter *worker.Limiter) Option {
	return func(t *Transport) {
		t.limiter = limiter
	}
}

// WithCooldown shares a cooldown tracker between transports
func WithCooldown(cooldown *cache.Cooldown) Option {
	return func(t *Transport) {
		t.cooldown = cooldown
	}
}

// WithRobots sets the robots.txt checker used before document fetches
func WithRobots(robots *util.RobotsChecker) Option {
	return func(t *Transport) {
		t.robots = robots
	}
}

// NewTransport creates a transport from the HTTP and rate-limit settings
func NewTransport(httpConfig model.HTTPConfig, rateConfig model.RateLimitingConfig, opts ...Option) *Transport {
	timeout := httpConfig.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxBytes := httpConfig.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 10_000_000
	}
	retries := httpConfig.MaxRetries
	if retries <= 0 {
		retries = maxRetries
	}

	t := &Transport{
		client:    util.NewHTTPClient(timeout, httpConfig.HTTPProxy, httpConfig.HTTPSProxy, httpConfig.NoProxy),
		limiter:   worker.NewLimiter(rateConfig.RequestsPerSecond, rateConfig.BurstSize),
		cooldown:  cache.NewCooldown(cache.NewMemoryCache(time.Minute, 5*time.Minute)),
		userAgent: httpConfig.UserAgent,
		maxBytes:  maxBytes,
		retries:   retries,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if httpConfig.RespectRobots && t.robots == nil {
		t.robots = util.NewRobotsChecker(t.client, t.userAgent, nil)
	}
	return t
}

// Do sends req after the host's cooldown and rate limit allow it
func (t *Transport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	target := req.URL.String()
	if err := t.cooldown.Wait(ctx, target); err != nil {
		return nil, err
	}
	if err := t.limiter.Wait(ctx, target); err != nil {
		return nil, err
	}
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if d := retryAfter(resp.Header); d > 0 {
			t.logger.Warn("host asked us to back off",
				slog.String("host", req.URL.Host),
				slog.Duration("retry_after", d),
			)
			t.cooldown.Block(target, d)
		}
	}
	return resp, nil
}

// CheckRobots reports whether rawURL may be fetched and slows the host to
// its crawl delay. Without a robots checker every URL is allowed.
func (t *Transport) CheckRobots(ctx context.Context, rawURL string) bool {
	if t.robots == nil {
		return true
	}
	allowed, delay, err := t.robots.CanFetch(ctx, rawURL)
	if err != nil {
		t.logger.Debug("robots check failed", slog.String("url", rawURL), slog.String("error", err.Error()))
		return true
	}
	if delay > 0 {
		t.limiter.ApplyCrawlDelay(rawURL, delay)
	}
	return allowed
}

func (t *Transport) readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// getJSON fetches rawURL and decodes a 200 response into out
func (t *Transport) getJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	return t.doJSON(ctx, req, out)
}

func (t *Transport) doJSON(ctx context.Context, req *http.Request, out any) error {
	resp, err := t.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, RetryAfter: retryAfter(resp.Header)}
	}

	body, err := t.readBody(resp)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return nil
}

// retry runs op with exponential backoff and jitter. Rate limiting,
// server errors and transport failures are retried; anything else stops.
func (t *Transport) retry(ctx context.Context, what string, op func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err != nil && !retryable(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(newBackOff(t.retries), ctx), func(err error, d time.Duration) {
		t.logger.Warn("lookup failed, retrying",
			slog.String("lookup", what),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", d),
			slog.String("error", err.Error()),
		)
	})
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, errInvalidPayload) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= http.StatusInternalServerError
	}
	return true
}

// statusSubstatus maps the HTTP statuses every provider names
func statusSubstatus(code int) (string, bool) {
	switch {
	case code == http.StatusUnauthorized:
		return model.SubLookupAuthFailed, true
	case code == http.StatusForbidden:
		return model.SubLookupForbidden, true
	case code == http.StatusTooManyRequests:
		return model.SubLookupRateLimited, true
	case code >= http.StatusInternalServerError:
		return model.SubLookupServiceError, true
	default:
		return "", false
	}
}

// substatusFor maps a lookup error onto the error taxonomy
func substatusFor(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		if sub, ok := statusSubstatus(se.Code); ok {
			return sub
		}
		return model.SubLookupFailed
	}
	if errors.Is(err, errInvalidPayload) {
		return model.SubLookupInvalidPayload
	}
	return model.SubLookupFailed
}

// retryAfter parses a Retry-After header given in seconds or as a date
func retryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

// fieldsOf merges the bucket's canonical fields with the representative
// token's own fields; canonical values win.
func fieldsOf(req model.VerifyRequest) model.Fields {
	f := req.Resource
	t := req.Token.Fields
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&f.Reporter, t.Reporter)
	fill(&f.Volume, t.Volume)
	fill(&f.Page, t.Page)
	fill(&f.Section, t.Section)
	fill(&f.Title, t.Title)
	fill(&f.Chapter, t.Chapter)
	fill(&f.Code, t.Code)
	fill(&f.Year, t.Year)
	fill(&f.Court, t.Court)
	fill(&f.Plaintiff, t.Plaintiff)
	fill(&f.Defendant, t.Defendant)
	fill(&f.CaseName, t.CaseName)
	fill(&f.Author, t.Author)
	fill(&f.Journal, t.Journal)
	fill(&f.PinCite, t.PinCite)
	fill(&f.Congress, t.Congress)
	fill(&f.LawNumber, t.LawNumber)
	return f
}

// citationText is the best human-readable form of the request
func citationText(req model.VerifyRequest) string {
	if s := util.CleanString(req.NormalizedKey); s != "" {
		return s
	}
	return util.CleanString(req.Fallback)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

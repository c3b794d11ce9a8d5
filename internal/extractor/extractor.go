package extractor

import (
	"context"
	"fmt"
	"html"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/net/html/charset"

	"github.com/pep299/news-chat/internal/metrics"
	"github.com/pep299/news-chat/internal/model"
)

const (
	// MaxRawChars caps the text kept from a single page.
	MaxRawChars = 20000

	// Timeout bounds one page fetch. Timed out fetches are not retried.
	Timeout = 12 * time.Second

	maxBodyBytes = 2 << 20
	userAgent    = "NewsChatBot/1.0 (local dev)"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
)

// Extractor fetches article pages and reduces them to plain text.
type Extractor struct {
	httpClient *http.Client
	cache      *expirable.LRU[string, string]
	metrics    *metrics.Metrics
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCache memoizes successful extractions. size <= 0 disables the cache.
func WithCache(size int, ttl time.Duration) Option {
	return func(e *Extractor) {
		if size > 0 {
			e.cache = expirable.NewLRU[string, string](size, nil, ttl)
		}
	}
}

// WithMetrics records extraction outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Extractor) {
		e.httpClient = client
	}
}

// New creates a new Extractor
func New(opts ...Option) *Extractor {
	e := &Extractor{
		httpClient: &http.Client{
			Timeout: Timeout,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the visible text of the page at rawURL, or "" on any failure.
// Paywalls, bot blocking and broken markup all end up as "".
func (e *Extractor) Extract(ctx context.Context, rawURL string) string {
	if e.cache != nil {
		if text, ok := e.cache.Get(rawURL); ok {
			e.metrics.ObserveExtraction("cached")
			return text
		}
	}

	text, err := e.extract(ctx, rawURL)
	if err != nil {
		log.Printf("extract skipped url=%s: %v", rawURL, err)
		e.metrics.ObserveExtraction("empty")
		return ""
	}

	e.metrics.ObserveExtraction("ok")
	if e.cache != nil && text != "" {
		e.cache.Add(rawURL, text)
	}
	return text
}

func (e *Extractor) extract(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("unsupported url %q", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), contentType)
	if err != nil {
		return "", fmt.Errorf("decoding charset: %w", err)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	return model.Truncate(StripHTML(string(body)), MaxRawChars), nil
}

// StripHTML removes script and style blocks and tags, unescapes entities and
// collapses whitespace.
func StripHTML(s string) string {
	s = scriptRe.ReplaceAllString(s, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	return model.SafeText(html.UnescapeString(s))
}

// isHTML accepts a missing content type, HTML and XHTML.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

package retrieval

import (
	"context"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/stake-plus/factcheck/src/types"
	"github.com/stake-plus/factcheck/src/webclient"
)

const (
	defaultProxyBase    = "https://r.jina.ai/"
	defaultFetchTimeout = 12 * time.Second
	defaultUserAgent    = "factcheck-api/0.1"

	maxRawLen     = 80_000
	maxExcerptLen = 2200
	maxTitleLen   = 180

	// maxSources is clamped to [1,8], so 8 is also the fan-out bound.
	maxConcurrentFetches = 8
)

var (
	urlRegex        = regexp.MustCompile(`(?i)https?://[^\s"'<>\])]+`)
	titleRegex      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptRegex     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRegex      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Source is the outcome of one attempted evidence fetch.
type Source struct {
	URL     string
	Title   string
	Excerpt string
	Status  string
}

// Config tunes the retriever. Zero values select production defaults;
// tests override ProxyBase and Timeout.
type Config struct {
	Timeout   time.Duration
	ProxyBase string
	UserAgent string
}

// Service fetches evidence pages referenced by the selected text. It never
// returns an error: each URL degrades independently to a blocked or failed
// record.
type Service struct {
	client    *http.Client
	sanitizer *bluemonday.Policy
	timeout   time.Duration
	proxyBase string
	userAgent string
}

func NewService(cfg Config) *Service {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if cfg.ProxyBase == "" {
		cfg.ProxyBase = defaultProxyBase
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Service{
		// The overall client timeout stays above the per-fetch deadline so
		// the context, not the transport, decides when a fetch dies.
		client:    webclient.NewDefault(cfg.Timeout + 2*time.Second),
		sanitizer: bluemonday.StrictPolicy(),
		timeout:   cfg.Timeout,
		proxyBase: cfg.ProxyBase,
		userAgent: cfg.UserAgent,
	}
}

// Retrieve extracts URLs from the selection (plus any explicitly selected
// links), fetches each concurrently and returns one Source per URL. With no
// URLs present it returns nil without touching the network.
func (s *Service) Retrieve(ctx context.Context, selectedText string, selectedLinks []string, maxSources int, blockedDomains []string) []Source {
	limit := maxSources
	if limit < 1 {
		limit = 1
	}
	if limit > 8 {
		limit = 8
	}

	urls := extractURLs(selectedText, selectedLinks, limit)
	if len(urls) == 0 {
		return nil
	}

	blocked := normalizeDomains(blockedDomains)

	results := make([]Source, len(urls))
	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i] = s.retrieveOne(ctx, u, blocked)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) retrieveOne(ctx context.Context, sourceURL *url.URL, blockedDomains []string) Source {
	if isDomainBlocked(sourceURL.Hostname(), blockedDomains) {
		return Source{
			URL:     sourceURL.String(),
			Title:   sourceURL.Hostname(),
			Excerpt: "Source retrieval skipped because domain is blocked in extension settings.",
			Status:  types.StatusBlocked,
		}
	}

	content, directErr := s.download(ctx, sourceURL.String())
	if directErr == nil {
		return s.buildSource(sourceURL, content, types.StatusFetchedDirect)
	}

	proxyURL := s.proxyBase + sourceURL.String()
	content, proxyErr := s.download(ctx, proxyURL)
	if proxyErr == nil {
		return s.buildSource(sourceURL, content, types.StatusFetchedViaProxy)
	}

	log.Printf("retrieval: failed to retrieve %s direct=%v proxy=%v", sourceURL, directErr, proxyErr)

	return Source{
		URL:     sourceURL.String(),
		Title:   sourceURL.Hostname(),
		Excerpt: "Source retrieval failed. Unable to load content from this link.",
		Status:  types.StatusFailed,
	}
}

func (s *Service) download(ctx context.Context, fetchURL string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "pdf") {
		return "", fmt.Errorf("PDF content is not yet supported")
	}

	// Raw bodies are capped before extraction to bound memory and regex work.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRawLen))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", fmt.Errorf("empty response")
	}

	return string(raw), nil
}

func (s *Service) buildSource(sourceURL *url.URL, content, status string) Source {
	if looksLikeHTML(content) {
		return s.buildFromHTML(sourceURL, content, status)
	}
	return buildFromText(sourceURL, content, status)
}

func (s *Service) buildFromHTML(sourceURL *url.URL, htmlContent, status string) Source {
	title := sourceURL.Hostname()
	if m := titleRegex.FindStringSubmatch(htmlContent); m != nil {
		if decoded := normalizeWhitespace(html.UnescapeString(m[1])); decoded != "" {
			title = decoded
		}
	}

	stripped := scriptRegex.ReplaceAllString(htmlContent, " ")
	stripped = styleRegex.ReplaceAllString(stripped, " ")
	text := s.sanitizer.Sanitize(stripped)
	excerpt := normalizeWhitespace(html.UnescapeString(text))

	return Source{
		URL:     sourceURL.String(),
		Title:   truncate(title, maxTitleLen),
		Excerpt: truncate(excerpt, maxExcerptLen),
		Status:  status,
	}
}

func buildFromText(sourceURL *url.URL, text, status string) Source {
	title := sourceURL.Hostname()
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Proxy extractions commonly lead with a "Title:" line.
		if len(line) > 6 && strings.EqualFold(line[:6], "Title:") {
			line = strings.TrimSpace(line[6:])
		}
		if line != "" {
			title = line
		}
		break
	}

	return Source{
		URL:     sourceURL.String(),
		Title:   truncate(title, maxTitleLen),
		Excerpt: truncate(normalizeWhitespace(text), maxExcerptLen),
		Status:  status,
	}
}

// extractURLs pulls http(s) URLs out of the selection text, appends the
// explicitly selected links, trims trailing punctuation, deduplicates by
// absolute URL and caps the result at limit.
func extractURLs(text string, extra []string, limit int) []*url.URL {
	candidates := urlRegex.FindAllString(text, -1)
	candidates = append(candidates, extra...)

	seen := make(map[string]struct{})
	var out []*url.URL
	for _, candidate := range candidates {
		candidate = strings.TrimRight(strings.TrimSpace(candidate), ".,;:)]}")
		u, err := url.Parse(candidate)
		if err != nil || u.Host == "" {
			continue
		}
		scheme := strings.ToLower(u.Scheme)
		if scheme != "http" && scheme != "https" {
			continue
		}
		key := strings.ToLower(u.String())
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out
}

func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<body") ||
		strings.Contains(lower, "</p>")
}

func isDomainBlocked(host string, blockedDomains []string) bool {
	normalizedHost := normalizeDomain(host)
	for _, blocked := range blockedDomains {
		if normalizedHost == blocked || strings.HasSuffix(normalizedHost, "."+blocked) {
			return true
		}
	}
	return false
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if normalized := normalizeDomain(d); normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}

func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(domain), "."))
}

func normalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return strings.TrimRight(string(runes[:maxLen]), " ") + "..."
}

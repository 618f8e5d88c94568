// Package fetch implements C1 Fetcher: retrieve a URL and return normalized
// text plus outbound links, adapted from the teacher's internal/fetch and
// internal/extract packages and from original_source/doc2mcp/fetchers/web.py's
// CSS-selector narrowing behavior.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Link is the outbound-link value type named by SPEC_FULL.md §3.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// Result is C1's FetchResult value type.
type Result struct {
	URL     string
	Title   string
	Content string
	Links   []Link
}

// Selectors configures CSS-selector narrowing per spec.md §4.1, grounded on
// original_source/doc2mcp/fetchers/web.py's exclude/content selector split.
type Selectors struct {
	// Content, if set, is a comma-separated list of CSS selectors tried in
	// order; the first that matches narrows extraction to that subtree.
	Content string
	// Exclude, if set, is a comma-separated list of CSS selectors whose
	// matched elements are removed before text extraction.
	Exclude string
}

var dropExtensionRe = regexp.MustCompile(`(?i)\.(pdf|zip|jpg|jpeg|png|gif|svg|ico|mp4|tar|gz)$`)
var droppedSchemes = map[string]bool{"mailto": true, "javascript": true, "tel": true}

// Client is C1's direct-mode HTTP fetcher, adapted from the teacher's
// internal/fetch.Client (retry/timeout/redirect-cap/concurrency-gate
// structure preserved; on-disk HTTP cache and conditional-GET dropped
// because page-level caching is owned by internal/cache.PageCache per
// spec.md §4.2, not by this layer).
type Client struct {
	HTTPClient        *http.Client
	UserAgent         string
	MaxAttempts       int
	PerRequestTimeout time.Duration
	RedirectMaxHops   int
	MaxConcurrent     int

	// ReaderProxyURLPrefix, if set, switches this client to reader-proxy
	// mode: GET is issued against ReaderProxyURLPrefix+targetURL and the
	// response body is treated as markdown.
	ReaderProxyURLPrefix string

	limiter     chan struct{}
	limiterOnce sync.Once
}

// Close releases resources held by the client, mirroring the Python
// original's WebFetcher.close() (original_source/doc2mcp/fetchers/web.py:91-95).
// The retry/concurrency gate itself holds nothing beyond the semaphore
// channel, so this closes the underlying transport's idle keep-alive
// connections so callers can shut down cleanly between runs.
func (c *Client) Close() error {
	transport := http.DefaultTransport
	if c.HTTPClient != nil && c.HTTPClient.Transport != nil {
		transport = c.HTTPClient.Transport
	}
	if t, ok := transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	base := http.Client{Timeout: c.PerRequestTimeout}
	if c.HTTPClient != nil {
		base = *c.HTTPClient
	}
	base.CheckRedirect = c.checkRedirect()
	return &base
}

func (c *Client) checkRedirect() func(*http.Request, []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

// Fetch retrieves url, normalizes it into a Result, and restricts extracted
// outbound links to baseDomain when non-empty. HTTP errors propagate; no
// retries are performed beyond MaxAttempts transient-error retries, per
// spec.md §4.1's "no retries are performed at this layer" (that statement
// refers to cache-miss retries; transient network retries mirror the
// teacher's fetch.Client for operational resilience).
func (c *Client) Fetch(ctx context.Context, target string, baseDomain string) (Result, string, error) {
	if c.ReaderProxyURLPrefix != "" {
		return c.fetchReaderProxy(ctx, target, baseDomain)
	}
	return c.fetchDirect(ctx, target, baseDomain)
}

func (c *Client) fetchDirect(ctx context.Context, target string, baseDomain string) (Result, string, error) {
	body, finalURL, err := c.get(ctx, target)
	if err != nil {
		return Result{}, "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Result{}, finalURL, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	// No selector narrowing here: the whole document body is extracted.
	// FetchSelected is the variant that applies content/exclude selectors.
	title := strings.TrimSpace(doc.Find("title").First().Text())
	links := extractLinks(doc, finalURL, baseDomain)
	content := extractText(doc.Selection)
	return Result{URL: finalURL, Title: title, Content: content, Links: links}, finalURL, nil
}

// FetchSelected is fetchDirect with explicit CSS-selector narrowing applied
// before text extraction (spec.md §4.1's "optional content/exclude CSS
// selectors further narrow the extracted text").
func (c *Client) FetchSelected(ctx context.Context, target, baseDomain string, sel Selectors) (Result, string, error) {
	body, finalURL, err := c.get(ctx, target)
	if err != nil {
		return Result{}, "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Result{}, finalURL, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	links := extractLinks(doc, finalURL, baseDomain)

	root := doc.Selection
	if sel.Exclude != "" {
		for _, s := range strings.Split(sel.Exclude, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			doc.Find(s).Remove()
		}
	}
	if sel.Content != "" {
		for _, s := range strings.Split(sel.Content, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if found := doc.Find(s).First(); found.Length() > 0 {
				root = found
				break
			}
		}
	}
	content := extractText(root)
	return Result{URL: finalURL, Title: title, Content: content, Links: links}, finalURL, nil
}

var linkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
var headingPattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// fetchReaderProxy implements spec.md §4.1's reader-proxy mode: GET the
// configured endpoint, treat the body as markdown, and discover links and
// title by scanning markdown syntax rather than parsing HTML.
func (c *Client) fetchReaderProxy(ctx context.Context, target string, baseDomain string) (Result, string, error) {
	proxyURL := strings.TrimRight(c.ReaderProxyURLPrefix, "/") + "/" + strings.TrimLeft(target, "/")
	body, finalURL, err := c.get(ctx, proxyURL)
	if err != nil {
		return Result{}, "", err
	}
	markdown := string(body)
	title := ""
	if m := headingPattern.FindStringSubmatch(markdown); len(m) == 2 {
		title = strings.TrimSpace(m[1])
	}
	var links []Link
	seen := map[string]bool{}
	for _, m := range linkPattern.FindAllStringSubmatch(markdown, -1) {
		text, href := m[1], m[2]
		abs, ok := normalizeLink(target, href, baseDomain)
		if !ok || seen[abs] {
			continue
		}
		seen[abs] = true
		links = append(links, Link{URL: abs, Text: text})
	}
	return Result{URL: target, Title: title, Content: markdown, Links: links}, finalURL, nil
}

// RenderMarkdown converts already-fetched HTML to markdown locally using
// html-to-markdown/v2. Fetch does not call it: without a
// ReaderProxyURLPrefix, Fetch returns plain extracted text, not markdown.
func RenderMarkdown(htmlBody []byte) (string, error) {
	out, err := md.ConvertString(string(htmlBody))
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, string, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		body, finalURL, err := c.tryOnce(ctx, target)
		if err == nil {
			return body, finalURL, nil
		}
		if !isTransient(err) || i == attempts-1 {
			return nil, "", err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
		}
	}
	return nil, "", lastErr
}

func (c *Client) tryOnce(ctx context.Context, target string) ([]byte, string, error) {
	c.acquire()
	defer c.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	if req.URL == nil || !isHTTPScheme(req.URL) {
		return nil, "", fmt.Errorf("unsupported url scheme: %s", target)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	hc := c.httpClient()
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode >= 500 {
		return nil, finalURL, fmt.Errorf("server error: %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, finalURL, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, finalURL, fmt.Errorf("read body: %w", err)
	}
	return buf.Bytes(), finalURL, nil
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() { c.limiter = make(chan struct{}, c.MaxConcurrent) })
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), "server error:")
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}

func extractText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		walkText(&b, s.Nodes[0])
	})
	return normalizeWhitespace(b.String())
}

// skipTags is exactly the removal set spec'd for extraction: script, style,
// noscript. Anything beyond that is opted into per-source via Selectors.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
}
var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "div": true, "tr": true,
}

func walkText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		name := strings.ToLower(n.Data)
		if skipTags[name] {
			return
		}
		if name == "br" || name == "hr" {
			b.WriteString("\n")
		}
		if blockTags[name] {
			b.WriteString("\n")
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(b, c)
	}
	if n.Type == html.ElementNode {
		name := strings.ToLower(n.Data)
		if blockTags[name] {
			b.WriteString("\n\n")
		}
		if name == "li" {
			b.WriteString("\n")
		}
	}
}

// normalizeWhitespace collapses runs of >=3 newlines to 2 and runs of >=2
// spaces to 1, exactly as spec.md §4.1 requires.
func normalizeWhitespace(s string) string {
	s = regexp.MustCompile(`\n{3,}`).ReplaceAllString(s, "\n\n")
	s = regexp.MustCompile(` {2,}`).ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractLinks(doc *goquery.Document, pageURL, baseDomain string) []Link {
	var links []Link
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := normalizeLink(pageURL, href, baseDomain)
		if !ok || seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, Link{URL: abs, Text: strings.TrimSpace(s.Text())})
	})
	return links
}

// normalizeLink resolves href against base, strips the fragment, rejects
// mailto/javascript/tel schemes and asset-extension targets, and when
// baseDomain is set, restricts the result to that host (spec.md §4.1).
func normalizeLink(base, href, baseDomain string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return "", false
	}
	baseU, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if droppedSchemes[strings.ToLower(ref.Scheme)] {
		return "", false
	}
	abs := baseU.ResolveReference(ref)
	if !isHTTPScheme(abs) {
		return "", false
	}
	abs.Fragment = ""
	if dropExtensionRe.MatchString(abs.Path) {
		return "", false
	}
	if baseDomain != "" && !strings.EqualFold(abs.Hostname(), baseDomain) {
		return "", false
	}
	return abs.String(), true
}

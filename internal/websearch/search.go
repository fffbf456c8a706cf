// Package websearch retrieves supporting web evidence from DuckDuckGo. The
// instant-answer JSON API is tried first, then the HTML results page.
// Failures never propagate to callers: they set a sticky last-error status
// and yield zero results.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"deskfix/internal/types"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// DefaultMaxResults caps the hits returned per query.
const DefaultMaxResults = 3

const (
	instantAnswerURL = "https://api.duckduckgo.com/"
	htmlSearchURL    = "https://html.duckduckgo.com/html/"
	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client is the web-search collaborator. The zero last-error/last-count
// status is refreshed on every Search call and readable by callers that want
// to surface retrieval health to the operator.
type Client struct {
	enabled       bool
	httpClient    *http.Client
	instantAPIURL string
	htmlAPIURL    string
	logger        *zap.Logger

	mu        sync.Mutex
	lastQuery string
	lastError string
	lastCount int
}

// NewClient builds a search client. Disabled clients return zero results with
// a "web search disabled" status, satisfying the configuration kill switch.
func NewClient(enabled bool, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		enabled:       enabled,
		httpClient:    &http.Client{Timeout: timeout},
		instantAPIURL: instantAnswerURL,
		htmlAPIURL:    htmlSearchURL,
		logger:        logger,
	}
}

// Search returns up to maxResults ranked hits. All failure modes (disabled,
// network error, unparseable response) return an empty slice and record a
// sticky status readable via LastStatus.
func (c *Client) Search(ctx context.Context, query string, maxResults int) []types.WebHit {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	c.mu.Lock()
	c.lastQuery = query
	c.lastError = ""
	c.lastCount = 0
	c.mu.Unlock()

	if !c.enabled {
		c.setError("web search disabled")
		return nil
	}

	results, err := c.instantAnswer(ctx, query, maxResults)
	if err != nil {
		c.logger.Debug("instant answer lookup failed", zap.Error(err))
	}
	if len(results) == 0 {
		results, err = c.htmlFallback(ctx, query, maxResults)
		if err != nil {
			c.logger.Warn("web search failed", zap.String("query", query), zap.Error(err))
			c.setError("web search failed")
			return nil
		}
	}

	c.mu.Lock()
	c.lastCount = len(results)
	c.mu.Unlock()
	return results
}

// LastStatus returns the query, error text, and hit count of the most recent
// Search call.
func (c *Client) LastStatus() (query, lastError string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastQuery, c.lastError, c.lastCount
}

func (c *Client) setError(msg string) {
	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()
}

// instantAnswer queries the DuckDuckGo instant-answer JSON API.
func (c *Client) instantAnswer(ctx context.Context, query string, maxResults int) ([]types.WebHit, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_redirect", "1")
	params.Set("no_html", "1")

	body, err := c.get(ctx, c.instantAPIURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var payload struct {
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse instant answer: %w", err)
	}

	var results []types.WebHit
	for _, topic := range payload.RelatedTopics {
		if topic.Text == "" || topic.FirstURL == "" {
			continue
		}
		results = append(results, types.WebHit{
			Title:   topic.Text,
			Snippet: topic.Text,
			URL:     topic.FirstURL,
		})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

// htmlFallback scrapes the HTML results page.
func (c *Client) htmlFallback(ctx context.Context, query string, maxResults int) ([]types.WebHit, error) {
	params := url.Values{}
	params.Set("q", query)

	body, err := c.get(ctx, c.htmlAPIURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return parseResultsHTML(string(body), maxResults)
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// parseResultsHTML extracts ranked hits from the DuckDuckGo results page,
// which marks links with class result__a and snippets with result__snippet.
func parseResultsHTML(content string, maxResults int) ([]types.WebHit, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results HTML: %w", err)
	}

	var results []types.WebHit
	var current *types.WebHit

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attrValue(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				if current != nil && current.URL != "" && current.Title != "" {
					results = append(results, *current)
				}
				current = &types.WebHit{
					Title: textContent(n),
					URL:   normalizeLink(attrValue(n, "href")),
				}
			case strings.Contains(class, "result__snippet") && current != nil:
				current.Snippet = textContent(n)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	if current != nil && current.URL != "" && current.Title != "" && len(results) < maxResults {
		results = append(results, *current)
	}
	for i := range results {
		if results[i].Snippet == "" {
			results[i].Snippet = results[i].Title
		}
	}
	return results, nil
}

// normalizeLink unwraps DuckDuckGo redirect links (/l/?uddg=<target>).
func normalizeLink(link string) string {
	if link == "" {
		return link
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}
	if parsed.Path == "/l/" || strings.HasSuffix(parsed.Host+parsed.Path, "duckduckgo.com/l/") {
		if target := parsed.Query().Get("uddg"); target != "" {
			if decoded, err := url.QueryUnescape(target); err == nil {
				return decoded
			}
		}
	}
	return link
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var gather func(*html.Node)
	gather = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			gather(child)
		}
	}
	gather(n)
	return strings.TrimSpace(sb.String())
}

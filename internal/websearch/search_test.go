package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const resultsPage = `<html><body>
<div class="result results_links">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fsupport.example.com%2Fwifi">Fix Wi-Fi drops on Windows 11</a>
  <a class="result__snippet" href="#">Restart the WLAN AutoConfig service and renew the lease.</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://forum.example.com/thread/42">Wi-Fi adapter keeps disconnecting</a>
  <a class="result__snippet" href="#">Power-cycle the adapter.</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://example.com/third">Third hit</a>
</div>
<div class="result results_links">
  <a class="result__a" href="https://example.com/fourth">Fourth hit</a>
</div>
</body></html>`

func TestClient_DisabledIsStickyStatusNotError(t *testing.T) {
	c := NewClient(false, 0, zap.NewNop())

	hits := c.Search(context.Background(), "wifi down", 3)

	assert.Empty(t, hits)
	query, lastErr, count := c.LastStatus()
	assert.Equal(t, "wifi down", query)
	assert.Equal(t, "web search disabled", lastErr)
	assert.Zero(t, count)
}

func TestClient_InstantAnswerPreferred(t *testing.T) {
	instant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Write([]byte(`{"RelatedTopics":[
			{"Text":"Wi-Fi troubleshooting guide","FirstURL":"https://help.example.com/wifi"},
			{"Text":"","FirstURL":"https://skip.example.com"},
			{"Text":"Adapter reset steps","FirstURL":"https://help.example.com/reset"}
		]}`))
	}))
	defer instant.Close()

	c := NewClient(true, 0, zap.NewNop())
	c.instantAPIURL = instant.URL

	hits := c.Search(context.Background(), "wifi keeps dropping", 3)

	require.Len(t, hits, 2)
	assert.Equal(t, "Wi-Fi troubleshooting guide", hits[0].Title)
	assert.Equal(t, "https://help.example.com/wifi", hits[0].URL)

	_, lastErr, count := c.LastStatus()
	assert.Empty(t, lastErr)
	assert.Equal(t, 2, count)
}

func TestClient_HTMLFallbackWhenInstantEmpty(t *testing.T) {
	instant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"RelatedTopics":[]}`))
	}))
	defer instant.Close()
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer page.Close()

	c := NewClient(true, 0, zap.NewNop())
	c.instantAPIURL = instant.URL
	c.htmlAPIURL = page.URL

	hits := c.Search(context.Background(), "wifi keeps dropping", 3)

	require.Len(t, hits, 3, "capped at max results")
	assert.Equal(t, "Fix Wi-Fi drops on Windows 11", hits[0].Title)
	assert.Equal(t, "https://support.example.com/wifi", hits[0].URL, "redirect link unwrapped")
	assert.Contains(t, hits[0].Snippet, "WLAN AutoConfig")
	assert.Equal(t, "Third hit", hits[2].Title)
	assert.Equal(t, hits[2].Title, hits[2].Snippet, "missing snippet falls back to title")
}

func TestClient_NetworkFailureIsStatusNotFault(t *testing.T) {
	c := NewClient(true, 0, zap.NewNop())
	c.instantAPIURL = "http://127.0.0.1:1/"
	c.htmlAPIURL = "http://127.0.0.1:1/"

	hits := c.Search(context.Background(), "anything", 3)

	assert.Empty(t, hits)
	_, lastErr, count := c.LastStatus()
	assert.Equal(t, "web search failed", lastErr)
	assert.Zero(t, count)
}

func TestParseResultsHTML_Empty(t *testing.T) {
	hits, err := parseResultsHTML("<html><body>no results</body></html>", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestNormalizeLink(t *testing.T) {
	assert.Equal(t,
		"https://support.example.com/wifi",
		normalizeLink("//duckduckgo.com/l/?uddg=https%3A%2F%2Fsupport.example.com%2Fwifi"))
	assert.Equal(t, "https://plain.example.com", normalizeLink("https://plain.example.com"))
	assert.Equal(t, "", normalizeLink(""))
}

// Package websearch is a client for the Tavily search API, the workflow's
// last-resort information source.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.tavily.com"

// Result holds a single search result.
type Result struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Config holds web search parameters.
type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
}

// Client calls the search API.
type Client struct {
	cfg    Config
	client *http.Client
}

// New returns a search client. Zero-value fields get defaults: 3 results,
// 10 second timeout, hosted API endpoint.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Answer  string   `json:"answer"`
	Results []Result `json:"results"`
}

// Search runs a web search for the query and returns the ranked results.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(searchRequest{
		APIKey:     c.cfg.APIKey,
		Query:      query,
		MaxResults: c.cfg.MaxResults,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API error %d: %s", resp.StatusCode, string(respBody))
	}

	var sr searchResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	if len(sr.Results) > c.cfg.MaxResults {
		sr.Results = sr.Results[:c.cfg.MaxResults]
	}
	return sr.Results, nil
}

// FormatAsContext converts search results to a passage suitable for the
// answer generator's context window.
func FormatAsContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[Web Search Results]\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		if r.Content != "" {
			fmt.Fprintf(&b, "   %s\n", r.Content)
		}
		if r.URL != "" {
			fmt.Fprintf(&b, "   Source: %s\n", r.URL)
		}
	}
	return b.String()
}

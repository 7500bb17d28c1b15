// Package source fetches articles linked from editorial input and converts
// them to markdown for use as prompt material.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// DefaultMaxChars caps the markdown returned for one page.
const DefaultMaxChars = 20000

const maxBodyBytes = 5 << 20

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Fetcher downloads a page and converts its HTML to markdown.
type Fetcher struct {
	client   *http.Client
	maxChars int
}

// NewFetcher creates a Fetcher. maxChars <= 0 uses DefaultMaxChars.
func NewFetcher(timeout time.Duration, maxChars int) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxChars: maxChars,
	}
}

// FirstURL returns the first http(s) URL in text, without trailing
// punctuation, or "" if there is none.
func FirstURL(text string) string {
	u := urlPattern.FindString(text)
	return strings.TrimRight(u, ".,;:!?)]}")
}

// Fetch retrieves url and returns its content as markdown.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "scriptdesk/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	md = strings.TrimSpace(md)

	if utf8.RuneCountInString(md) > f.maxChars {
		md = string([]rune(md)[:f.maxChars]) + "\n\n[Content truncated]"
	}
	return md, nil
}

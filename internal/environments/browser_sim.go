package environments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rahul/autopilot/internal/executor"
)

var (
	sampleHeadlines = []any{
		"AI Breakthrough Promises Faster Computing",
		"New Research Shows Promise in Renewable Energy",
		"Tech Giants Announce Collaboration on Climate Initiative",
		"Scientists Discover Novel Approach to Quantum Computing",
		"Global Summit Addresses Cybersecurity Concerns",
	}
	sampleProducts = []any{
		map[string]any{"name": "Product A", "price": "$299", "rating": "4.5/5"},
		map[string]any{"name": "Product B", "price": "$199", "rating": "4.2/5"},
		map[string]any{"name": "Product C", "price": "$349", "rating": "4.7/5"},
	}
	sampleReviews = []any{
		map[string]any{"author": "User1", "rating": 5, "text": "Excellent product, highly recommended!"},
		map[string]any{"author": "User2", "rating": 4, "text": "Good value for money, but could be improved."},
		map[string]any{"author": "User3", "rating": 5, "text": "Exceeded my expectations in every way."},
	}
)

// SimulatedBrowser returns deterministic canned pages.
type SimulatedBrowser struct {
	Latency time.Duration
}

func (b *SimulatedBrowser) Navigate(ctx context.Context, url string, log executor.LogFunc) (*PageResult, error) {
	log("Navigating to " + url)
	if err := pause(ctx, b.Latency); err != nil {
		return nil, err
	}
	log("Page loaded: " + url)
	return &PageResult{Status: "success", URL: url, Title: "Page title for " + url}, nil
}

func (b *SimulatedBrowser) Search(ctx context.Context, query, engine string, log executor.LogFunc) (*SearchResult, error) {
	log(fmt.Sprintf("Searching for %q on %s", query, engine))
	if err := pause(ctx, b.Latency); err != nil {
		return nil, err
	}
	hits := make([]SearchHit, 0, 5)
	for i := 1; i <= 5; i++ {
		hits = append(hits, SearchHit{
			Title:   fmt.Sprintf("Result %d for %q", i, query),
			URL:     fmt.Sprintf("https://example.com/result-%d", i),
			Snippet: fmt.Sprintf("This is a snippet of content related to %s...", query),
		})
	}
	log(fmt.Sprintf("Found %d results for %q", len(hits), query))
	return &SearchResult{Query: query, SearchEngine: engine, Results: hits}, nil
}

func (b *SimulatedBrowser) Extract(ctx context.Context, selector, url string, log executor.LogFunc) (*ExtractResult, error) {
	log(fmt.Sprintf("Extracting content with selector %q from %s", selector, url))
	if err := pause(ctx, b.Latency); err != nil {
		return nil, err
	}

	var extracted []any
	switch {
	case strings.Contains(selector, "headline"), strings.Contains(selector, "title"):
		extracted = sampleHeadlines
	case strings.Contains(selector, "price"), strings.Contains(selector, "product"):
		extracted = sampleProducts
	default:
		extracted = []any{"Sample extracted content 1", "Sample extracted content 2", "Sample extracted content 3"}
	}
	log(fmt.Sprintf("Extracted %d items", len(extracted)))
	return &ExtractResult{Selector: selector, URL: url, Extracted: extracted}, nil
}

func (b *SimulatedBrowser) Scrape(ctx context.Context, url string, dataPoints []string, log executor.LogFunc) (map[string]any, error) {
	log("Scraping data from " + url)
	log("Looking for: " + strings.Join(dataPoints, ", "))
	if err := pause(ctx, b.Latency); err != nil {
		return nil, err
	}

	out := map[string]any{"url": url}
	for _, dp := range dataPoints {
		var data []any
		switch strings.ToLower(dp) {
		case "headlines", "titles":
			data = sampleHeadlines
		case "prices", "products":
			data = sampleProducts
		case "reviews":
			data = sampleReviews
		default:
			data = []any{
				fmt.Sprintf("Sample %s data 1", dp),
				fmt.Sprintf("Sample %s data 2", dp),
				fmt.Sprintf("Sample %s data 3", dp),
			}
		}
		out[dp] = data
		log(fmt.Sprintf("Scraped %s: %d items", dp, len(data)))
	}
	return out, nil
}

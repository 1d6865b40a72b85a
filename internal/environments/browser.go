package environments

import (
	"context"

	"github.com/rahul/autopilot/internal/executor"
	"github.com/rahul/autopilot/internal/plan"
)

// PageResult is returned by navigate.
type PageResult struct {
	Status string `json:"status"`
	URL    string `json:"url"`
	Title  string `json:"title"`
}

// SearchHit is one search result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchResult is returned by search.
type SearchResult struct {
	Query        string      `json:"query"`
	SearchEngine string      `json:"searchEngine"`
	Results      []SearchHit `json:"results"`
}

// ExtractResult is returned by extract.
type ExtractResult struct {
	Selector  string `json:"selector"`
	URL       string `json:"url"`
	Extracted any    `json:"extracted"`
}

// BrowserBackend performs the browser actions.
type BrowserBackend interface {
	Navigate(ctx context.Context, url string, log executor.LogFunc) (*PageResult, error)
	Search(ctx context.Context, query, engine string, log executor.LogFunc) (*SearchResult, error)
	Extract(ctx context.Context, selector, url string, log executor.LogFunc) (*ExtractResult, error)
	// Scrape returns a map holding "url" plus one entry per data point.
	Scrape(ctx context.Context, url string, dataPoints []string, log executor.LogFunc) (map[string]any, error)
}

// NewBrowser builds the browser executor.
func NewBrowser(b BrowserBackend) *executor.Module {
	table := executor.NewActionTable().
		Register("navigate", func(ctx context.Context, in executor.Inputs, log executor.LogFunc) (any, error) {
			url, err := in.RequireString("url")
			if err != nil {
				return nil, err
			}
			return b.Navigate(ctx, url, log)
		}).
		Register("search", func(ctx context.Context, in executor.Inputs, log executor.LogFunc) (any, error) {
			query, err := in.RequireString("query")
			if err != nil {
				return nil, err
			}
			engine, err := in.String("searchEngine", "google")
			if err != nil {
				return nil, err
			}
			return b.Search(ctx, query, engine, log)
		}).
		Register("extract", func(ctx context.Context, in executor.Inputs, log executor.LogFunc) (any, error) {
			selector, err := in.RequireString("selector")
			if err != nil {
				return nil, err
			}
			url, err := in.String("url", "")
			if err != nil {
				return nil, err
			}
			return b.Extract(ctx, selector, url, log)
		}).
		Register("scrape", func(ctx context.Context, in executor.Inputs, log executor.LogFunc) (any, error) {
			url, err := in.RequireString("url")
			if err != nil {
				return nil, err
			}
			points, err := in.StringSlice("dataPoints")
			if err != nil {
				return nil, err
			}
			if len(points) == 0 {
				return nil, &executor.InputError{Key: "dataPoints", Want: "a non-empty list of strings"}
			}
			return b.Scrape(ctx, url, points, log)
		})

	m := executor.NewModule(plan.EnvBrowser, table)
	m.Banner = "Browser"
	return m
}

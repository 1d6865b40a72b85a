package environments

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// Searcher runs a web search and returns the engine's raw text answer.
type Searcher interface {
	Call(ctx context.Context, query string) (string, error)
}

// NewDuckDuckGo returns a Searcher backed by DuckDuckGo.
func NewDuckDuckGo(maxResults int) (Searcher, error) {
	ddg, err := duckduckgo.New(maxResults, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search: %w", err)
	}
	return ddg, nil
}

// parseSearchHits turns the "Title: / Description: / URL:" blocks the
// DuckDuckGo tool produces into hits. Unrecognised lines are ignored.
func parseSearchHits(raw string) []SearchHit {
	var hits []SearchHit
	var cur *SearchHit
	flush := func() {
		if cur != nil && (cur.Title != "" || cur.URL != "") {
			hits = append(hits, *cur)
		}
		cur = nil
	}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(key) {
		case "title":
			flush()
			cur = &SearchHit{Title: value}
		case "description":
			if cur == nil {
				cur = &SearchHit{}
			}
			cur.Snippet = value
		case "url", "link":
			if cur == nil {
				cur = &SearchHit{}
			}
			cur.URL = value
		}
	}
	flush()
	return hits
}

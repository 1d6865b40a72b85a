package environments

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/microcosm-cc/bluemonday"

	"github.com/rahul/autopilot/internal/executor"
)

const actionTimeout = 60 * time.Second

// ChromeBrowser drives a real Chrome instance through chromedp. The browser
// is started lazily on the first action and reused until Close.
type ChromeBrowser struct {
	Headless bool
	Scraper  *Scraper
	// Searcher is created on first use when nil.
	Searcher Searcher

	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewChromeBrowser(headless bool) *ChromeBrowser {
	return &ChromeBrowser{Headless: headless, Scraper: NewScraper()}
}

func (b *ChromeBrowser) initBrowser() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		select {
		case <-b.browserCtx.Done():
			b.cleanup()
		default:
			return b.browserCtx, nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", b.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)

	if err := chromedp.Run(b.browserCtx); err != nil {
		b.cleanup()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	return b.browserCtx, nil
}

func (b *ChromeBrowser) cleanup() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	b.allocCtx = nil
}

// Close shuts the browser down.
func (b *ChromeBrowser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanup()
}

// run executes chromedp actions bounded by both the caller's context and the
// per-action timeout. Actions on the shared tab are serialised.
func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	browserCtx, err := b.initBrowser()
	if err != nil {
		return err
	}
	actionCtx, cancel := context.WithTimeout(browserCtx, actionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	return chromedp.Run(actionCtx, actions...)
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string, log executor.LogFunc) (*PageResult, error) {
	log("Navigating to " + url)
	var title string
	if err := b.run(ctx, chromedp.Navigate(url), chromedp.Title(&title)); err != nil {
		return nil, fmt.Errorf("browser action failed: %w", err)
	}
	log("Page loaded: " + url)
	return &PageResult{Status: "success", URL: url, Title: title}, nil
}

func (b *ChromeBrowser) Search(ctx context.Context, query, engine string, log executor.LogFunc) (*SearchResult, error) {
	if b.Searcher == nil {
		s, err := NewDuckDuckGo(10)
		if err != nil {
			return nil, err
		}
		b.Searcher = s
	}
	// The live backend always answers through DuckDuckGo.
	log(fmt.Sprintf("Searching for %q on duckduckgo (requested %s)", query, engine))
	raw, err := b.Searcher.Call(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	hits := parseSearchHits(raw)
	log(fmt.Sprintf("Found %d results for %q", len(hits), query))
	return &SearchResult{Query: query, SearchEngine: "duckduckgo", Results: hits}, nil
}

const extractScript = `Array.from(document.querySelectorAll(%q)).map(e => e.innerText.trim()).filter(t => t.length > 0)`

func (b *ChromeBrowser) Extract(ctx context.Context, selector, url string, log executor.LogFunc) (*ExtractResult, error) {
	log(fmt.Sprintf("Extracting content with selector %q from %s", selector, url))

	var actions []chromedp.Action
	if url != "" {
		actions = append(actions, chromedp.Navigate(url))
	}

	var texts []string
	var html string
	if selector == "*" || selector == "html" {
		// Whole document, reduced to text.
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}))
	} else {
		actions = append(actions, chromedp.Evaluate(fmt.Sprintf(extractScript, selector), &texts))
	}

	if err := b.run(ctx, actions...); err != nil {
		return nil, fmt.Errorf("browser action failed: %w", err)
	}

	var extracted any = texts
	if html != "" {
		text := strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(html))
		if len(text) > maxContentLength {
			text = text[:maxContentLength] + "\n... (truncated)"
		}
		extracted = text
		log(fmt.Sprintf("Extracted %d characters", len(text)))
	} else {
		log(fmt.Sprintf("Extracted %d items", len(texts)))
	}
	return &ExtractResult{Selector: selector, URL: url, Extracted: extracted}, nil
}

// Scrape fetches the readable article and, for each data point, collects the
// content lines mentioning it.
func (b *ChromeBrowser) Scrape(ctx context.Context, url string, dataPoints []string, log executor.LogFunc) (map[string]any, error) {
	log("Scraping data from " + url)
	log("Looking for: " + strings.Join(dataPoints, ", "))

	article, err := b.Scraper.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"url": url, "title": article.Title}
	for _, dp := range dataPoints {
		matches := matchingLines(article.Content, dp, 10)
		out[dp] = matches
		log(fmt.Sprintf("Scraped %s: %d items", dp, len(matches)))
	}
	return out, nil
}

func matchingLines(content, term string, limit int) []string {
	needle := strings.ToLower(strings.TrimSuffix(term, "s"))
	out := []string{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(strings.ToLower(line), needle) {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}

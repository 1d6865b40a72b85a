package environments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/autopilot/internal/executor"
	"github.com/rahul/autopilot/internal/governance"
	"github.com/rahul/autopilot/internal/plan"
)

func collect() (executor.LogFunc, *[]string) {
	var lines []string
	return func(s string) { lines = append(lines, s) }, &lines
}

func simulated(t *testing.T) *executor.Registry {
	t.Helper()
	set, err := Build(Options{})
	require.NoError(t, err)
	t.Cleanup(set.Close)
	return set.Registry
}

func TestBuildRegistersAllEnvironments(t *testing.T) {
	reg := simulated(t)
	assert.ElementsMatch(t, plan.Environments, reg.Environments())

	desc := reg.Describe()
	assert.Contains(t, desc[plan.EnvBrowser], "scrape")
	assert.Contains(t, desc[plan.EnvTerminal], "process data")
	assert.Contains(t, desc[plan.EnvFileSystem], "create directory")
}

func TestSimulatedBrowser(t *testing.T) {
	reg := simulated(t)
	ctx := context.Background()

	t.Run("navigate", func(t *testing.T) {
		log, lines := collect()
		out, err := reg.Dispatch(ctx, plan.EnvBrowser, "Navigate", map[string]any{"url": "https://example.com"}, log)
		require.NoError(t, err)
		page := out.(*PageResult)
		assert.Equal(t, "Page title for https://example.com", page.Title)
		assert.Equal(t, "Browser: Navigate", (*lines)[0])
	})

	t.Run("search defaults engine", func(t *testing.T) {
		log, _ := collect()
		out, err := reg.Dispatch(ctx, plan.EnvBrowser, "search", map[string]any{"query": "go"}, log)
		require.NoError(t, err)
		res := out.(*SearchResult)
		assert.Equal(t, "google", res.SearchEngine)
		assert.Len(t, res.Results, 5)
	})

	t.Run("extract headlines", func(t *testing.T) {
		log, _ := collect()
		out, err := reg.Dispatch(ctx, plan.EnvBrowser, "extract", map[string]any{"selector": ".headline"}, log)
		require.NoError(t, err)
		assert.Len(t, out.(*ExtractResult).Extracted, 5)
	})

	t.Run("scrape", func(t *testing.T) {
		log, _ := collect()
		out, err := reg.Dispatch(ctx, plan.EnvBrowser, "scrape", map[string]any{
			"url":        "https://shop.example",
			"dataPoints": []any{"prices", "reviews", "colors"},
		}, log)
		require.NoError(t, err)
		m := out.(map[string]any)
		assert.Equal(t, "https://shop.example", m["url"])
		assert.Len(t, m["prices"], 3)
		assert.Equal(t, "Sample colors data 1", m["colors"].([]any)[0])
	})

	t.Run("scrape requires data points", func(t *testing.T) {
		log, _ := collect()
		_, err := reg.Dispatch(ctx, plan.EnvBrowser, "scrape", map[string]any{"url": "https://shop.example"}, log)
		var inErr *executor.InputError
		require.ErrorAs(t, err, &inErr)
		assert.Equal(t, "dataPoints", inErr.Key)
	})

	t.Run("unknown action", func(t *testing.T) {
		log, _ := collect()
		_, err := reg.Dispatch(ctx, plan.EnvBrowser, "teleport", nil, log)
		var unknown *executor.UnknownActionError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "teleport", unknown.Action)
	})
}

func TestSimulatedTerminal(t *testing.T) {
	reg := simulated(t)
	ctx := context.Background()

	tests := []struct {
		command string
		want    string
	}{
		{"ls -la", "file1.txt\nfile2.json\ndirectory1\ndirectory2"},
		{"echo hello world", "hello world"},
		{"grep -r foo .", "match1.txt:relevant content here\nmatch2.txt:more relevant content"},
		{"uptime", "Simulated output for command: uptime"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			log, _ := collect()
			out, err := reg.Dispatch(ctx, plan.EnvTerminal, "run command", map[string]any{"command": tt.command}, log)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.(*CommandResult).Stdout)
		})
	}

	log, _ := collect()
	out, err := reg.Dispatch(ctx, plan.EnvTerminal, "install package", map[string]any{"package": "jq"}, log)
	require.NoError(t, err)
	assert.Equal(t, &InstallResult{Package: "jq", Status: "installed", Version: "1.0.0"}, out)
}

func TestProcessData(t *testing.T) {
	noop := func(string) {}

	t.Run("filter strings", func(t *testing.T) {
		res := ProcessData([]any{"short", "longer text", "tiny", "sufficiently"}, "filter", noop)
		assert.Equal(t, []any{"longer text", "sufficiently"}, res.Result)
	})

	t.Run("filter ratings", func(t *testing.T) {
		res := ProcessData(sampleReviews, "filter", noop)
		kept := res.Result.([]any)
		require.Len(t, kept, 2)
		assert.Equal(t, "User1", kept[0].(map[string]any)["author"])
		assert.Equal(t, "User3", kept[1].(map[string]any)["author"])

		products := ProcessData([]any{
			map[string]any{"name": "A", "rating": "4.5/5"},
			map[string]any{"name": "B", "rating": "3.9/5"},
		}, "filter", noop)
		assert.Len(t, products.Result, 1)
	})

	t.Run("sort", func(t *testing.T) {
		in := []any{"pear", "apple", "fig"}
		res := ProcessData(in, "Sort", noop)
		assert.Equal(t, []any{"apple", "fig", "pear"}, res.Result)
		assert.Equal(t, []any{"pear", "apple", "fig"}, in)
	})

	t.Run("count list", func(t *testing.T) {
		assert.Equal(t, 0, ProcessData([]any{}, "count", noop).Result)
		assert.Equal(t, 3, ProcessData([]string{"a", "b", "c"}, "count", noop).Result)
	})

	t.Run("count text", func(t *testing.T) {
		res := ProcessData("one two\nthree", "count", noop)
		assert.Equal(t, TextStats{Characters: 13, Words: 3, Lines: 2}, res.Result)
	})

	t.Run("other operation", func(t *testing.T) {
		res := ProcessData(42, "summarize", noop)
		assert.Equal(t, "Processed data using summarize", res.Result)
		assert.Equal(t, 42, res.Original)
	})

	t.Run("wrong shape", func(t *testing.T) {
		res := ProcessData(map[string]any{"a": 1}, "filter", noop)
		assert.Equal(t, "Processed data using filter", res.Result)
	})
}

func TestSimulatedFileSystem(t *testing.T) {
	reg := simulated(t)
	ctx := context.Background()

	t.Run("read by extension", func(t *testing.T) {
		for path, ext := range map[string]string{"data.json": "json", "rows.csv": "csv", "notes": "txt"} {
			log, _ := collect()
			out, err := reg.Dispatch(ctx, plan.EnvFileSystem, "read file", map[string]any{"path": path}, log)
			require.NoError(t, err)
			res := out.(*ReadResult)
			assert.Equal(t, ext, res.Extension)
			assert.Positive(t, res.Size)
		}
	})

	t.Run("write csv", func(t *testing.T) {
		log, lines := collect()
		out, err := reg.Dispatch(ctx, plan.EnvFileSystem, "write file", map[string]any{
			"path":    "out.csv",
			"format":  "csv",
			"content": []any{map[string]any{"name": "a", "id": 1}, map[string]any{"name": "b", "id": 2}},
		}, log)
		require.NoError(t, err)
		res := out.(*WriteResult)
		assert.True(t, res.Success)
		assert.Equal(t, len("id,name\n1,a\n2,b"), res.Size)
		assert.Contains(t, *lines, "Writing to file: out.csv")
	})

	t.Run("list", func(t *testing.T) {
		log, lines := collect()
		out, err := reg.Dispatch(ctx, plan.EnvFileSystem, "list directory", map[string]any{"path": "/tmp"}, log)
		require.NoError(t, err)
		assert.Equal(t, 5, out.(*ListResult).Count)
		assert.Contains(t, *lines, "Found 3 files and 2 directories")
	})

	t.Run("create", func(t *testing.T) {
		log, _ := collect()
		out, err := reg.Dispatch(ctx, plan.EnvFileSystem, "create directory", map[string]any{"path": "reports"}, log)
		require.NoError(t, err)
		assert.NotEmpty(t, out.(*CreateResult).Created)
	})
}

func TestEncodeContent(t *testing.T) {
	noop := func(string) {}

	data, err := encodeContent(map[string]any{"a": 1}, "json", noop)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(data))

	data, err = encodeContent("plain", "text", noop)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(data))

	data, err = encodeContent([]any{1, 2}, "", noop)
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", string(data))

	data, err = encodeContent("not records", "csv", noop)
	require.NoError(t, err)
	assert.Equal(t, "No data", string(data))
}

func TestWorkspaceStore(t *testing.T) {
	root := t.TempDir()
	ws, err := NewWorkspaceStore(root, nil)
	require.NoError(t, err)
	fs := NewFileSystem(ws)
	ctx := context.Background()
	log, _ := collect()

	_, err = fs.Execute(ctx, "create directory", map[string]any{"path": "reports"}, log)
	require.NoError(t, err)
	_, err = fs.Execute(ctx, "write file", map[string]any{
		"path":    "reports/summary.json",
		"format":  "json",
		"content": map[string]any{"total": 3},
	}, log)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(root, "reports", "summary.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"total": 3}`, string(raw))

	out, err := fs.Execute(ctx, "read file", map[string]any{"path": "reports/summary.json"}, log)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"total": float64(3)}, out.(*ReadResult).Content)

	out, err = fs.Execute(ctx, "list directory", map[string]any{"path": "reports"}, log)
	require.NoError(t, err)
	list := out.(*ListResult)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "summary.json", list.Files[0].Name)

	for _, bad := range []string{"../escape.txt", "/etc/passwd", "a/../../b"} {
		_, err := fs.Execute(ctx, "read file", map[string]any{"path": bad}, log)
		require.Error(t, err, bad)
		assert.Contains(t, err.Error(), "unsafe path", bad)
	}
}

func TestWorkspaceStorePolicy(t *testing.T) {
	policy := governance.NewDefaultPolicyEngine()
	policy.DenyAction(string(plan.EnvFileSystem), "write file")
	ws, err := NewWorkspaceStore(t.TempDir(), policy)
	require.NoError(t, err)

	_, err = NewFileSystem(ws).Execute(context.Background(), "write file",
		map[string]any{"path": "x.txt", "content": "x"}, func(string) {})
	var denied *governance.DeniedError
	require.ErrorAs(t, err, &denied)
}

func TestLiveShell(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	policy := governance.NewDefaultPolicyEngine()
	for _, p := range governance.DefaultDenyPatterns {
		require.NoError(t, policy.DenyArguments(p))
	}
	sh := &LiveShell{Dir: t.TempDir(), Policy: policy}
	ctx := context.Background()
	log, lines := collect()

	res, err := sh.Run(ctx, "echo hello", log)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Stdout)
	assert.Contains(t, *lines, "Command output:\nhello")

	_, err = sh.Run(ctx, "echo oops >&2; exit 3", log)
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "oops", cmdErr.Stderr)

	_, err = sh.Run(ctx, "rm -rf /", log)
	var denied *governance.DeniedError
	require.ErrorAs(t, err, &denied)

	_, err = sh.Install(ctx, "jq", log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no install command")
}

func TestLiveShellInstallRejectsUnsafeNames(t *testing.T) {
	sh := &LiveShell{Dir: t.TempDir(), InstallCommand: "apt-get install -y %s"}
	log, _ := collect()

	for _, name := range []string{"jq;ls", "a\tb", `"jq"`, "jq'", "$(id)", "(jq)", "jq name", ""} {
		_, err := sh.Install(context.Background(), name, log)
		var inErr *executor.InputError
		assert.ErrorAs(t, err, &inErr, "%q", name)
	}
	for _, name := range []string{"jq", "python3-pip", "g++", "libssl1.1", "@scope/pkg", "pkg@1.2.3"} {
		assert.True(t, packageName.MatchString(name), name)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))

	s := strings.Repeat("a", maxOutputLength-1) + "é"
	got := truncate(s)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxOutputLength-1)+"\n... (truncated)", got)
}

func TestParseSearchHits(t *testing.T) {
	raw := strings.Join([]string{
		"Title: Go",
		"Description: The Go language",
		"URL: https://go.dev",
		"",
		"Title: Tour",
		"URL: https://go.dev/tour",
		"noise line",
	}, "\n")
	hits := parseSearchHits(raw)
	require.Len(t, hits, 2)
	assert.Equal(t, SearchHit{Title: "Go", Snippet: "The Go language", URL: "https://go.dev"}, hits[0])
	assert.Equal(t, "https://go.dev/tour", hits[1].URL)
	assert.Empty(t, parseSearchHits("nothing here"))
}

func TestMatchingLines(t *testing.T) {
	content := "Price: $10\nno match\nprice drop today\n"
	assert.Equal(t, []string{"Price: $10", "price drop today"}, matchingLines(content, "prices", 10))
	assert.Equal(t, []string{"Price: $10"}, matchingLines(content, "price", 1))
}

func TestScraperFetch(t *testing.T) {
	paragraph := strings.Repeat("Autonomous agents split large tasks into small dependent steps. ", 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><head><title>Agent Notes</title></head><body>
<nav>menu</nav><article><h1>Agent Notes</h1><p>%s</p><p>%s</p><script>alert(1)</script></article></body></html>`,
			paragraph, paragraph)
	}))
	defer srv.Close()

	s := NewScraper()
	article, err := s.Fetch(context.Background(), srv.URL+"/post")
	require.NoError(t, err)
	assert.Equal(t, "Agent Notes", article.Title)
	assert.Contains(t, article.Content, "dependent steps")
	assert.NotContains(t, article.Content, "<script>")

	_, err = s.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 404")
}

func TestSimulatedLatencyHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &SimulatedBrowser{Latency: 1e9}
	_, err := b.Navigate(ctx, "https://example.com", func(string) {})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSimulated, m)
	m, err = ParseMode("live")
	require.NoError(t, err)
	assert.Equal(t, ModeLive, m)
	_, err = ParseMode("mock")
	assert.Error(t, err)
}

package environments

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rahul/autopilot/internal/executor"
	"github.com/rahul/autopilot/internal/plan"
)

// ReadResult is returned by read file.
type ReadResult struct {
	Path      string `json:"path"`
	Content   any    `json:"content"`
	Size      int    `json:"size"`
	Extension string `json:"extension"`
}

// WriteResult is returned by write file.
type WriteResult struct {
	Path    string `json:"path"`
	Size    int    `json:"size"`
	Format  string `json:"format"`
	Success bool   `json:"success"`
}

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size,omitempty"`
}

// ListResult is returned by list directory.
type ListResult struct {
	Path  string     `json:"path"`
	Files []DirEntry `json:"files"`
	Count int        `json:"count"`
}

// CreateResult is returned by create directory.
type CreateResult struct {
	Path    string `json:"path"`
	Success bool   `json:"success"`
	Created string `json:"created"`
}

// FileStore backs the file system executor. Write receives content that is
// already encoded.
type FileStore interface {
	Read(ctx context.Context, path string, log executor.LogFunc) (*ReadResult, error)
	Write(ctx context.Context, path string, data []byte, log executor.LogFunc) error
	List(ctx context.Context, path string, log executor.LogFunc) (*ListResult, error)
	Mkdir(ctx context.Context, path string, log executor.LogFunc) (*CreateResult, error)
}

// NewFileSystem builds the file system executor.
func NewFileSystem(fs FileStore) *executor.Module {
	table := executor.NewActionTable().
		Register("read file", func(ctx context.Context, in executor.Inputs, log executor.LogFunc) (any, error) {
			path, err := in.RequireString("path")
			if err != nil {
				return nil, err
			}
			log("Reading file: " + path)
			return fs.Read(ctx, path, log)
		}).
		Register("write file", func(ctx context.Context, in executor.Inputs, log executor.LogFunc) (any, error) {
			path, err := in.RequireString("path")
			if err != nil {
				return nil, err
			}
			format, err := in.String("format", "text")
			if err != nil {
				return nil, err
			}
			content, _ := in.Value("content")

			log("Writing to file: " + path)
			data, err := encodeContent(content, format, log)
			if err != nil {
				return nil, err
			}
			if err := fs.Write(ctx, path, data, log); err != nil {
				return nil, err
			}
			return &WriteResult{Path: path, Size: len(data), Format: format, Success: true}, nil
		}).
		Register("list directory", func(ctx context.Context, in executor.Inputs, log executor.LogFunc) (any, error) {
			path, err := in.String("path", ".")
			if err != nil {
				return nil, err
			}
			log("Listing directory: " + path)
			res, err := fs.List(ctx, path, log)
			if err != nil {
				return nil, err
			}
			files, dirs := 0, 0
			for _, e := range res.Files {
				if e.Type == "directory" {
					dirs++
				} else {
					files++
				}
			}
			log(fmt.Sprintf("Found %d files and %d directories", files, dirs))
			return res, nil
		}).
		Register("create directory", func(ctx context.Context, in executor.Inputs, log executor.LogFunc) (any, error) {
			path, err := in.RequireString("path")
			if err != nil {
				return nil, err
			}
			log("Creating directory: " + path)
			res, err := fs.Mkdir(ctx, path, log)
			if err != nil {
				return nil, err
			}
			log("Directory created: " + path)
			return res, nil
		})

	m := executor.NewModule(plan.EnvFileSystem, table)
	m.Banner = "File System"
	return m
}

// encodeContent renders write file content in the requested format. JSON is
// indented; CSV takes its header from the sorted keys of the first record;
// anything else is written as text, with non-string values as JSON.
func encodeContent(content any, format string, log executor.LogFunc) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(content, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		log(fmt.Sprintf("Wrote %d bytes of JSON data", len(data)))
		return data, nil

	case "csv":
		records := asRecords(content)
		if len(records) == 0 {
			log("Wrote empty CSV file")
			return []byte("No data"), nil
		}
		data, err := encodeCSV(records)
		if err != nil {
			return nil, err
		}
		log(fmt.Sprintf("Wrote CSV with %d rows (%d bytes)", len(records), len(data)))
		return data, nil

	default:
		var data []byte
		if s, ok := content.(string); ok {
			data = []byte(s)
		} else {
			var err error
			if data, err = json.Marshal(content); err != nil {
				return nil, fmt.Errorf("failed to encode content: %w", err)
			}
		}
		log(fmt.Sprintf("Wrote %d bytes to text file", len(data)))
		return data, nil
	}
}

func asRecords(content any) []map[string]any {
	switch t := content.(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func encodeCSV(records []map[string]any) ([]byte, error) {
	header := make([]string, 0, len(records[0]))
	for k := range records[0] {
		header = append(header, k)
	}
	sort.Strings(header)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, rec := range records {
		row := make([]string, len(header))
		for i, k := range header {
			if v, ok := rec[k]; ok && v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode csv: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// extension returns the lower-case extension of path without the dot, or
// "txt" when there is none.
func extension(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "txt"
	}
	return ext
}

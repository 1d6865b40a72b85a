package environments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rahul/autopilot/internal/executor"
)

const (
	sampleCSV  = "id,name,value\n1,Item 1,100\n2,Item 2,200\n3,Item 3,300"
	sampleText = "This is sample content for the file.\nIt contains multiple lines.\nEach line has some text."
)

// SimulatedFileStore serves canned file content chosen by extension and
// accepts writes without touching disk.
type SimulatedFileStore struct {
	Latency time.Duration
	// Now is used for creation timestamps; defaults to time.Now.
	Now func() time.Time
}

func sampleJSON() map[string]any {
	return map[string]any{
		"name": "Sample Data",
		"items": []any{
			map[string]any{"id": 1, "value": "Item 1"},
			map[string]any{"id": 2, "value": "Item 2"},
			map[string]any{"id": 3, "value": "Item 3"},
		},
		"metadata": map[string]any{"created": "2023-01-01", "version": "1.0"},
	}
}

func (s *SimulatedFileStore) Read(ctx context.Context, path string, log executor.LogFunc) (*ReadResult, error) {
	if err := pause(ctx, s.Latency); err != nil {
		return nil, err
	}

	ext := extension(path)
	var content any
	switch ext {
	case "json":
		content = sampleJSON()
		log("Read JSON with 3 items")
	case "csv":
		content = sampleCSV
		log(fmt.Sprintf("Read CSV with %d rows", strings.Count(sampleCSV, "\n")))
	default:
		content = sampleText
		log(fmt.Sprintf("Read text file with %d lines", strings.Count(sampleText, "\n")+1))
	}

	size := 0
	if data, err := json.Marshal(content); err == nil {
		size = len(data)
	}
	return &ReadResult{Path: path, Content: content, Size: size, Extension: ext}, nil
}

func (s *SimulatedFileStore) Write(ctx context.Context, path string, data []byte, log executor.LogFunc) error {
	return pause(ctx, s.Latency)
}

func (s *SimulatedFileStore) List(ctx context.Context, path string, log executor.LogFunc) (*ListResult, error) {
	if err := pause(ctx, s.Latency); err != nil {
		return nil, err
	}
	files := []DirEntry{
		{Name: "file1.txt", Type: "file", Size: 1024},
		{Name: "file2.json", Type: "file", Size: 2048},
		{Name: "image.png", Type: "file", Size: 10240},
		{Name: "subdirectory1", Type: "directory"},
		{Name: "subdirectory2", Type: "directory"},
	}
	return &ListResult{Path: path, Files: files, Count: len(files)}, nil
}

func (s *SimulatedFileStore) Mkdir(ctx context.Context, path string, log executor.LogFunc) (*CreateResult, error) {
	if err := pause(ctx, s.Latency); err != nil {
		return nil, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return &CreateResult{Path: path, Success: true, Created: now().UTC().Format(time.RFC3339)}, nil
}

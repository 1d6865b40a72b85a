package environments

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rahul/autopilot/internal/executor"
	"github.com/rahul/autopilot/internal/governance"
	"github.com/rahul/autopilot/internal/plan"
)

// WorkspaceStore reads and writes files under a single root directory.
type WorkspaceStore struct {
	Root   string
	Policy governance.PolicyEngine
}

// NewWorkspaceStore creates root if needed.
func NewWorkspaceStore(root string, policy governance.PolicyEngine) (*WorkspaceStore, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &WorkspaceStore{Root: abs, Policy: policy}, nil
}

// resolve maps path into the workspace, rejecting anything that escapes it.
func (w *WorkspaceStore) resolve(path string) (string, error) {
	target := filepath.Join(w.Root, path)
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	}
	rel, err := filepath.Rel(w.Root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", path)
	}
	return target, nil
}

func (w *WorkspaceStore) Read(ctx context.Context, path string, log executor.LogFunc) (*ReadResult, error) {
	target, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	ext := extension(path)
	var content any = string(data)
	if ext == "json" {
		var v any
		if err := json.Unmarshal(data, &v); err == nil {
			content = v
		}
	}
	log(fmt.Sprintf("Read %d bytes from %s", len(data), path))
	return &ReadResult{Path: path, Content: content, Size: len(data), Extension: ext}, nil
}

func (w *WorkspaceStore) Write(ctx context.Context, path string, data []byte, log executor.LogFunc) error {
	if err := governance.Enforce(ctx, w.Policy, governance.Request{
		Environment: string(plan.EnvFileSystem),
		Action:      "write file",
		Arguments:   path,
	}); err != nil {
		return err
	}
	target, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (w *WorkspaceStore) List(ctx context.Context, path string, log executor.LogFunc) (*ListResult, error) {
	target, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}
	files := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		entry := DirEntry{Name: e.Name(), Type: "file"}
		if e.IsDir() {
			entry.Type = "directory"
		} else if info, err := e.Info(); err == nil {
			entry.Size = info.Size()
		}
		files = append(files, entry)
	}
	return &ListResult{Path: path, Files: files, Count: len(files)}, nil
}

func (w *WorkspaceStore) Mkdir(ctx context.Context, path string, log executor.LogFunc) (*CreateResult, error) {
	if err := governance.Enforce(ctx, w.Policy, governance.Request{
		Environment: string(plan.EnvFileSystem),
		Action:      "create directory",
		Arguments:   path,
	}); err != nil {
		return nil, err
	}
	target, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &CreateResult{Path: path, Success: true, Created: time.Now().UTC().Format(time.RFC3339)}, nil
}

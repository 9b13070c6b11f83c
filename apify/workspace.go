package apify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace is a scaffolded actor project on disk. Paths are confined to its root.
type Workspace struct {
	root string
}

// NewWorkspace opens an existing project directory
func NewWorkspace(dir string) (*Workspace, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("workspace missing after scaffold: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace %s is not a directory", absPath)
	}
	return &Workspace{root: absPath}, nil
}

// Root returns the absolute project directory
func (w *Workspace) Root() string { return w.root }

// ReadFile reads a file relative to the root
func (w *Workspace) ReadFile(rel string) ([]byte, error) {
	path, err := w.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// WriteFile writes a file relative to the root, creating parent directories
func (w *Workspace) WriteFile(rel string, data []byte) error {
	path, err := w.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

func (w *Workspace) resolve(rel string) (string, error) {
	full := filepath.Join(w.root, rel)
	if full != w.root && !strings.HasPrefix(full, w.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the workspace", rel)
	}
	return full, nil
}

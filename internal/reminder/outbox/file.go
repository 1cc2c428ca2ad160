package outbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File appends entry lines to a local log file, creating it and its directory
// on first use.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile resolves path to an absolute path. The file is not opened until the
// first Append.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving outbox path %q: %w", path, err)
	}
	return &File{path: abs}, nil
}

func (f *File) Location() string { return f.path }

func (f *File) Append(_ context.Context, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating outbox directory: %w", err)
	}
	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening outbox: %w", err)
	}
	if _, err := fh.WriteString(e.Line() + "\n"); err != nil {
		fh.Close()
		return fmt.Errorf("writing outbox: %w", err)
	}
	return fh.Close()
}

// Package artifact stores generated report files.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Dir writes artifacts into a local directory.
type Dir struct {
	root   string
	logger *slog.Logger
}

// NewDir returns a sink rooted at dir, creating it if needed.
func NewDir(dir string, logger *slog.Logger) (*Dir, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return nil, errors.New("export directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &Dir{root: dir, logger: logger}, nil
}

// Save writes data to root/name, replacing any existing file, and returns
// the file path.
func (d *Dir) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := filepath.Base(filepath.Clean("/" + name))
	if clean == "/" || clean == "." {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	path := filepath.Join(d.root, clean)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("moving artifact into place: %w", err)
	}

	d.logger.Info("saved report artifact", "path", path, "size_bytes", len(data))
	return path, nil
}

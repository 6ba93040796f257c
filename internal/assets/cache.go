package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Cached describes an asset materialized on local disk.
type Cached struct {
	Path   string
	Size   int64
	Cached bool
}

// Materialize returns a local path for name. Sources with local files are
// used in place; anything else is downloaded once into cacheDir.
func Materialize(ctx context.Context, src Source, cacheDir, name string) (Cached, error) {
	if lp, ok := src.(LocalPather); ok {
		if p, ok := lp.LocalPath(name); ok {
			info, err := os.Stat(p)
			if err != nil {
				return Cached{}, fmt.Errorf("failed to stat %s: %w", p, err)
			}
			return Cached{Path: p, Size: info.Size(), Cached: true}, nil
		}
	}
	if cacheDir == "" {
		return Cached{}, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Cached{}, fmt.Errorf("failed to create cache dir: %w", err)
	}

	destPath := filepath.Join(cacheDir, cacheName(name))
	if info, err := os.Stat(destPath); err == nil {
		return Cached{Path: destPath, Size: info.Size(), Cached: true}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Cached{}, fmt.Errorf("failed to stat cached asset: %w", err)
	}

	rc, err := src.Open(ctx, name)
	if err != nil {
		return Cached{}, err
	}
	defer func() {
		_ = rc.Close()
	}()

	tmpFile, err := os.CreateTemp(cacheDir, "asset-*.part")
	if err != nil {
		return Cached{}, fmt.Errorf("failed to create temp asset: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	size, err := io.Copy(tmpFile, rc)
	if err != nil {
		return Cached{}, fmt.Errorf("failed to download %s: %w", name, err)
	}
	if err := tmpFile.Close(); err != nil {
		return Cached{}, fmt.Errorf("failed to close temp asset: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return Cached{}, fmt.Errorf("failed to move asset into cache: %w", err)
	}
	return Cached{Path: destPath, Size: size, Cached: false}, nil
}

func cacheName(name string) string {
	name = strings.TrimPrefix(strings.TrimPrefix(name, "https://"), "http://")
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	clean := path.Clean("/" + name)
	return strings.ReplaceAll(strings.TrimPrefix(clean, "/"), "/", "_")
}

// Package assets resolves and fetches the files that make up a replay
// session: probe manifests, channel arrays, cluster and trajectory tables,
// and camera videos.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned when a source has no asset under the given name.
var ErrNotFound = errors.New("asset not found")

// Source opens named assets. Names are slash-separated relative paths or
// absolute URIs.
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// LocalPather is implemented by sources whose assets already live on disk.
type LocalPather interface {
	LocalPath(name string) (string, bool)
}

// DirSource serves assets from a directory tree.
type DirSource struct {
	Root string
}

// Open implements Source.
func (d DirSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := d.path(name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

// LocalPath implements LocalPather.
func (d DirSource) LocalPath(name string) (string, bool) {
	path := d.path(name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func (d DirSource) path(name string) string {
	name = strings.TrimPrefix(name, "file://")
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Root, filepath.FromSlash(name))
}

// HTTPSource fetches assets relative to a base URL. Absolute http(s) names
// are fetched as-is.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource returns an HTTPSource with its own client timeout.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/") + "/",
		Client:  &http.Client{Timeout: timeout},
	}
}

// Open implements Source.
func (h *HTTPSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	target, err := h.resolve(name)
	if err != nil {
		return nil, err
	}
	resp, err := httpRequest(ctx, h.client(), target)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case resp.StatusCode != http.StatusOK:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status for %s: %s", name, resp.Status)
	}
	return resp.Body, nil
}

func (h *HTTPSource) resolve(name string) (string, error) {
	if isRemote(name) {
		return name, nil
	}
	base, err := url.Parse(h.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	ref, err := url.Parse(strings.TrimLeft(name, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid asset name %q: %w", name, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (h *HTTPSource) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// MuxSource routes absolute http(s) names to Remote and everything else to
// Local. Manifests list remote channel URIs while the rest of a session
// usually sits next to the manifests.
type MuxSource struct {
	Local  Source
	Remote Source
}

// Open implements Source.
func (m MuxSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if isRemote(name) && m.Remote != nil {
		return m.Remote.Open(ctx, name)
	}
	return m.Local.Open(ctx, name)
}

// LocalPath implements LocalPather when the local source does.
func (m MuxSource) LocalPath(name string) (string, bool) {
	if isRemote(name) {
		return "", false
	}
	if lp, ok := m.Local.(LocalPather); ok {
		return lp.LocalPath(name)
	}
	return "", false
}

// NewSource builds the source for a configured asset root: an http(s) URL
// or a directory path.
func NewSource(root string, timeout time.Duration) Source {
	remote := NewHTTPSource("", timeout)
	if isRemote(root) {
		return MuxSource{Local: NewHTTPSource(root, timeout), Remote: remote}
	}
	return MuxSource{Local: DirSource{Root: root}, Remote: remote}
}

func isRemote(name string) bool {
	return strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://")
}

func httpRequest(ctx context.Context, client *http.Client, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func readAll(ctx context.Context, src Source, name string) ([]byte, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

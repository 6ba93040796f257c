// Package catalog loads session lists.
package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Opener opens a named asset. assets.Source satisfies it.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// LoadFile reads one session id per line from the provided file path.
func LoadFile(path string, keep FilterFunc) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only session list.
			_ = cerr
		}
	}()
	return Parse(file, keep)
}

// Load reads a session list through src, so lists can sit next to the
// session assets on a remote root.
func Load(ctx context.Context, src Opener, name string, keep FilterFunc) ([]string, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open session list: %w", err)
	}
	defer func() {
		_ = rc.Close()
	}()
	return Parse(rc, keep)
}

// Parse reads session ids, one per line. Blank lines and '#' comments are
// skipped, duplicates are dropped and ids rejected by keep are ignored.
func Parse(r io.Reader, keep FilterFunc) ([]string, error) {
	if keep == nil {
		keep = KeepAll
	}
	seen := map[string]struct{}{}
	var sessions []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		if !keep(line) {
			continue
		}
		seen[line] = struct{}{}
		sessions = append(sessions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("session list is empty")
	}
	return sessions, nil
}

// Lookup resolves a selector to a session id: a 1-based position in
// sessions, or an id (or unique id prefix) from the list.
func Lookup(sessions []string, selector string) (string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return "", fmt.Errorf("empty session selector")
	}
	if pos, err := strconv.Atoi(selector); err == nil {
		if pos < 1 || pos > len(sessions) {
			return "", fmt.Errorf("session %d out of range (1-%d)", pos, len(sessions))
		}
		return sessions[pos-1], nil
	}
	var match string
	for _, eid := range sessions {
		if eid == selector {
			return eid, nil
		}
		if strings.HasPrefix(eid, selector) {
			if match != "" {
				return "", fmt.Errorf("session prefix %q is ambiguous", selector)
			}
			match = eid
		}
	}
	if match == "" {
		return "", fmt.Errorf("session %q not in list", selector)
	}
	return match, nil
}

// ValidEID reports whether s is a canonical session id.
func ValidEID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

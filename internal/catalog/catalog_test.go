package catalog

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	eidA = "4b00df29-3769-43be-bb40-128b1cba6d35"
	eidB = "56956777-dca5-468c-87cb-78150432cc57"
)

func TestParseSkipsBlankAndDuplicates(t *testing.T) {
	text := "# sessions\n" + eidA + "\r\n\n" + eidB + "\n" + eidA + "\n"
	sessions, err := Parse(strings.NewReader(text), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0] != eidA || sessions[1] != eidB {
		t.Fatalf("unexpected sessions %v", sessions)
	}
}

func TestParseUUIDFilter(t *testing.T) {
	sessions, err := Parse(strings.NewReader("not-an-eid\n"+eidB+"\n"), FilterFor("uuid"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0] != eidB {
		t.Fatalf("expected only the uuid to survive, got %v", sessions)
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse(strings.NewReader("\n# nothing\n"), nil); err == nil {
		t.Fatalf("expected empty list error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.txt")
	if err := os.WriteFile(path, []byte(eidA+"\n"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	sessions, err := LoadFile(path, nil)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
}

type mapOpener map[string]string

func (m mapOpener) Open(_ context.Context, name string) (io.ReadCloser, error) {
	text, ok := m[name]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(strings.NewReader(text)), nil
}

func TestLoadThroughOpener(t *testing.T) {
	src := mapOpener{"Files/sessions.txt": eidB + "\n"}
	sessions, err := Load(context.Background(), src, "Files/sessions.txt", FilterFor("uuid"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if sessions[0] != eidB {
		t.Fatalf("unexpected sessions %v", sessions)
	}
	if _, err := Load(context.Background(), src, "nope", nil); err == nil {
		t.Fatalf("expected missing list error")
	}
}

func TestLookup(t *testing.T) {
	sessions := []string{eidA, eidB}
	tests := []struct {
		selector string
		want     string
		wantErr  bool
	}{
		{"1", eidA, false},
		{"2", eidB, false},
		{"3", "", true},
		{"0", "", true},
		{eidB, eidB, false},
		{"4b00", eidA, false},
		{"zzz", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := Lookup(sessions, tt.selector)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("Lookup(%q): expected error, got %q", tt.selector, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("Lookup(%q) = %q, %v; want %q", tt.selector, got, err, tt.want)
		}
	}
}

func TestLookupAmbiguousPrefix(t *testing.T) {
	if _, err := Lookup([]string{"abc-1", "abc-2"}, "abc"); err == nil {
		t.Fatalf("expected ambiguous prefix error")
	}
}

func TestValidEID(t *testing.T) {
	if !ValidEID(eidA) {
		t.Fatalf("expected %s to be valid", eidA)
	}
	if ValidEID("hello") {
		t.Fatalf("expected hello to be invalid")
	}
}

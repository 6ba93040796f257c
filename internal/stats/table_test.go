package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Channel", "Samples", "Last"}
	rows := [][]string{
		{"lick.times", "12", "3.500"},
		{"µ", "3", "10.000"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Channel    Samples   Last" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "lick.times      12  3.500" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "µ                3 10.000" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatTableWideRunes(t *testing.T) {
	lines := formatTable([]string{"A", "B"}, [][]string{{"世界", "x"}}, nil)
	if lines[0] != "A    B" {
		t.Fatalf("expected double-width cell to widen column, got %q", lines[0])
	}
}

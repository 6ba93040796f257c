package stats

import (
	"io"
	"os"

	"golang.org/x/term"
)

const (
	minSparkWidth       = 10
	terminalWidthBackup = 80
	colorReset          = "\x1b[0m"
)

var probePalette = []string{"\x1b[36m", "\x1b[33m"}

// TerminalWidth returns the width of stdout, or 80 when it is not a
// terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// ShouldUseColor reports whether w should receive ANSI colour.
func ShouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func colorize(s string, slot int) string {
	return probePalette[slot%len(probePalette)] + s + colorReset
}

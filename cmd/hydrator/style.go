package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"hydrator/internal/track"
)

const (
	ansiReset  = "\033[0m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
)

var titleCaser = cases.Title(language.Und)

func shouldColorize(writer io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// statusLabel renders a resolution status for humans, coloured when out is
// a terminal.
func statusLabel(status track.Status, colorize bool) string {
	label := titleCaser.String(strings.ReplaceAll(string(status), "_", " "))
	if !colorize {
		return label
	}
	switch status {
	case track.StatusResolved:
		return ansiGreen + label + ansiReset
	case track.StatusUnfindable:
		return ansiRed + label + ansiReset
	default:
		return ansiYellow + label + ansiReset
	}
}

func formatDuration(seconds int, source track.DurationSource) string {
	if seconds <= 0 {
		return "-"
	}
	value := formatClock(seconds)
	if source == track.DurationPlaceholder {
		value += "*"
	}
	return value
}

func formatClock(seconds int) string {
	h, m, s := seconds/3600, (seconds/60)%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-isatty"

	"podscribe/internal/store"
)

// statusKind buckets a status line for coloring on TTYs.
type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

const statusLabelWidth = 18

func (k statusKind) marker() string {
	switch k {
	case statusOK:
		return "ok"
	case statusWarn:
		return "warn"
	case statusError:
		return "error"
	default:
		return "info"
	}
}

func (k statusKind) color() string {
	switch k {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ansiCyan
	}
}

// renderStatusLine prints one "label: marker message" line, coloring only the
// marker so messages stay copy-paste friendly.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	marker := kind.marker()
	if colorize {
		marker = kind.color() + marker + ansiReset
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", marker)
	if message != "" {
		line += "  " + message
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := strings.ToUpper(strings.TrimSpace(title))
	rule := strings.Repeat("=", utf8.RuneCountInString(line))
	if colorize {
		line = ansiBold + line + ansiReset
	}
	return []string{line, rule}
}

// workflowStatusKind maps an episode's pipeline position to a display bucket:
// recorded failures red, the human review gate yellow, terminal states green.
func workflowStatusKind(episode *store.Episode) statusKind {
	switch {
	case episode.ErrorMessage != "":
		return statusError
	case episode.WorkflowStatus == store.StatusReadyForReview:
		return statusWarn
	case episode.WorkflowStatus >= store.StatusApproved:
		return statusOK
	default:
		return statusInfo
	}
}

// colorStatusCell wraps a table cell in the kind's color. go-pretty measures
// cell widths with ANSI sequences stripped, so alignment survives.
func colorStatusCell(value string, kind statusKind, colorize bool) string {
	if !colorize {
		return value
	}
	return kind.color() + value + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

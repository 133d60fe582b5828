// Package console formats user-facing messages for the terminal. All helpers
// return strings; callers decide where to print them (normally stderr).
package console

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/sitebuild/sitebuild/pkg/logger"
)

var consoleLog = logger.New("console:console")

var (
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	verboseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	commandStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	fileStyle     = lipgloss.NewStyle().Bold(true)
	lineNumStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
)

// IsTerminal reports whether stderr is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// applyStyle renders text with style only when stderr is a terminal, so piped
// output and logs stay free of escape sequences.
func applyStyle(style lipgloss.Style, text string) string {
	if !IsTerminal() {
		return text
	}
	return style.Render(text)
}

// FormatSuccessMessage formats a success message.
func FormatSuccessMessage(message string) string {
	return applyStyle(successStyle, "✓ ") + message
}

// FormatInfoMessage formats an informational message.
func FormatInfoMessage(message string) string {
	return applyStyle(infoStyle, "ℹ ") + message
}

// FormatWarningMessage formats a warning message.
func FormatWarningMessage(message string) string {
	return applyStyle(warningStyle, "⚠ ") + message
}

// FormatErrorMessage formats an error message.
func FormatErrorMessage(message string) string {
	return applyStyle(errorStyle, "✗ ") + message
}

// FormatVerboseMessage formats a verbose/debugging message.
func FormatVerboseMessage(message string) string {
	return applyStyle(verboseStyle, "🔍 "+message)
}

// FormatCommandMessage formats an external command about to be executed.
func FormatCommandMessage(command string) string {
	return applyStyle(commandStyle, "⚡ ") + command
}

// FormatProgressMessage formats an in-progress status line.
func FormatProgressMessage(message string) string {
	return applyStyle(progressStyle, "🔨 ") + message
}

// FormatLocationMessage formats a message that points at a file or directory.
func FormatLocationMessage(message string) string {
	return applyStyle(infoStyle, "📁 ") + message
}

// LogVerbose prints message to stderr as a verbose message when verbose is set.
func LogVerbose(verbose bool, message string) {
	if verbose {
		fmt.Fprintln(os.Stderr, FormatVerboseMessage(message))
	}
}

// ErrorPosition locates an error inside a source file. Line and Column are
// 1-based; zero means unknown.
type ErrorPosition struct {
	File   string
	Line   int
	Column int
}

// CompilerError is a located diagnostic reported by a transformation stage.
type CompilerError struct {
	Position ErrorPosition
	Type     string // "error" or "warning"
	Message  string
	Context  []string // source lines surrounding Position.Line, first line is Line-1
	Hint     string
}

// FormatError renders err as "file:line:col: type: message" followed by the
// numbered context lines, if any.
func FormatError(err CompilerError) string {
	consoleLog.Printf("Formatting %s at %s:%d:%d", err.Type, err.Position.File, err.Position.Line, err.Position.Column)

	var b strings.Builder

	location := ToRelativePath(err.Position.File)
	if err.Position.Line > 0 {
		location = fmt.Sprintf("%s:%d", location, err.Position.Line)
		if err.Position.Column > 0 {
			location = fmt.Sprintf("%s:%d", location, err.Position.Column)
		}
	}

	kind := err.Type
	if kind == "" {
		kind = "error"
	}
	kindStyle := errorStyle
	if kind == "warning" {
		kindStyle = warningStyle
	}

	if location != "" {
		b.WriteString(applyStyle(fileStyle, location+":"))
		b.WriteString(" ")
	}
	b.WriteString(applyStyle(kindStyle, kind+":"))
	b.WriteString(" ")
	b.WriteString(err.Message)
	b.WriteString("\n")

	if len(err.Context) > 0 && err.Position.Line > 0 {
		first := max(1, err.Position.Line-1)
		width := len(fmt.Sprintf("%d", first+len(err.Context)-1))
		for i, line := range err.Context {
			num := fmt.Sprintf("%*d |", width, first+i)
			b.WriteString(applyStyle(lineNumStyle, num))
			b.WriteString(" ")
			b.WriteString(line)
			b.WriteString("\n")
			if first+i == err.Position.Line && err.Position.Column > 0 {
				b.WriteString(strings.Repeat(" ", width+2+err.Position.Column))
				b.WriteString(applyStyle(errorStyle, "^"))
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// FormatErrorWithSuggestions renders message followed by a bulleted list of
// suggestions.
func FormatErrorWithSuggestions(message string, suggestions []string) string {
	var b strings.Builder
	b.WriteString(FormatErrorMessage(message))
	if len(suggestions) > 0 {
		b.WriteString("\n\nSuggestions:\n")
		for _, s := range suggestions {
			b.WriteString("  • ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ToRelativePath converts an absolute path to one relative to the working
// directory when that is shorter; other paths are returned unchanged.
func ToRelativePath(path string) string {
	if path == "" || !filepath.IsAbs(path) {
		return path
	}
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// TableConfig describes a table for RenderTable.
type TableConfig struct {
	Title     string
	Headers   []string
	Rows      [][]string
	ShowTotal bool
	TotalRow  []string
}

// RenderTable renders config as a bordered table. An empty config renders as
// the empty string.
func RenderTable(config TableConfig) string {
	if len(config.Headers) == 0 && len(config.Rows) == 0 {
		return ""
	}

	rows := config.Rows
	if config.ShowTotal && len(config.TotalRow) > 0 {
		rows = append(append([][]string{}, rows...), config.TotalRow)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(config.Headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	var b strings.Builder
	if config.Title != "" {
		b.WriteString(applyStyle(fileStyle, config.Title))
		b.WriteString("\n")
	}
	b.WriteString(t.Render())
	b.WriteString("\n")
	return b.String()
}

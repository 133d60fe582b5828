// Package logger provides namespaced debug loggers that are silent unless the
// DEBUG environment variable enables their namespace.
//
// DEBUG holds a comma separated list of patterns. A pattern may contain '*'
// wildcards, and a leading '-' excludes matching namespaces:
//
//	DEBUG=*                         all loggers
//	DEBUG=orchestrator:*            every logger in the orchestrator namespace
//	DEBUG=*,-watcher:watcher        everything except the watcher
//
// Output goes to stderr as "namespace message +elapsed", where elapsed is the
// time since the previous message of the same logger.
package logger

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// palette is indexed by a hash of the namespace so each logger keeps its colour.
var palette = []string{"6", "2", "3", "4", "5", "1", "14", "10", "11", "12", "13"}

var output io.Writer = os.Stderr

// Logger writes debug output for one namespace.
type Logger struct {
	namespace string
	enabled   bool
	style     lipgloss.Style

	mu   sync.Mutex
	last time.Time
}

// New creates a logger for namespace, resolving DEBUG at creation time.
func New(namespace string) *Logger {
	h := fnv.New32a()
	_, _ = h.Write([]byte(namespace))
	color := palette[int(h.Sum32()%uint32(len(palette)))]

	return &Logger{
		namespace: namespace,
		enabled:   isEnabled(namespace, os.Getenv("DEBUG")),
		style:     lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true),
	}
}

// Enabled reports whether DEBUG selects this logger. Callers use it to skip
// building expensive messages.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Namespace returns the logger's namespace.
func (l *Logger) Namespace() string {
	return l.namespace
}

// Printf formats like fmt.Printf.
func (l *Logger) Printf(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.write(fmt.Sprintf(format, args...))
}

// Print concatenates its arguments like fmt.Sprint.
func (l *Logger) Print(args ...any) {
	if !l.enabled {
		return
	}
	l.write(fmt.Sprint(args...))
}

func (l *Logger) write(msg string) {
	l.mu.Lock()
	now := time.Now()
	var diff time.Duration
	if !l.last.IsZero() {
		diff = now.Sub(l.last)
	}
	l.last = now
	l.mu.Unlock()

	fmt.Fprintf(output, "%s %s +%s\n", l.style.Render(l.namespace), msg, formatDiff(diff))
}

func formatDiff(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(time.Microsecond).String()
	default:
		return d.String()
	}
}

// isEnabled evaluates the DEBUG pattern list for namespace. Exclusions win
// over inclusions regardless of order.
func isEnabled(namespace, spec string) bool {
	if spec == "" {
		return false
	}

	included := false
	for _, raw := range strings.Split(spec, ",") {
		pattern := strings.TrimSpace(raw)
		if pattern == "" {
			continue
		}
		if strings.HasPrefix(pattern, "-") {
			if matchPattern(pattern[1:], namespace) {
				return false
			}
			continue
		}
		if matchPattern(pattern, namespace) {
			included = true
		}
	}
	return included
}

// matchPattern matches name against a pattern where '*' matches any run of
// characters, including ':'.
func matchPattern(pattern, name string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == name
	}

	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	rest := name[len(parts[0]):]

	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(rest, parts[i])
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(parts[i]):]
	}
	return strings.HasSuffix(rest, parts[len(parts)-1])
}

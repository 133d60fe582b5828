//go:build !integration

package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEnabled(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		spec      string
		want      bool
	}{
		{name: "empty spec", namespace: "cli:run", spec: "", want: false},
		{name: "star", namespace: "cli:run", spec: "*", want: true},
		{name: "exact", namespace: "cli:run", spec: "cli:run", want: true},
		{name: "exact mismatch", namespace: "cli:run", spec: "cli:list", want: false},
		{name: "namespace wildcard", namespace: "pipeline:sass", spec: "pipeline:*", want: true},
		{name: "other namespace", namespace: "watcher:watcher", spec: "pipeline:*", want: false},
		{name: "list", namespace: "watcher:watcher", spec: "pipeline:*, watcher:*", want: true},
		{name: "exclusion", namespace: "watcher:watcher", spec: "*,-watcher:watcher", want: false},
		{name: "exclusion first", namespace: "watcher:watcher", spec: "-watcher:*,*", want: false},
		{name: "exclusion other", namespace: "cli:run", spec: "*,-watcher:*", want: true},
		{name: "inner wildcard", namespace: "pipeline:minify:css", spec: "pipeline:*:css", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isEnabled(tt.namespace, tt.spec))
		})
	}
}

func TestLoggerWritesOnlyWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	prev := output
	output = &buf
	defer func() { output = prev }()

	t.Setenv("DEBUG", "tasks:*")

	on := New("tasks:build")
	off := New("cli:run")

	on.Printf("processing %d files", 4)
	off.Print("should not appear")

	got := buf.String()
	assert.Contains(t, got, "tasks:build")
	assert.Contains(t, got, "processing 4 files")
	assert.NotContains(t, got, "should not appear")
	assert.Equal(t, 1, strings.Count(got, "\n"), "exactly one line should be written")
}

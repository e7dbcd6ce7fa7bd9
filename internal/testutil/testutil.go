// Package testutil provides testing utilities for propbridge.
package testutil

import (
	"os"
	"strings"
	"sync"
	"testing"
)

// TraceRecorder collects trace lines written by a runner.
type TraceRecorder struct {
	mu    sync.Mutex
	lines []string
}

// NewTraceRecorder creates an empty recorder.
func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{}
}

// Write records one line. It has the signature of runner.TraceWriter.
func (r *TraceRecorder) Write(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

// Lines returns a copy of the recorded lines.
func (r *TraceRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Text returns the recorded lines joined by newlines.
func (r *TraceRecorder) Text() string {
	return strings.Join(r.Lines(), "\n")
}

// Count returns how many recorded lines contain substr.
func (r *TraceRecorder) Count(substr string) int {
	n := 0
	for _, line := range r.Lines() {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

// TempConfigFile creates a temporary propbridge config file for testing.
func TempConfigFile(t *testing.T, content string) string {
	t.Helper()

	tmpFile := t.TempDir() + "/config.yaml"
	if err := writeFile(tmpFile, content); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	return tmpFile
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

// MinimalConfig is a complete, valid propbridge config file.
const MinimalConfig = `
check:
  max_test: 50
  max_rejected: 5
  start_size: 1
  end_size: 100
  max_shrinks: 200
  workers: 1
runner:
  trace_runs: true
  throw_on_failure: true
  trace_diagnostics: false
  close_timeout: 2s
notation:
  format: csharp
  prefer_object_init: false
  include_param_names: true
  include_full_names: false
  skip_assignment: false
store:
  path: failures.db
`

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// PageLog is the summary of one page-load cycle.
type PageLog struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	Source     string    `json:"source"` // "cache" or "remote"
	State      string    `json:"state"`
	Products   int       `json:"products"`
	LazyImages int       `json:"lazy_images"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// PageLogger writes page-load summaries: a human-readable line to the
// console and, when a file is configured, one JSON object per line.
type PageLogger struct {
	mu      sync.Mutex
	console io.Writer
	file    *os.File
	now     func() time.Time
}

// NewPageLogger creates a logger printing to console. A nil console
// disables console output.
func NewPageLogger(console io.Writer) *PageLogger {
	return &PageLogger{console: console, now: time.Now}
}

// SetOutput appends JSON lines to path.
func (l *PageLogger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open page log %s: %w", path, err)
	}
	l.file = f
	return nil
}

// Log writes a page-load entry.
func (l *PageLogger) Log(entry *PageLog) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Timestamp = l.now()

	if l.console != nil {
		status := "✓"
		if entry.Error != "" {
			status = "✗"
		}
		fmt.Fprintf(l.console, "[page] %s %s %s %d products %dms\n",
			status, entry.RequestID, entry.Source, entry.Products, entry.DurationMs)
		if entry.Error != "" {
			fmt.Fprintf(l.console, "[page]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *PageLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	level    = new(slog.LevelVar)
)

func init() {
	opLogger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// Options configures process logging: the operational slog logger and the
// page-load summary logger.
type Options struct {
	Format  string    // "text" (default) or "json"
	Level   string    // debug, info, warn, error
	Output  io.Writer // operational records; os.Stderr when nil
	Service string    // attached to every operational record when set

	PageConsole io.Writer // one summary line per page load; nil disables
	PageFile    string    // JSON lines of page loads; "" disables
}

// Setup installs the operational logger described by opts and returns the
// page logger. The caller closes the page logger on shutdown.
func Setup(opts Options) (*PageLogger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	level.Set(lvl)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With("service", opts.Service)
	}

	pages := NewPageLogger(opts.PageConsole)
	if opts.PageFile != "" {
		if err := pages.SetOutput(opts.PageFile); err != nil {
			return nil, err
		}
	}

	opLogger.Store(logger)
	return pages, nil
}

// ParseLevel maps a level name to a slog level. An empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// Op returns the operational logger. Page-load summaries go through
// PageLogger instead.
func Op() *slog.Logger {
	return opLogger.Load()
}

// OpWithTrace returns the operational logger annotated with trace context.
func OpWithTrace(traceID, spanID string) *slog.Logger {
	l := opLogger.Load()
	if traceID == "" {
		return l
	}
	if spanID == "" {
		return l.With("trace_id", traceID)
	}
	return l.With("trace_id", traceID, "span_id", spanID)
}

// Package log provides structured logging (slog and zap) routed to the
// QEMU host's log output through qemu_plugin_outs.
package log

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// HostLogHandler implements slog.Handler by writing one text line per
// record to the host output.
type HostLogHandler struct {
	out    ports.Output
	opts   handlerConfig
	prefix string // pre-rendered WithAttrs output
	group  string // dotted group path, with trailing dot
	mu     *sync.Mutex
}

// HandlerOption configures the HostLogHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level     slog.Leveler
	addSource bool
	noTime    bool
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum level to report.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file:line).
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// WithoutTime omits the timestamp. QEMU's own log lines carry none.
func WithoutTime() HandlerOption {
	return func(c *handlerConfig) {
		c.noTime = true
	}
}

// NewHandler creates a handler writing to out.
func NewHandler(out ports.Output, opts ...HandlerOption) *HostLogHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &HostLogHandler{out: out, opts: cfg, mu: &sync.Mutex{}}
}

// New is shorthand for slog.New(NewHandler(out, opts...)).
func New(out ports.Output, opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(out, opts...))
}

// Enabled reports whether the handler handles records at the given level.
func (h *HostLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

// Handle renders the record and hands it to the host in a single call.
func (h *HostLogHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder
	if !h.opts.noTime && !record.Time.IsZero() {
		b.WriteString(record.Time.Format(time.RFC3339Nano))
		b.WriteByte(' ')
	}
	b.WriteString(record.Level.String())
	b.WriteByte(' ')
	b.WriteString(record.Message)

	if h.opts.addSource && record.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{record.PC})
		f, _ := frames.Next()
		b.WriteString(" source=")
		b.WriteString(f.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(f.Line))
	}

	b.WriteString(h.prefix)
	record.Attrs(func(attr slog.Attr) bool {
		appendAttr(&b, h.group, attr)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	h.out.Outs(b.String())
	return nil
}

// WithAttrs returns a handler that renders attrs on every record.
func (h *HostLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, attr := range attrs {
		appendAttr(&b, h.group, attr)
	}
	newHandler := *h
	newHandler.prefix = b.String()
	return &newHandler
}

// WithGroup returns a handler that qualifies later attribute keys with name.
func (h *HostLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newHandler := *h
	newHandler.group = h.group + name + "."
	return &newHandler
}

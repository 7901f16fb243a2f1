package log

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type captureOutput struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureOutput) Outs(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, s)
}

func (c *captureOutput) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{name: "string", attr: slog.String("k", "value"), want: " k=value"},
		{name: "quoted", attr: slog.String("k", "two words"), want: ` k="two words"`},
		{name: "empty", attr: slog.String("k", ""), want: ` k=""`},
		{name: "int64", attr: slog.Int64("k", -5), want: " k=-5"},
		{name: "uint64", attr: slog.Uint64("k", 0x10), want: " k=16"},
		{name: "bool", attr: slog.Bool("k", true), want: " k=true"},
		{name: "float", attr: slog.Float64("k", 1.5), want: " k=1.5"},
		{name: "duration", attr: slog.Duration("k", time.Second), want: " k=1s"},
		{name: "time", attr: slog.Time("k", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), want: " k=2024-01-01T00:00:00Z"},
		{name: "error", attr: slog.Any("k", errors.New("bad")), want: " k=bad"},
		{name: "bytes", attr: slog.Any("k", []byte{0x90, 0xc3}), want: " k=90c3"},
		{name: "json", attr: slog.Any("k", map[string]int{"a": 1}), want: ` k="{\"a\":1}"`},
		{name: "nil", attr: slog.Any("k", nil), want: " k=<nil>"},
		{name: "group", attr: slog.Group("g", slog.Int("a", 1), slog.Int("b", 2)), want: " g.a=1 g.b=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			appendAttr(&b, "", tt.attr)
			assert.Equal(t, tt.want, b.String())
		})
	}
}

func TestHostLogHandler(t *testing.T) {
	out := &captureOutput{}
	logger := slog.New(NewHandler(out, WithoutTime()))

	logger.Info("translated", "vaddr", "0x1000", "insns", 3)
	logger.Debug("hidden")

	lines := out.all()
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO translated vaddr=0x1000 insns=3\n", lines[0])
}

func TestHostLogHandler_AttrsAndGroups(t *testing.T) {
	out := &captureOutput{}
	logger := slog.New(NewHandler(out, WithoutTime(), WithLevel(slog.LevelDebug))).
		With("plugin", "tiny").
		WithGroup("cb").
		With("event", "tb_exec")

	logger.Debug("panic", "vcpu", 1)

	lines := out.all()
	require.Len(t, lines, 1)
	assert.Equal(t, "DEBUG panic plugin=tiny cb.event=tb_exec cb.vcpu=1\n", lines[0])
}

func TestHostLogHandler_Time(t *testing.T) {
	out := &captureOutput{}
	h := NewHandler(out)

	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, h.Handle(context.Background(), slog.NewRecord(ts, slog.LevelWarn, "late", 0)))

	assert.Equal(t, []string{"2024-05-06T07:08:09Z WARN late\n"}, out.all())
}

func TestHostLogHandler_Enabled(t *testing.T) {
	h := NewHandler(&captureOutput{}, WithLevel(slog.LevelWarn))

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestZapLogger(t *testing.T) {
	out := &captureOutput{}
	logger := NewZapLogger(out, zapcore.InfoLevel)

	logger.Info("mem", zap.Uint64("vaddr", 0x2000), zap.Bool("store", true))
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	lines := out.all()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "INFO")
	assert.Contains(t, lines[0], "mem")
	assert.Contains(t, lines[0], `"vaddr": 8192`)
	assert.Contains(t, lines[0], `"store": true`)
}

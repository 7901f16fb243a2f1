package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// OutputWriter adapts the host output to io.Writer. Each Write is one
// host call.
type OutputWriter struct {
	Out ports.Output
}

// Write implements io.Writer.
func (w OutputWriter) Write(p []byte) (int, error) {
	w.Out.Outs(string(p))
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer. The host output is unbuffered.
func (w OutputWriter) Sync() error {
	return nil
}

// NewZapCore returns a console-encoded core writing to the host output.
func NewZapCore(out ports.Output, level zapcore.LevelEnabler) zapcore.Core {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	cfg.CallerKey = ""
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(OutputWriter{Out: out}),
		level,
	)
}

// NewZapLogger returns a zap logger on the host output.
func NewZapLogger(out ports.Output, level zapcore.LevelEnabler, opts ...zap.Option) *zap.Logger {
	return zap.New(NewZapCore(out, level), opts...)
}

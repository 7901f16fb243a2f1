package log

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// appendAttr writes " key=value" for attr, flattening groups into dotted keys.
func appendAttr(b *strings.Builder, group string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindGroup {
		prefix := group
		if attr.Key != "" {
			prefix += attr.Key + "."
		}
		for _, a := range attr.Value.Group() {
			appendAttr(b, prefix, a)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(group)
	b.WriteString(attr.Key)
	b.WriteByte('=')
	b.WriteString(quoteIfNeeded(formatValue(attr.Value)))
}

// formatValue renders a resolved value as text.
func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		switch x := v.Any().(type) {
		case nil:
			return "<nil>"
		case error:
			return x.Error()
		case fmt.Stringer:
			return x.String()
		case []byte:
			return fmt.Sprintf("%x", x)
		default:
			if data, err := json.Marshal(x); err == nil {
				return string(data)
			}
			return fmt.Sprintf("%+v", x)
		}
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

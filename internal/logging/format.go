package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Millisecond resolution keeps backoff and inter-batch pauses readable.
const (
	consoleTimestampLayout = "2006-01-02 15:04:05.000"
	jsonTimestampLayout    = "2006-01-02T15:04:05.000Z07:00"
)

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.In(time.Local).Format(consoleTimestampLayout)
}

// kindError matches errors that carry a classification such as
// "rate_limited" or "not_found".
type kindError interface {
	error
	ErrorKind() string
}

// attrString renders a value without quoting, for line prefixes.
func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return renderValue(v)
}

// formatValue renders a value for key=value output, quoting when needed.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool, slog.KindInt64, slog.KindUint64, slog.KindFloat64, slog.KindDuration:
		return renderValue(v)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	}
	return quoteIfNeeded(renderValue(v))
}

func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return roundDuration(v.Duration()).String()
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindAny:
		return renderAny(v.Any())
	default:
		return v.String()
	}
}

func renderAny(value any) string {
	switch typed := value.(type) {
	case kindError:
		if kind := typed.ErrorKind(); kind != "" {
			return typed.Error() + " (" + kind + ")"
		}
		return typed.Error()
	case error:
		return typed.Error()
	case []string:
		return strings.Join(typed, ",")
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(value)
	}
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(time.Millisecond)
	default:
		return d
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return strconv.Quote(s)
		}
	}
	return s
}

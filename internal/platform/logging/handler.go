package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// tagColors maps a message tag prefix to its console color.
var tagColors = map[string]string{
	"[BOOT]":          "\x1b[96m",
	"[HTTP]":          "\x1b[95m",
	"[WS]":            "\x1b[92m",
	"[SCAN]":          "\x1b[94m",
	"[DETECT]":        "\x1b[34m",
	"[OVERLAY]":       "\x1b[35m",
	"[STORE]":         "\x1b[97m",
	"[OBSERVABILITY]": "\x1b[90m",
}

// TextHandler is a colored, single-line slog handler for terminals.
type TextHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *TextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ts := r.Time.Format("2006-01-02 15:04:05.000")

	var b strings.Builder
	if color, ok := tagColor(r.Message); ok {
		fmt.Fprintf(&b, "%s[%s]%s %s%s%s", colorTime, ts, colorReset, color, r.Message, colorReset)
	} else {
		label, color := levelLabel(r.Level)
		fmt.Fprintf(&b, "%s[%s]%s %s[%s]%s %s", colorTime, ts, colorReset, color, label, colorReset, r.Message)
	}

	if r.NumAttrs() > 0 {
		b.WriteString(" {")
		r.Attrs(func(a slog.Attr) bool {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
			return true
		})
		b.WriteString(" }")
	}
	b.WriteByte('\n')

	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *TextHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *TextHandler) WithGroup(string) slog.Handler { return h }

func tagColor(msg string) (string, bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", false
	}
	end := strings.IndexByte(msg, ']')
	if end < 0 {
		return "", false
	}
	color, ok := tagColors[msg[:end+1]]
	return color, ok
}

func levelLabel(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return "ERROR", colorError
	case level >= slog.LevelWarn:
		return "WARN", colorWarn
	case level >= slog.LevelInfo:
		return "INFO", colorInfo
	default:
		return "DEBUG", colorDebug
	}
}

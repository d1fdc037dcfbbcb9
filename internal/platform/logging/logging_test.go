package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level string) (*Logger, string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	console := &bytes.Buffer{}
	logger, err := New(Config{Level: level, Dir: dir, Filename: "test.log", Console: console})
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger, filepath.Join(dir, "test.log"), console
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestNew_Defaults(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Dir: dir, Console: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "server.log"))
	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		log     func(*Logger)
		want    string
		written bool
	}{
		{"info at info", "info", func(l *Logger) { l.Info("scan started") }, "scan started", true},
		{"warn at warn", "warn", func(l *Logger) { l.Warn("slow upstream") }, "slow upstream", true},
		{"error at error", "error", func(l *Logger) { l.Error("upstream down") }, "upstream down", true},
		{"debug at debug", "debug", func(l *Logger) { l.Debug("tick") }, "tick", true},
		{"debug filtered at info", "info", func(l *Logger) { l.Debug("hidden tick") }, "hidden tick", false},
		{"info filtered at error", "error", func(l *Logger) { l.Info("hidden info") }, "hidden info", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, path, _ := newTestLogger(t, tt.level)
			tt.log(logger)
			if tt.written {
				assert.Contains(t, readFile(t, path), tt.want)
			} else {
				assert.NotContains(t, readFile(t, path), tt.want)
			}
		})
	}
}

func TestLogger_FormatArgs(t *testing.T) {
	logger, path, console := newTestLogger(t, "debug")

	logger.Info("session %s reached %d%%", "abc", 50)
	logger.Info("structured", map[string]any{"session": "abc", "progress": 50})

	content := readFile(t, path)
	assert.Contains(t, content, "session abc reached 50%")
	assert.Contains(t, content, `"session":"abc"`)
	assert.Contains(t, console.String(), "progress=50")
}

func TestLogger_Tags(t *testing.T) {
	logger, path, console := newTestLogger(t, "debug")

	logger.InfoTag("SCAN", "upload accepted")
	logger.ErrorTag("DETECT", "[already tagged] message")

	content := readFile(t, path)
	assert.Contains(t, content, "[SCAN] upload accepted")
	assert.Contains(t, content, "[already tagged] message")
	assert.Contains(t, console.String(), tagColors["[SCAN]"])
}

func TestFormatLog(t *testing.T) {
	tests := []struct {
		tag, msg, want string
	}{
		{"HTTP", "server started", "[HTTP] server started"},
		{"", "plain", "plain"},
		{" WS ", " spaced ", "[WS] spaced"},
		{"SCAN", "[BOOT] kept", "[BOOT] kept"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLog(tt.tag, tt.msg))
	}
}

func TestLogger_RotateAndClean(t *testing.T) {
	logger, path, _ := newTestLogger(t, "info")
	dir := filepath.Dir(path)

	stale := filepath.Join(dir, "test-2000-01-01.log")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	logger.Info("before rotation")
	previous := logger.currentDate
	logger.checkAndRotate(time.Now().AddDate(0, 0, 1))

	assert.FileExists(t, filepath.Join(dir, "test-"+previous+".log"))
	assert.NoFileExists(t, stale)

	logger.Info("after rotation")
	content := readFile(t, path)
	assert.Contains(t, content, "after rotation")
	assert.NotContains(t, content, "before rotation")
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.InfoTag("SCAN", "nothing")
		_ = logger.Slog()
	})
}

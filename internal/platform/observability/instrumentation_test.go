package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBuffer(t *testing.T, enabled bool) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	shutdown, err := Setup(context.Background(), Config{Enabled: enabled}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	return buf
}

func TestStartSpan(t *testing.T) {
	buf := setupBuffer(t, true)
	assert.True(t, Enabled())

	_, end := StartSpan(context.Background(), "detection", "predict")
	end(errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "obs span start")
	assert.Contains(t, out, "operation=predict")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "boom")
}

func TestRecordMetric(t *testing.T) {
	buf := setupBuffer(t, true)
	RecordMetric(context.Background(), "scan.processing_ms", 1500, map[string]string{"fallback": "true"})
	assert.Contains(t, buf.String(), "metric=scan.processing_ms")
	assert.Contains(t, buf.String(), "fallback=true")
}

func TestDisabledIsSilent(t *testing.T) {
	buf := setupBuffer(t, false)
	buf.Reset()

	_, end := StartSpan(context.Background(), "http", "GET")
	end(nil)
	RecordMetric(context.Background(), "x", 1, nil)

	assert.False(t, Enabled())
	assert.Empty(t, buf.String())
}

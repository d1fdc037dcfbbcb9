package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "error with cause",
			err:      Wrap(KindDetection, "predict", "request failed", errors.New("connection refused")),
			contains: []string{"[detection:predict]", "request failed", "connection refused"},
		},
		{
			name:     "error without cause",
			err:      New(KindIntake, "accept", "unsupported content type"),
			contains: []string{"[intake:accept]", "unsupported content type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, substr := range tt.contains {
				assert.Contains(t, tt.err.Error(), substr)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(KindScan, "op", "msg", nil))
	})

	t.Run("unwraps to cause", func(t *testing.T) {
		cause := errors.New("original error")
		err := Wrap(KindConfig, "load", "wrapped", cause)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("keeps innermost kind", func(t *testing.T) {
		inner := New(KindStorage, "save", "disk full")
		outer := Wrap(KindScan, "persist", "snapshot", fmt.Errorf("ctx: %w", inner))
		assert.True(t, IsKind(outer, KindStorage))
		assert.False(t, IsKind(outer, KindScan))
	})
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{"direct match", New(KindConfig, "test", "message"), KindConfig, true},
		{"wrapped match", Wrap(KindRender, "test", "message", errors.New("cause")), KindRender, true},
		{"fmt wrapped match", fmt.Errorf("outer: %w", New(KindTransport, "t", "m")), KindTransport, true},
		{"mismatch", New(KindConfig, "test", "message"), KindScan, false},
		{"plain error", errors.New("plain error"), KindConfig, false},
		{"nil", nil, KindConfig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsKind(tt.err, tt.kind))
		})
	}
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(errors.New("x")))
	require.Equal(t, KindDetection, KindOf(fmt.Errorf("a: %w", New(KindDetection, "b", "c"))))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "", MessageOf(nil))
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
	assert.Equal(t, "API Error: 500 Internal Server Error",
		MessageOf(fmt.Errorf("scan: %w", Wrap(KindDetection, "predict", "API Error: 500 Internal Server Error", errors.New("status")))))
}

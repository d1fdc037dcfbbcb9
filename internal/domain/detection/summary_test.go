package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		kind  string
		hex   string
		label string
	}{
		{"broken_part", "#ef4444", "Поврежденная часть"},
		{"scratch", "#f97316", "Царапина"},
		{"cavity", "#f97316", "cavity"},
		{"filling", "#3b82f6", "Пломба"},
		{"dent", "#eab308", "dent"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			c := Lookup(tt.kind)
			assert.Equal(t, tt.hex, c.Hex())
			assert.Equal(t, tt.label, c.Label(LocaleRU))
		})
	}
	assert.Equal(t, "Anomaly detected", Lookup("dent").Description(LocaleEN))
	assert.Equal(t, "Обнаружена аномалия", Lookup("cavity").Description(LocaleRU))
}

func TestParseLocale(t *testing.T) {
	assert.Equal(t, LocaleEN, ParseLocale("en"))
	assert.Equal(t, LocaleRU, ParseLocale("ru"))
	assert.Equal(t, LocaleRU, ParseLocale("fr"))
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(ScanResult{Detections: []Detection{}}, LocaleRU)
	assert.False(t, s.HasDetections)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.AverageConfidence)
	assert.Equal(t, "Проблем не обнаружено", s.Headline)
	assert.Equal(t, "Изображение выглядит нормально", s.Subline)
	assert.Equal(t, "<1s", s.ProcessingTime)
	assert.Empty(t, s.Details)
}

func TestSummarize_KeepsInputOrder(t *testing.T) {
	r := ScanResult{
		ProcessingTime: 1234,
		Detections: []Detection{
			{Type: "scratch", Confidence: 40.04, Box: Box{10.4, 20.6, 50, 60}},
			{Type: "broken_part", Confidence: 95.0, Box: Box{1, 2, 3, 4}},
			{Type: "mystery", Confidence: 70.0, Box: Box{5, 6, 7, 8}},
		},
	}
	s := Summarize(r, LocaleEN)

	assert.True(t, s.HasDetections)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 68, s.AverageConfidence)
	assert.Equal(t, "Issues detected", s.Headline)
	assert.Equal(t, "Found 3 issue(s)", s.Subline)
	assert.Equal(t, "1234ms", s.ProcessingTime)

	require.Len(t, s.Details, 3)
	assert.Equal(t, 1, s.Details[0].Ordinal)
	assert.Equal(t, "Scratch", s.Details[0].Label)
	assert.Equal(t, "40.0%", s.Details[0].Confidence)
	assert.Equal(t, [2]int{10, 21}, s.Details[0].Position)
	assert.Equal(t, 2, s.Details[1].Ordinal)
	assert.Equal(t, "broken_part", s.Details[1].Type)
	assert.Equal(t, "mystery", s.Details[2].Label)
	assert.Equal(t, "#eab308", s.Details[2].Color)
}

func TestFormatConfidence(t *testing.T) {
	assert.Equal(t, "53.6%", FormatConfidence(53.61))
	assert.Equal(t, "100.0%", FormatConfidence(100))
}

package detection

import (
	"fmt"
	"math"
)

// Detail is the per-finding row of the results view.
type Detail struct {
	Ordinal     int     `json:"ordinal"`
	Type        string  `json:"type"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	Confidence  string  `json:"confidence"`
	Position    [2]int  `json:"position"`
	Area        float64 `json:"area"`
}

// Summary is the headline block of the results view.
type Summary struct {
	HasDetections     bool     `json:"hasDetections"`
	Count             int      `json:"count"`
	AverageConfidence int      `json:"averageConfidence"`
	Headline          string   `json:"headline"`
	Subline           string   `json:"subline"`
	ProcessingTime    string   `json:"processingTime"`
	Details           []Detail `json:"details"`
}

// Summarize derives the results view for r. Details follow input order.
func Summarize(r ScanResult, l Locale) Summary {
	s := Summary{
		Count:          len(r.Detections),
		HasDetections:  len(r.Detections) > 0,
		ProcessingTime: formatProcessingTime(r.ProcessingTime),
		Details:        make([]Detail, 0, len(r.Detections)),
	}

	var total float64
	for i, d := range r.Detections {
		total += d.Confidence
		c := Lookup(d.Type)
		s.Details = append(s.Details, Detail{
			Ordinal:     i + 1,
			Type:        d.Type,
			Label:       c.Label(l),
			Description: c.Description(l),
			Color:       c.Hex(),
			Confidence:  FormatConfidence(d.Confidence),
			Position:    [2]int{int(math.Round(d.Box.X1())), int(math.Round(d.Box.Y1()))},
			Area:        d.Area,
		})
	}
	if s.HasDetections {
		s.AverageConfidence = int(math.Round(total / float64(s.Count)))
	}

	switch l {
	case LocaleEN:
		if s.HasDetections {
			s.Headline = "Issues detected"
			s.Subline = fmt.Sprintf("Found %d issue(s)", s.Count)
		} else {
			s.Headline = "No issues detected"
			s.Subline = "The image looks normal"
		}
	default:
		if s.HasDetections {
			s.Headline = "Обнаружены проблемы"
			s.Subline = fmt.Sprintf("Найдено %d проблем(ы)", s.Count)
		} else {
			s.Headline = "Проблем не обнаружено"
			s.Subline = "Изображение выглядит нормально"
		}
	}
	return s
}

// FormatConfidence renders a confidence with one decimal, e.g. "53.6%".
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.1f%%", c)
}

func formatProcessingTime(ms int64) string {
	if ms <= 0 {
		return "<1s"
	}
	return fmt.Sprintf("%dms", ms)
}

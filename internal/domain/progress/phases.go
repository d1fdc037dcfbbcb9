package progress

import "time"

// Phase is one scripted step of the scan animation.
type Phase struct {
	Key      string
	Duration time.Duration
	labels   map[string]string
}

// Label returns the phase title for locale, falling back to Russian, then Key.
func (p Phase) Label(locale string) string {
	if l, ok := p.labels[locale]; ok {
		return l
	}
	if l, ok := p.labels["ru"]; ok {
		return l
	}
	return p.Key
}

// DefaultPhases is the fixed four step script, about five seconds in total.
func DefaultPhases() []Phase {
	return []Phase{
		{Key: "analyze", Duration: 1000 * time.Millisecond, labels: map[string]string{
			"ru": "Анализ изображения", "en": "Image analysis",
		}},
		{Key: "authenticity", Duration: 1500 * time.Millisecond, labels: map[string]string{
			"ru": "Проверка подлинности", "en": "Authenticity check",
		}},
		{Key: "verify", Duration: 2000 * time.Millisecond, labels: map[string]string{
			"ru": "ИИ верификация", "en": "AI verification",
		}},
		{Key: "report", Duration: 500 * time.Millisecond, labels: map[string]string{
			"ru": "Формирование отчета", "en": "Building report",
		}},
	}
}

// NewPhase builds a phase with explicit labels.
func NewPhase(key string, d time.Duration, labels map[string]string) Phase {
	return Phase{Key: key, Duration: d, labels: labels}
}

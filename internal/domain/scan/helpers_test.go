package scan

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carscan-server/internal/domain/detection"
	"carscan-server/internal/domain/intake"
	"carscan-server/internal/domain/overlay"
	"carscan-server/internal/domain/progress"
)

type fakeDetector struct {
	mu     sync.Mutex
	calls  int
	result detection.ScanResult
	err    error
}

func (f *fakeDetector) Detect(_ context.Context, _ intake.File, imageURL string) (detection.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	r := f.result
	r.ImageURL = imageURL
	return r, f.err
}

func (f *fakeDetector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Topic == topic {
			n++
		}
	}
	return n
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Topic
	}
	return out
}

func fastSimulator() *progress.Simulator {
	return progress.New(progress.Options{
		Phases: []progress.Phase{
			progress.NewPhase("analyze", 4*time.Millisecond, nil),
			progress.NewPhase("authenticity", 6*time.Millisecond, nil),
			progress.NewPhase("verify", 8*time.Millisecond, nil),
			progress.NewPhase("report", 2*time.Millisecond, nil),
		},
		Tick: time.Millisecond,
		Step: 5,
		Tail: 2 * time.Millisecond,
	})
}

func slowSimulator() *progress.Simulator {
	return progress.New(progress.Options{
		Phases: []progress.Phase{
			progress.NewPhase("analyze", 200*time.Millisecond, nil),
			progress.NewPhase("report", 200*time.Millisecond, nil),
		},
		Tick: 10 * time.Millisecond,
		Step: 2,
		Tail: 50 * time.Millisecond,
	})
}

func pngFile(t *testing.T, w, h int) intake.File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return intake.File{Name: "car.png", ContentType: "image/png", Data: buf.Bytes()}
}

func newTestSession(t *testing.T, det Detector, sim *progress.Simulator, rec *recorder) *Session {
	t.Helper()
	r, err := overlay.NewRenderer(detection.LocaleEN, overlay.DefaultStyle())
	require.NoError(t, err)
	cfg := Config{
		Detector:  det,
		Simulator: sim,
		Renderer:  r,
		Locale:    detection.LocaleEN,
	}
	if rec != nil {
		cfg.Observer = rec.observe
	}
	return NewSession("test-session", cfg)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

package overlay

import (
	"image"
	"sync"

	"carscan-server/internal/domain/detection"
	platformerrors "carscan-server/internal/platform/errors"
)

// ErrNotLoaded is returned by View accessors before the image has loaded.
var ErrNotLoaded = platformerrors.New(platformerrors.KindRender, "overlay.view", "image not loaded")

// View keeps an overlay in sync with its image and detection list. Nothing
// is drawn until Load; after that every change triggers a full redraw.
type View struct {
	renderer *Renderer

	mu         sync.RWMutex
	base       image.Image
	loadErr    error
	detections []detection.Detection
	frame      *image.RGBA
	marks      []Mark
	draws      int
}

func NewView(r *Renderer) *View {
	return &View{renderer: r}
}

// Load marks the image as loaded and draws the current detections.
func (v *View) Load(img image.Image) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.base = img
	v.loadErr = nil
	v.redraw()
}

// Fail records that the image could not be loaded.
func (v *View) Fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.base = nil
	v.loadErr = err
	v.frame, v.marks = nil, nil
}

// SetDetections replaces the list and redraws if the image is loaded.
func (v *View) SetDetections(detections []detection.Detection) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.detections = append([]detection.Detection(nil), detections...)
	v.redraw()
}

// Reset forgets the image, the detections and the last frame.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.base, v.loadErr = nil, nil
	v.detections = nil
	v.frame, v.marks = nil, nil
}

func (v *View) redraw() {
	if v.base == nil {
		return
	}
	b := v.base.Bounds()
	v.frame, v.marks = v.renderer.Draw(image.Pt(b.Dx(), b.Dy()), v.detections)
	v.draws++
}

func (v *View) Loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.base != nil
}

// Draws counts full redraws since creation.
func (v *View) Draws() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.draws
}

// Frame returns the latest overlay-only canvas.
func (v *View) Frame() (*image.RGBA, []Mark, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if err := v.notReady(); err != nil {
		return nil, nil, err
	}
	return v.frame, append([]Mark(nil), v.marks...), nil
}

// Composite renders the image with the overlay on top.
func (v *View) Composite() (*image.RGBA, []Mark, error) {
	v.mu.RLock()
	base, dets, err := v.base, v.detections, v.notReady()
	v.mu.RUnlock()
	if err != nil {
		return nil, nil, err
	}
	frame, marks := v.renderer.Composite(base, dets)
	return frame, marks, nil
}

func (v *View) notReady() error {
	if v.loadErr != nil {
		return v.loadErr
	}
	if v.base == nil {
		return ErrNotLoaded
	}
	return nil
}

// Package overlay draws detection boxes, labels and ordinal badges onto a
// transparent canvas the size of the source image.
package overlay

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"carscan-server/internal/domain/detection"
	platformerrors "carscan-server/internal/platform/errors"
)

// Style holds the drawing constants. Zero fields take DefaultStyle values.
type Style struct {
	LineWidth   float64
	FillAlpha   uint8
	LabelSize   float64
	LabelHeight int
	LabelPadX   int
	LabelBase   int
	BadgeSize   float64
	BadgeRadius float64
	BadgeInset  float64
	BadgeBase   float64
}

func DefaultStyle() Style {
	return Style{
		LineWidth:   3,
		FillAlpha:   0x20,
		LabelSize:   14,
		LabelHeight: 25,
		LabelPadX:   5,
		LabelBase:   8,
		BadgeSize:   12,
		BadgeRadius: 12,
		BadgeInset:  15,
		BadgeBase:   19,
	}
}

// Mark records where one detection was drawn.
type Mark struct {
	Ordinal  int             `json:"ordinal"`
	Type     string          `json:"type"`
	Color    string          `json:"color"`
	Label    string          `json:"label"`
	Box      image.Rectangle `json:"box"`
	LabelBox image.Rectangle `json:"labelBox"`
	Badge    image.Point     `json:"badge"`
}

// Renderer is safe for concurrent use; font faces are guarded by a mutex.
type Renderer struct {
	style  Style
	locale detection.Locale

	mu        sync.Mutex
	labelFace font.Face
	badgeFace font.Face
}

func NewRenderer(locale detection.Locale, style Style) (*Renderer, error) {
	def := DefaultStyle()
	if style.LineWidth <= 0 {
		style.LineWidth = def.LineWidth
	}
	if style.FillAlpha == 0 {
		style.FillAlpha = def.FillAlpha
	}
	if style.LabelSize <= 0 {
		style.LabelSize = def.LabelSize
	}
	if style.LabelHeight <= 0 {
		style.LabelHeight = def.LabelHeight
	}
	if style.LabelPadX <= 0 {
		style.LabelPadX = def.LabelPadX
	}
	if style.LabelBase <= 0 {
		style.LabelBase = def.LabelBase
	}
	if style.BadgeSize <= 0 {
		style.BadgeSize = def.BadgeSize
	}
	if style.BadgeRadius <= 0 {
		style.BadgeRadius = def.BadgeRadius
	}
	if style.BadgeInset <= 0 {
		style.BadgeInset = def.BadgeInset
	}
	if style.BadgeBase <= 0 {
		style.BadgeBase = def.BadgeBase
	}

	labelFace, err := loadFace(goregular.TTF, style.LabelSize)
	if err != nil {
		return nil, err
	}
	badgeFace, err := loadFace(gobold.TTF, style.BadgeSize)
	if err != nil {
		return nil, err
	}
	return &Renderer{style: style, locale: locale, labelFace: labelFace, badgeFace: badgeFace}, nil
}

func loadFace(ttf []byte, size float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindRender, "overlay.font", "failed to parse font", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindRender, "overlay.font", "failed to create font face", err)
	}
	return face, nil
}

// LabelText is the caption drawn above a box, e.g. "Scratch (87.3%)".
func (r *Renderer) LabelText(d detection.Detection) string {
	return detection.Lookup(d.Type).Label(r.locale) + " (" + detection.FormatConfidence(d.Confidence) + ")"
}

// Draw renders every detection, in input order, onto a fresh transparent
// canvas of the given size.
func (r *Renderer) Draw(size image.Point, detections []detection.Detection) (*image.RGBA, []Mark) {
	canvas := image.NewRGBA(image.Rectangle{Max: size})
	marks := r.drawOnto(canvas, detections)
	return canvas, marks
}

// Composite draws base and then the overlay on top.
func (r *Renderer) Composite(base image.Image, detections []detection.Detection) (*image.RGBA, []Mark) {
	b := base.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), base, b.Min, draw.Src)
	marks := r.drawOnto(canvas, detections)
	return canvas, marks
}

func (r *Renderer) drawOnto(dst *image.RGBA, detections []detection.Detection) []Mark {
	r.mu.Lock()
	defer r.mu.Unlock()

	marks := make([]Mark, 0, len(detections))
	for i, d := range detections {
		marks = append(marks, r.drawOne(dst, i+1, d))
	}
	return marks
}

func (r *Renderer) drawOne(dst *image.RGBA, ordinal int, d detection.Detection) Mark {
	s := r.style
	cat := detection.Lookup(d.Type)
	solid := cat.Color
	x1, y1, x2, y2 := d.Box.X1(), d.Box.Y1(), d.Box.X2(), d.Box.Y2()

	strokeRect(dst, x1, y1, x2, y2, s.LineWidth, solid)

	box := rectF(x1, y1, x2, y2)
	tint := color.NRGBA{R: solid.R, G: solid.G, B: solid.B, A: s.FillAlpha}
	draw.Draw(dst, box, &image.Uniform{C: tint}, image.Point{}, draw.Over)

	label := r.LabelText(d)
	textWidth := font.MeasureString(r.labelFace, label)
	labelBox := image.Rect(
		round(x1),
		round(y1)-s.LabelHeight,
		round(x1)+textWidth.Ceil()+2*s.LabelPadX,
		round(y1),
	)
	draw.Draw(dst, labelBox, &image.Uniform{C: solid}, image.Point{}, draw.Over)
	drawText(dst, r.labelFace, label, fixed.Point26_6{
		X: toFixed(x1 + float64(s.LabelPadX)),
		Y: toFixed(y1 - float64(s.LabelBase)),
	})

	cx, cy := x2-s.BadgeInset, y1+s.BadgeInset
	fillCircle(dst, cx, cy, s.BadgeRadius, solid)
	number := strconv.Itoa(ordinal)
	numWidth := font.MeasureString(r.badgeFace, number)
	drawText(dst, r.badgeFace, number, fixed.Point26_6{
		X: toFixed(cx) - numWidth/2,
		Y: toFixed(y1 + s.BadgeBase),
	})

	return Mark{
		Ordinal:  ordinal,
		Type:     d.Type,
		Color:    cat.Hex(),
		Label:    label,
		Box:      box,
		LabelBox: labelBox,
		Badge:    image.Pt(round(cx), round(cy)),
	}
}

func drawText(dst draw.Image, face font.Face, s string, dot fixed.Point26_6) {
	d := &font.Drawer{Dst: dst, Src: image.White, Face: face, Dot: dot}
	d.DrawString(s)
}

// strokeRect draws an outline of the given width centered on the box edges.
func strokeRect(dst draw.Image, x1, y1, x2, y2, width float64, c color.Color) {
	half := width / 2
	outer := rectF(x1-half, y1-half, x2+half, y2+half)
	src := &image.Uniform{C: c}

	if math.Abs(x2-x1) <= width || math.Abs(y2-y1) <= width {
		draw.Draw(dst, outer, src, image.Point{}, draw.Over)
		return
	}
	inner := rectF(x1+half, y1+half, x2-half, y2-half)
	edges := []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y),
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y),
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y),
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Over)
	}
}

func fillCircle(dst draw.Image, cx, cy, radius float64, c color.Color) {
	mask := &circle{cx: cx, cy: cy, r: radius}
	draw.DrawMask(dst, mask.Bounds(), &image.Uniform{C: c}, image.Point{}, mask, mask.Bounds().Min, draw.Over)
}

// circle is an alpha mask sampled at pixel centers.
type circle struct {
	cx, cy, r float64
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Floor(c.cx-c.r)),
		int(math.Floor(c.cy-c.r)),
		int(math.Ceil(c.cx+c.r)),
		int(math.Ceil(c.cy+c.r)),
	)
}

func (c *circle) At(x, y int) color.Color {
	dx := float64(x) + 0.5 - c.cx
	dy := float64(y) + 0.5 - c.cy
	if dx*dx+dy*dy <= c.r*c.r {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}

func rectF(x1, y1, x2, y2 float64) image.Rectangle {
	return image.Rect(round(x1), round(y1), round(x2), round(y2))
}

func round(v float64) int {
	return int(math.Round(v))
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

package image

import (
	"bytes"
	"fmt"
	stdimage "image"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	platformerrors "carscan-server/internal/platform/errors"
)

// Decoder turns uploaded bytes into pixels at their natural size.
type Decoder struct {
	limits Limits
}

func NewDecoder(limits Limits) *Decoder {
	if limits.MaxWidth <= 0 || limits.MaxHeight <= 0 || limits.MaxPixels <= 0 {
		limits = DefaultLimits()
	}
	return &Decoder{limits: limits}
}

// Probe reads only the header.
func (d *Decoder) Probe(data []byte) (Info, error) {
	cfg, format, err := stdimage.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, platformerrors.Wrap(platformerrors.KindRender, "image.probe", "unsupported or corrupted image", err)
	}
	info := Info{Format: format, Width: cfg.Width, Height: cfg.Height, Size: int64(len(data))}
	if err := d.check(info); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Decode returns the image with EXIF orientation applied, which is what a
// browser reports as the natural size.
func (d *Decoder) Decode(data []byte) (stdimage.Image, Info, error) {
	info, err := d.Probe(data)
	if err != nil {
		return nil, Info{}, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, Info{}, platformerrors.Wrap(platformerrors.KindRender, "image.decode", "failed to decode image", err)
	}
	b := img.Bounds()
	info.Width, info.Height = b.Dx(), b.Dy()
	return img, info, nil
}

func (d *Decoder) check(info Info) error {
	if info.Width <= 0 || info.Height <= 0 {
		return platformerrors.New(platformerrors.KindRender, "image.check", "image has no pixels")
	}
	if info.Width > d.limits.MaxWidth || info.Height > d.limits.MaxHeight {
		return platformerrors.New(platformerrors.KindRender, "image.check",
			fmt.Sprintf("dimensions exceed limit: %dx%d (max %dx%d)", info.Width, info.Height, d.limits.MaxWidth, d.limits.MaxHeight))
	}
	if int64(info.Width)*int64(info.Height) > d.limits.MaxPixels {
		return platformerrors.New(platformerrors.KindRender, "image.check",
			fmt.Sprintf("pixel count exceeds limit: %d", int64(info.Width)*int64(info.Height)))
	}
	return nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img stdimage.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return platformerrors.Wrap(platformerrors.KindRender, "image.encode", "failed to encode png", err)
	}
	return nil
}

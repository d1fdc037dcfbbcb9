package image

import (
	"bytes"
	stdimage "image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformerrors "carscan-server/internal/platform/errors"
)

func encodedPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecoder_Decode(t *testing.T) {
	d := NewDecoder(Limits{})
	img, info, err := d.Decode(encodedPNG(t, 40, 30))
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 40, info.Width)
	assert.Equal(t, 30, info.Height)
	assert.Equal(t, stdimage.Rect(0, 0, 40, 30), img.Bounds())
}

func TestDecoder_Limits(t *testing.T) {
	tests := []struct {
		name   string
		limits Limits
		w, h   int
	}{
		{"too wide", Limits{MaxWidth: 10, MaxHeight: 100, MaxPixels: 1000}, 11, 5},
		{"too many pixels", Limits{MaxWidth: 100, MaxHeight: 100, MaxPixels: 99}, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(tt.limits).Probe(encodedPNG(t, tt.w, tt.h))
			require.Error(t, err)
			assert.True(t, platformerrors.IsKind(err, platformerrors.KindRender))
		})
	}
}

func TestDecoder_Corrupted(t *testing.T) {
	_, _, err := NewDecoder(DefaultLimits()).Decode([]byte("not an image"))
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindRender))
}

func TestEncodePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, stdimage.NewRGBA(stdimage.Rect(0, 0, 3, 3))))
	cfg, format, err := stdimage.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 3, cfg.Width)
}

package image

// Info describes an encoded image without decoding its pixels.
type Info struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

// Limits guards rendering against oversized inputs.
type Limits struct {
	MaxWidth  int
	MaxHeight int
	MaxPixels int64
}

// DefaultLimits allows camera sized photos up to about 50 megapixels.
func DefaultLimits() Limits {
	return Limits{
		MaxWidth:  12000,
		MaxHeight: 12000,
		MaxPixels: 50_000_000,
	}
}

package detection

// Box is [x1, y1, x2, y2] in source image pixels, top-left then bottom-right.
type Box [4]float64

func (b Box) X1() float64     { return b[0] }
func (b Box) Y1() float64     { return b[1] }
func (b Box) X2() float64     { return b[2] }
func (b Box) Y2() float64     { return b[3] }
func (b Box) Width() float64  { return b[2] - b[0] }
func (b Box) Height() float64 { return b[3] - b[1] }

// Detection is one finding returned by the inference API.
type Detection struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Area       float64 `json:"area"`
}

// ScanResult is the outcome of one completed scan. Detections keep the
// order the API returned them in.
type ScanResult struct {
	Detections     []Detection `json:"detections"`
	ImageURL       string      `json:"imageUrl"`
	ProcessingTime int64       `json:"processingTime,omitempty"`
	// Fallback marks a result substituted after a failed API call.
	Fallback bool `json:"fallback,omitempty"`
}

// FallbackDetection is the canned record shown when the API call fails.
func FallbackDetection() Detection {
	return Detection{
		Type:       "broken_part",
		Confidence: 53.61,
		Box:        Box{207.32, 29.64, 294.54, 60.52},
		Area:       2692.99,
	}
}

package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carscan-server/internal/domain/detection"
	platformerrors "carscan-server/internal/platform/errors"
	"carscan-server/internal/util/work"
)

func TestThrottlePassesThrough(t *testing.T) {
	queue := work.NewWorkQueue(1, 1)
	defer queue.Stop()

	det := &fakeDetector{result: detection.ScanResult{Detections: []detection.Detection{{Type: "dent", Confidence: 70}}}}
	d := Throttle(det, queue)

	res, err := d.Detect(context.Background(), pngFile(t, 4, 4), "/img")
	require.NoError(t, err)
	assert.Equal(t, "/img", res.ImageURL)
	assert.Len(t, res.Detections, 1)
	assert.Equal(t, 1, det.Calls())
}

func TestThrottleNilQueue(t *testing.T) {
	det := &fakeDetector{}
	assert.Same(t, det, Throttle(det, nil))
}

func TestThrottleStoppedQueue(t *testing.T) {
	queue := work.NewWorkQueue(1, 0)
	queue.Stop()

	det := &fakeDetector{}
	_, err := Throttle(det, queue).Detect(context.Background(), pngFile(t, 4, 4), "/img")
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindDetection))
	assert.Equal(t, 0, det.Calls())
}

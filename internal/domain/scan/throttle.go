package scan

import (
	"context"

	"carscan-server/internal/domain/detection"
	"carscan-server/internal/domain/intake"
	platformerrors "carscan-server/internal/platform/errors"
	"carscan-server/internal/util/work"
)

type throttled struct {
	next  Detector
	queue *work.WorkQueue
}

// Throttle runs every Detect call of next on queue, bounding how many
// requests reach the detection endpoint at once.
func Throttle(next Detector, queue *work.WorkQueue) Detector {
	if queue == nil {
		return next
	}
	return &throttled{next: next, queue: queue}
}

func (t *throttled) Detect(ctx context.Context, file intake.File, imageURL string) (detection.ScanResult, error) {
	var (
		result    detection.ScanResult
		detectErr error
	)
	err := t.queue.Do(ctx, func(ctx context.Context) error {
		result, detectErr = t.next.Detect(ctx, file, imageURL)
		return nil
	})
	if err != nil {
		return detection.ScanResult{}, platformerrors.Wrap(platformerrors.KindDetection, "scan.throttle", "detection queue unavailable", err)
	}
	return result, detectErr
}

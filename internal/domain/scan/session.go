package scan

import (
	"context"
	stdimage "image"
	"sync"
	"time"

	"carscan-server/internal/domain/detection"
	"carscan-server/internal/domain/eventbus"
	imgcodec "carscan-server/internal/domain/image"
	"carscan-server/internal/domain/intake"
	"carscan-server/internal/domain/overlay"
	"carscan-server/internal/domain/progress"
	platformerrors "carscan-server/internal/platform/errors"
	"carscan-server/internal/platform/logging"
)

// Detector runs one detection call. *detection.Client implements it.
type Detector interface {
	Detect(ctx context.Context, file intake.File, imageURL string) (detection.ScanResult, error)
}

// Event is a lifecycle notification. Topic is one of the eventbus topics.
type Event struct {
	Topic    string
	Snapshot Snapshot
	Data     any
}

// Observer receives session events in emission order. It must not call
// back into the session.
type Observer func(Event)

// Config wires a session to its collaborators.
type Config struct {
	Detector  Detector
	Simulator *progress.Simulator
	Renderer  *overlay.Renderer
	Decoder   *imgcodec.Decoder
	Locale    detection.Locale
	// ImageURL maps a session id to the URL its upload is served at.
	ImageURL func(id string) string
	Observer Observer
	Logger   *logging.Logger
}

// Session is one user's scan state machine. It is safe for concurrent use.
type Session struct {
	id  string
	cfg Config

	// emitMu orders notifications; it is always taken before mu.
	emitMu sync.Mutex
	mu     sync.Mutex

	state    State
	gen      uint64
	file     *intake.File
	imageURL string
	result   *detection.ScanResult
	errMsg   string
	progress progress.Update
	run      *progress.Run
	attempt  *attempt
	view     *overlay.View
	loaded   chan struct{}
	target   *intake.Target

	createdAt time.Time
	updatedAt time.Time
}

// NewSession creates an idle session.
func NewSession(id string, cfg Config) *Session {
	if cfg.Simulator == nil {
		cfg.Simulator = progress.New(progress.Options{})
	}
	if cfg.Decoder == nil {
		cfg.Decoder = imgcodec.NewDecoder(imgcodec.DefaultLimits())
	}
	if cfg.ImageURL == nil {
		cfg.ImageURL = func(id string) string { return "/api/sessions/" + id + "/image" }
	}
	now := time.Now()
	return &Session{
		id:        id,
		cfg:       cfg,
		state:     StateIdle,
		view:      overlay.NewView(cfg.Renderer),
		target:    intake.NewTarget(),
		createdAt: now,
		updatedAt: now,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current serialisable view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Drop starts a scan with the first image among files, as a drop zone does.
func (s *Session) Drop(files []intake.File) (bool, error) {
	return s.deliver(files, s.target.Drop)
}

// Choose starts a scan with a file picker selection: only the first file
// is considered.
func (s *Session) Choose(files []intake.File) (bool, error) {
	return s.deliver(files, s.target.Choose)
}

func (s *Session) deliver(files []intake.File, via func([]intake.File) (intake.File, bool)) (bool, error) {
	file, ok := via(files)
	if !ok {
		if s.target.Disabled() {
			return false, ErrScanInProgress
		}
		s.cfg.Logger.DebugTag("SCAN", "session %s ignored %d file(s) without an image", s.id, len(files))
		return false, nil
	}
	return s.Upload(file)
}

// Upload starts a scan of file. It returns ErrScanInProgress while a scan
// is running and (false, nil) when the file is not an image.
func (s *Session) Upload(file intake.File) (bool, error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.state == StateScanning {
		s.mu.Unlock()
		return false, ErrScanInProgress
	}
	if !intake.Accept(file) {
		s.mu.Unlock()
		s.cfg.Logger.DebugTag("SCAN", "session %s ignored %q (%s)", s.id, file.Name, file.ContentType)
		return false, nil
	}

	s.gen++
	gen := s.gen
	s.file = &file
	s.imageURL = s.cfg.ImageURL(s.id)
	s.result = nil
	s.errMsg = ""
	s.state = StateScanning
	s.progress = progress.Update{}
	s.attempt = newAttempt(gen)
	s.view.Reset()
	s.loaded = make(chan struct{})
	s.target.SetDisabled(true)
	s.touch()

	go s.loadImage(gen, file.Data, s.loaded)
	run := s.cfg.Simulator.Start(context.Background(), func(u progress.Update) {
		s.onProgress(gen, u)
	})
	s.run = run
	snap := s.snapshotLocked()
	s.mu.Unlock()

	go s.await(gen, run)

	s.cfg.Logger.InfoTag("SCAN", "session %s scanning %q (%d bytes)", s.id, file.Name, file.Size())
	s.notify(eventbus.EventScanStarted, snap, eventbus.StartedData{
		FileName:    file.Name,
		ContentType: file.ContentType,
		Size:        file.Size(),
	})
	return true, nil
}

// Cancel stops a running scan, resets progress and keeps the upload.
// It reports whether a scan was running.
func (s *Session) Cancel() bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return false
	}
	run := s.stopLocked()
	s.state = StateIdle
	s.touch()
	snap, a := s.snapshotLocked(), s.attempt
	s.mu.Unlock()

	if run != nil {
		run.Cancel()
	}
	s.cfg.Logger.InfoTag("SCAN", "session %s canceled", s.id)
	s.notify(eventbus.EventScanCanceled, snap, nil)
	a.resolve(snap)
	return true
}

// Reset starts over: any running scan is stopped and the upload, result
// and error are cleared.
func (s *Session) Reset() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	run := s.stopLocked()
	s.state = StateIdle
	s.file = nil
	s.imageURL = ""
	s.result = nil
	s.errMsg = ""
	s.view.Reset()
	s.loaded = nil
	s.touch()
	snap, a := s.snapshotLocked(), s.attempt
	s.mu.Unlock()

	if run != nil {
		run.Cancel()
	}
	s.notify(eventbus.EventScanReset, snap, nil)
	a.resolve(snap)
}

// Wait blocks until the current attempt resolves and returns the snapshot
// it ended with. Without an attempt it returns the current snapshot.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	a := s.attempt
	if a == nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	select {
	case <-a.done:
		return a.snap, nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Image returns the uploaded file.
func (s *Session) Image() (intake.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return intake.File{}, ErrNoUpload
	}
	return *s.file, nil
}

// Overlay renders the last result once the uploaded image has decoded.
// With composite false the canvas is transparent outside the marks.
func (s *Session) Overlay(ctx context.Context, composite bool) (*stdimage.RGBA, []overlay.Mark, error) {
	s.mu.Lock()
	if s.result == nil {
		s.mu.Unlock()
		return nil, nil, ErrNoResult
	}
	loaded, view := s.loaded, s.view
	s.mu.Unlock()

	if loaded != nil {
		select {
		case <-loaded:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if composite {
		return view.Composite()
	}
	return view.Frame()
}

func (s *Session) loadImage(gen uint64, data []byte, loaded chan struct{}) {
	defer close(loaded)

	img, info, err := s.cfg.Decoder.Decode(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	if err != nil {
		s.cfg.Logger.WarnTag("OVERLAY", "session %s image decode failed: %v", s.id, err)
		s.view.Fail(err)
		return
	}
	s.cfg.Logger.DebugTag("OVERLAY", "session %s image loaded %s %dx%d", s.id, info.Format, info.Width, info.Height)
	s.view.Load(img)
}

func (s *Session) onProgress(gen uint64, u progress.Update) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.gen != gen || s.state != StateScanning {
		s.mu.Unlock()
		return
	}
	s.progress = u
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(eventbus.EventScanProgress, snap, eventbus.ProgressData{
		Phase:      u.Phase,
		PhaseKey:   u.PhaseKey,
		PhaseLabel: snap.PhaseLabel,
		Progress:   u.Progress,
		Percent:    u.Percent(),
	})
}

// await runs the detection call once the animation completes.
func (s *Session) await(gen uint64, run *progress.Run) {
	if err := run.Wait(context.Background()); err != nil {
		return
	}

	s.mu.Lock()
	if s.gen != gen || s.state != StateScanning {
		s.mu.Unlock()
		return
	}
	s.run = nil
	file, imageURL := s.file, s.imageURL
	s.mu.Unlock()

	if file == nil {
		s.finish(gen, nil, platformerrors.New(platformerrors.KindScan, "scan.complete", FileNotFoundMessage))
		return
	}

	result, err := s.cfg.Detector.Detect(context.Background(), *file, imageURL)
	if err != nil && !result.Fallback {
		s.finish(gen, nil, err)
		return
	}
	s.finish(gen, &result, err)
}

func (s *Session) finish(gen uint64, result *detection.ScanResult, err error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.gen != gen || s.state != StateScanning {
		s.mu.Unlock()
		s.cfg.Logger.DebugTag("SCAN", "session %s dropped stale result", s.id)
		return
	}
	s.result = result
	s.target.SetDisabled(false)
	if err != nil {
		s.state = StateError
		s.errMsg = platformerrors.MessageOf(err)
		if s.errMsg == "" {
			s.errMsg = detection.GenericErrorMessage
		}
	} else {
		s.state = StateResult
	}
	if result != nil {
		s.view.SetDetections(result.Detections)
	}
	s.touch()
	snap, a := s.snapshotLocked(), s.attempt
	s.mu.Unlock()

	// waiters are released after observers have run
	defer a.resolve(snap)
	if err != nil {
		s.cfg.Logger.WarnTag("SCAN", "session %s failed: %s", s.id, snap.Error)
		s.notify(eventbus.EventScanFailed, snap, eventbus.FailedData{
			Message:  snap.Error,
			Fallback: result != nil && result.Fallback,
		})
		return
	}
	s.cfg.Logger.InfoTag("SCAN", "session %s finished with %d detections", s.id, len(result.Detections))
	s.notify(eventbus.EventScanCompleted, snap, eventbus.CompletedData{
		Count:          len(result.Detections),
		ProcessingTime: result.ProcessingTime,
	})
}

// stopLocked invalidates the running attempt and returns its run.
func (s *Session) stopLocked() *progress.Run {
	s.gen++
	s.target.SetDisabled(false)
	run := s.run
	s.run = nil
	s.progress = progress.Update{}
	return run
}

func (s *Session) touch() {
	s.updatedAt = time.Now()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:             s.id,
		State:          s.state,
		Progress:       s.progress.Progress,
		Percent:        s.progress.Percent(),
		Phase:          s.progress.Phase,
		ImageURL:       s.imageURL,
		Error:          s.errMsg,
		IntakeDisabled: s.target.Disabled(),
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.updatedAt,
	}
	if s.attempt != nil {
		snap.Attempt = s.attempt.id
	}
	if s.state == StateScanning {
		phases := s.cfg.Simulator.Phases()
		if s.progress.Phase < len(phases) {
			p := phases[s.progress.Phase]
			snap.PhaseKey = p.Key
			snap.PhaseLabel = p.Label(string(s.cfg.Locale))
		}
	}
	if s.file != nil {
		snap.FileName = s.file.Name
		snap.ContentType = s.file.ContentType
		snap.Size = s.file.Size()
	}
	if s.result != nil {
		r := *s.result
		sum := detection.Summarize(r, s.cfg.Locale)
		snap.Result = &r
		snap.Summary = &sum
	}
	return snap
}

func (s *Session) notify(topic string, snap Snapshot, data any) {
	if s.cfg.Observer == nil {
		return
	}
	s.cfg.Observer(Event{Topic: topic, Snapshot: snap, Data: data})
}

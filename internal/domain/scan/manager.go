package scan

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"carscan-server/internal/domain/detection"
	"carscan-server/internal/domain/eventbus"
	imgcodec "carscan-server/internal/domain/image"
	"carscan-server/internal/domain/overlay"
	"carscan-server/internal/domain/progress"
	"carscan-server/internal/domain/sessionstore"
	platformerrors "carscan-server/internal/platform/errors"
	"carscan-server/internal/platform/logging"
)

// ManagerOptions configures a Manager. Store and Bus are optional.
type ManagerOptions struct {
	Detector  Detector
	Simulator *progress.Simulator
	Renderer  *overlay.Renderer
	Decoder   *imgcodec.Decoder
	Locale    detection.Locale
	Store     sessionstore.Store
	Bus       *eventbus.Bus
	Logger    *logging.Logger
}

// Manager owns the live sessions of one process.
type Manager struct {
	opts ManagerOptions

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Detector == nil {
		return nil, platformerrors.New(platformerrors.KindScan, "scan.manager", "detector is required")
	}
	if opts.Renderer == nil {
		r, err := overlay.NewRenderer(opts.Locale, overlay.DefaultStyle())
		if err != nil {
			return nil, err
		}
		opts.Renderer = r
	}
	if opts.Simulator == nil {
		opts.Simulator = progress.New(progress.Options{})
	}
	if opts.Decoder == nil {
		opts.Decoder = imgcodec.NewDecoder(imgcodec.DefaultLimits())
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
	}, nil
}

// Create registers a new idle session under a random id.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	s := NewSession(id, Config{
		Detector:  m.opts.Detector,
		Simulator: m.opts.Simulator,
		Renderer:  m.opts.Renderer,
		Decoder:   m.opts.Decoder,
		Locale:    m.opts.Locale,
		Observer:  m.observe,
		Logger:    m.opts.Logger,
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if err := m.persist(ctx, s.Snapshot()); err != nil {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, err
	}
	m.opts.Logger.InfoTag("SCAN", "session %s created", id)
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Lookup returns the live snapshot, or the last persisted one for a
// session that no longer lives in this process.
func (m *Manager) Lookup(ctx context.Context, id string) (Snapshot, error) {
	if s, err := m.Get(id); err == nil {
		return s.Snapshot(), nil
	}
	if m.opts.Store == nil {
		return Snapshot{}, ErrSessionNotFound
	}
	rec, err := m.opts.Store.Get(ctx, id)
	if err != nil {
		return Snapshot{}, ErrSessionNotFound
	}
	var snap Snapshot
	if err := sonic.Unmarshal(rec.Snapshot, &snap); err != nil {
		return Snapshot{}, platformerrors.Wrap(platformerrors.KindStorage, "scan.lookup", "corrupt session snapshot", err)
	}
	return snap, nil
}

// Remove stops and forgets a session.
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Reset()
	m.publish(Event{Topic: eventbus.EventSessionClosed, Snapshot: s.Snapshot()})
	if m.opts.Store != nil {
		if err := m.opts.Store.Remove(ctx, id); err != nil {
			return platformerrors.Wrap(platformerrors.KindStorage, "scan.remove", "failed to remove session record", err)
		}
	}
	return nil
}

// IDs lists live session ids in creation order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].createdAt.Before(list[j].createdAt)
	})
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.id
	}
	return ids
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions that have not changed for ttl. Scanning sessions
// are kept. It returns the number removed.
func (m *Manager) Sweep(ctx context.Context, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-ttl)

	var stale []string
	m.mu.RLock()
	for id, s := range m.sessions {
		snap := s.Snapshot()
		if snap.State != StateScanning && snap.UpdatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if err := m.Remove(ctx, id); err == nil {
			removed++
		}
	}
	if removed > 0 {
		m.opts.Logger.InfoTag("SCAN", "swept %d idle sessions", removed)
	}
	return removed
}

// Close resets every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Reset()
	}
}

// observe persists transitions and forwards every event to the bus.
func (m *Manager) observe(ev Event) {
	if ev.Topic != eventbus.EventScanProgress {
		if err := m.persist(context.Background(), ev.Snapshot); err != nil {
			m.opts.Logger.WarnTag("STORE", "session %s persist failed: %v", ev.Snapshot.ID, err)
		}
	}
	m.publish(ev)
}

func (m *Manager) publish(ev Event) {
	if m.opts.Bus == nil {
		return
	}
	data := ev.Data
	if data == nil {
		data = ev.Snapshot
	}
	m.opts.Bus.Publish(eventbus.ScanEvent{
		Topic:     ev.Topic,
		SessionID: ev.Snapshot.ID,
		Data:      data,
	})
}

func (m *Manager) persist(ctx context.Context, snap Snapshot) error {
	if m.opts.Store == nil {
		return nil
	}
	raw, err := sonic.Marshal(snap)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "scan.persist", "failed to encode snapshot", err)
	}
	rec := sessionstore.Record{
		ID:       snap.ID,
		State:    string(snap.State),
		Snapshot: raw,
	}
	if err := m.opts.Store.Save(ctx, rec); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "scan.persist", "failed to save session record", err)
	}
	return nil
}

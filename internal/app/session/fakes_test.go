package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Consult/internal/app/audio"
	"github.com/dkeye/Consult/internal/app/device"
	"github.com/dkeye/Consult/internal/app/room"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

type fakeCreds struct {
	mu    sync.Mutex
	errs  []error
	calls int
	// block holds Acquire until closed or ctx ends
	block chan struct{}
	// ttl of issued credentials, an hour when zero
	ttl time.Duration
}

func (f *fakeCreds) Acquire(ctx context.Context, scope domain.Scope) (*domain.Credential, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	block, ttl := f.block, f.ttl
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}
	if n <= len(f.errs) {
		return nil, f.errs[n-1]
	}
	if ttl == 0 {
		ttl = time.Hour
	}
	now := time.Now()
	return &domain.Credential{
		Value:     fmt.Sprintf("tok-%d", n),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Scope:     scope,
	}, nil
}

func (f *fakeCreds) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRooms struct {
	// errs are returned by the first calls, err by every later one
	errs     []error
	err      error
	resolves atomic.Int32
}

func (f *fakeRooms) Resolve(_ context.Context, sid string, _ *domain.Credential, intent room.Intent) (*domain.Room, error) {
	n := int(f.resolves.Add(1))
	if n <= len(f.errs) {
		return nil, f.errs[n-1]
	}
	if f.err != nil {
		return nil, f.err
	}
	id := intent.RoomID()
	if intent.Creates() {
		id = "abcd-efgh-ijkl"
	}
	return domain.NewRoom(id, domain.RoomJoined, time.Now()), nil
}

func (f *fakeRooms) Fallback(sid string, cause error) (*domain.Room, error) {
	if !core.Transient(cause) {
		return nil, cause
	}
	return domain.NewRoom(domain.RoomID("test-meeting-"+sid+"-1"), domain.RoomTest, time.Now()), nil
}

type fakeDevices struct {
	report device.Report
	err    error
	delay  time.Duration
}

func (f *fakeDevices) Check(ctx context.Context) (device.Report, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return device.Report{}, ctx.Err()
		}
	}
	return f.report, f.err
}

var granted = device.Report{HasCamera: true, HasMicrophone: true, PermissionGranted: true}

type fakeTrack struct {
	id     string
	kind   domain.TrackKind
	closes atomic.Int32
}

func (t *fakeTrack) ID() string             { return t.id }
func (t *fakeTrack) Kind() domain.TrackKind { return t.kind }
func (t *fakeTrack) Close() error           { t.closes.Add(1); return nil }

func (t *fakeTrack) ReadPCM(dst []float32) (int, error) {
	if t.closes.Load() > 0 {
		return 0, core.ErrSourceClosed
	}
	clear(dst)
	return len(dst), nil
}

type fakeCapture struct {
	mu     sync.Mutex
	opened []*fakeTrack
	fail   map[domain.TrackKind]error
}

func (f *fakeCapture) Open(_ context.Context, kind domain.TrackKind) (core.TrackHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[kind]; err != nil {
		return nil, err
	}
	t := &fakeTrack{id: "local-" + string(kind), kind: kind}
	f.opened = append(f.opened, t)
	return t, nil
}

func (f *fakeCapture) Opened() []*fakeTrack {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeTrack(nil), f.opened...)
}

type fakeParticipant struct {
	info   domain.Participant
	tracks map[domain.TrackKind]core.TrackHandle
}

func (p *fakeParticipant) MicEnabled() bool         { return p.info.MicEnabled }
func (p *fakeParticipant) WebcamEnabled() bool      { return p.info.WebcamEnabled }
func (p *fakeParticipant) Info() domain.Participant { return p.info }

func (p *fakeParticipant) Track(kind domain.TrackKind) (core.TrackHandle, bool) {
	h, ok := p.tracks[kind]
	return h, ok
}

type fakeLocal struct {
	fakeParticipant
	publishes   atomic.Int32
	unpublishes atomic.Int32
}

func (l *fakeLocal) Publish(context.Context, core.TrackHandle) error {
	l.publishes.Add(1)
	return nil
}

func (l *fakeLocal) Unpublish(context.Context, domain.TrackKind) error {
	l.unpublishes.Add(1)
	return nil
}

type fakeTransport struct {
	joinErr error
	// joinBlock holds Join until closed or ctx ends
	joinBlock chan struct{}
	remotes   []core.Participant
	events    chan core.Event
	leaves    atomic.Int32
	closeOnce sync.Once
	local     *fakeLocal

	mu     sync.Mutex
	tokens []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan core.Event, 16)}
}

func (t *fakeTransport) Join(ctx context.Context, req core.JoinRequest) (core.LocalParticipant, error) {
	t.mu.Lock()
	t.tokens = append(t.tokens, req.Token)
	t.mu.Unlock()
	if t.joinBlock != nil {
		select {
		case <-t.joinBlock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if t.joinErr != nil {
		return nil, t.joinErr
	}
	t.local = &fakeLocal{fakeParticipant: fakeParticipant{info: domain.Participant{
		ID:          domain.ParticipantID(req.Role),
		DisplayName: req.DisplayName,
		Role:        req.Role,
	}}}
	return t.local, nil
}

func (t *fakeTransport) Tokens() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.tokens...)
}

func (t *fakeTransport) Participants() []core.Participant { return t.remotes }

func (t *fakeTransport) Events() <-chan core.Event { return t.events }

func (t *fakeTransport) Leave(context.Context) error {
	t.leaves.Add(1)
	t.closeOnce.Do(func() { close(t.events) })
	return nil
}

type countingSurface struct{ f *countingSurfaces }

func (s countingSurface) Attach(core.TrackHandle, bool) error {
	s.f.attach.Add(1)
	return nil
}

func (s countingSurface) Detach() { s.f.detach.Add(1) }

type countingSurfaces struct{ attach, detach atomic.Int32 }

func (f *countingSurfaces) NewSurface(domain.ParticipantID, domain.TrackKind) core.Surface {
	return countingSurface{f: f}
}

// recordingMonitor keeps every meter it started.
type recordingMonitor struct {
	*audio.Monitor
	mu     sync.Mutex
	meters []*audio.Meter
}

func (m *recordingMonitor) Start(ctx context.Context, id domain.ParticipantID, source core.PCMSource) *audio.Meter {
	mt := m.Monitor.Start(ctx, id, source)
	m.mu.Lock()
	m.meters = append(m.meters, mt)
	m.mu.Unlock()
	return mt
}

func (m *recordingMonitor) Meters() []*audio.Meter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*audio.Meter(nil), m.meters...)
}

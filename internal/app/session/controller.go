// Package session drives one coach/client session from credential to teardown.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/app/audio"
	"github.com/dkeye/Consult/internal/app/device"
	"github.com/dkeye/Consult/internal/app/media"
	"github.com/dkeye/Consult/internal/app/room"
	"github.com/dkeye/Consult/internal/app/roster"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

var (
	ErrStopped     = errors.New("session controller stopped")
	ErrNoSessionID = errors.New("session id required")

	errEventsClosed = errors.New("event stream closed")
)

type CredentialSource interface {
	Acquire(ctx context.Context, scope domain.Scope) (*domain.Credential, error)
}

type RoomResolver interface {
	Resolve(ctx context.Context, sessionID string, cred *domain.Credential, intent room.Intent) (*domain.Room, error)
	Fallback(sessionID string, cause error) (*domain.Room, error)
}

type DeviceChecker interface {
	Check(ctx context.Context) (device.Report, error)
}

// LevelMonitor starts the analysis loop of the local microphone.
type LevelMonitor interface {
	Start(ctx context.Context, id domain.ParticipantID, source core.PCMSource) *audio.Meter
}

type Deps struct {
	Credentials CredentialSource
	Rooms       RoomResolver
	Devices     DeviceChecker
	Capture     core.MediaDevices
	Surfaces    core.SurfaceFactory
	// NewTransport is called once per join attempt.
	NewTransport func() core.Transport
	// Monitor is optional.
	Monitor LevelMonitor
}

type Options struct {
	MaxRetries         int
	Backoff            time.Duration
	AllowLocalFallback bool
	LeaveTimeout       time.Duration
}

const (
	noticeBuffer        = 256
	defaultLeaveTimeout = 5 * time.Second
	// expired credentials replaced within one attempt
	maxReacquires = 2
)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdToggleMic
	cmdToggleWebcam
	cmdLeave
)

type command struct {
	kind  commandKind
	req   Request
	reply chan error
}

// Controller owns the session state machine. All state changes happen on the
// goroutine running Run; the exported methods post commands to it.
type Controller struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
	now    func() time.Time

	cmds    chan command
	results chan phaseResult
	notices chan Notice
	levels  chan domain.AudioLevelSample
	done    chan struct{}

	roster *roster.Roster
	binder *media.Binder

	mu       sync.RWMutex
	state    core.SessionState
	room     *domain.Room
	err      error
	warnings []error

	// owned by the loop
	att *attempt
	gen uint64
}

func NewController(deps Deps, opts Options) *Controller {
	if opts.LeaveTimeout <= 0 {
		opts.LeaveTimeout = defaultLeaveTimeout
	}
	return &Controller{
		deps:    deps,
		opts:    opts,
		logger:  log.With().Str("module", "session").Logger(),
		now:     time.Now,
		cmds:    make(chan command),
		results: make(chan phaseResult),
		notices: make(chan Notice, noticeBuffer),
		levels:  make(chan domain.AudioLevelSample, 1),
		done:    make(chan struct{}),
		roster:  roster.New(),
		binder:  media.NewBinder(deps.Surfaces),
		state:   core.StateIdle,
	}
}

// Run processes commands, phase results and transport events in arrival
// order until ctx ends. A live attempt is cleaned up before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	c.logger.Info().Msg("controller started")

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			c.logger.Info().Msg("controller stopped")
			return ctx.Err()
		case cmd := <-c.cmds:
			cmd.reply <- c.handle(cmd)
		case res := <-c.results:
			c.onResult(res)
		case ev, ok := <-c.transportEvents():
			if !ok {
				c.fail(c.att, &core.TransportError{Op: "events", Fatal: true, Err: errEventsClosed})
				continue
			}
			c.onEvent(ev)
		case s, ok := <-c.meterSamples():
			if !ok {
				c.logger.Debug().Msg("audio meter ended")
				c.att.meter = nil
				continue
			}
			c.publishLevel(s)
		}
	}
}

func (c *Controller) Start(req Request) error { return c.do(command{kind: cmdStart, req: req}) }

func (c *Controller) ToggleMic() error { return c.do(command{kind: cmdToggleMic}) }

func (c *Controller) ToggleWebcam() error { return c.do(command{kind: cmdToggleWebcam}) }

// Leave ends the session or cancels a pending setup. Calling it again while
// leaving or after the session ended is a no-op.
func (c *Controller) Leave() error { return c.do(command{kind: cmdLeave}) }

func (c *Controller) do(cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrStopped
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrStopped
	}
}

func (c *Controller) handle(cmd command) error {
	state := c.State()
	switch cmd.kind {
	case cmdStart:
		if state != core.StateIdle && !state.Terminal() {
			return core.ErrInvalidState
		}
		return c.start(cmd.req)
	case cmdLeave:
		switch {
		case state == core.StateLeaving || state == core.StateEnded:
			return nil
		case state == core.StateInSession || state.Pending():
			c.leave(c.att)
			return nil
		}
		return core.ErrInvalidState
	case cmdToggleMic, cmdToggleWebcam:
		if state != core.StateInSession {
			c.logger.Warn().Str("state", state.String()).Msg("toggle rejected")
			return core.ErrInvalidState
		}
		kind := domain.TrackAudio
		if cmd.kind == cmdToggleWebcam {
			kind = domain.TrackVideo
		}
		return c.toggle(c.att, kind)
	}
	return core.ErrInvalidState
}

func (c *Controller) State() core.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err is the reason of the last failure.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	s := Snapshot{
		State:    c.state,
		Room:     c.room,
		Err:      c.err,
		Warnings: append([]error(nil), c.warnings...),
	}
	c.mu.RUnlock()
	s.Participants = c.roster.List()
	return s
}

func (c *Controller) Participants() []domain.Participant { return c.roster.List() }

func (c *Controller) Bindings() []media.Binding { return c.binder.Bindings() }

// Notices delivers state changes, warnings and roster updates. Notices are
// dropped when the consumer falls behind by more than the buffer.
func (c *Controller) Notices() <-chan Notice { return c.notices }

// Levels carries the latest local microphone level.
func (c *Controller) Levels() <-chan domain.AudioLevelSample { return c.levels }

func (c *Controller) notify(n Notice) {
	select {
	case c.notices <- n:
	default:
		c.logger.Warn().Err(core.ErrBackpressure).Msg("notice dropped")
	}
}

func (c *Controller) publishLevel(s domain.AudioLevelSample) {
	select {
	case c.levels <- s:
		return
	default:
	}
	select {
	case <-c.levels:
	default:
	}
	select {
	case c.levels <- s:
	default:
	}
}

func (c *Controller) setState(to core.SessionState, err error) {
	c.mu.Lock()
	from := c.state
	c.state = to
	if to == core.StateFailed {
		c.err = err
	}
	room := c.room
	c.mu.Unlock()

	ev := c.logger.Info()
	if err != nil {
		ev = c.logger.Error().Err(err)
	}
	ev.Str("from", from.String()).Str("state", to.String()).Msg("state changed")
	c.notify(StateChanged{From: from, To: to, Room: room, Err: err})
}

func (c *Controller) warn(err error) {
	c.mu.Lock()
	c.warnings = append(c.warnings, err)
	c.mu.Unlock()
	c.logger.Warn().Err(err).Msg("session degraded")
	c.notify(Warning{Err: err})
}

func (c *Controller) setRoom(r *domain.Room) {
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
}

func (c *Controller) notifyRoster() {
	c.notify(RosterChanged{Participants: c.roster.List()})
}

func (c *Controller) start(req Request) error {
	if err := req.validate(); err != nil {
		return err
	}

	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	c.att = &attempt{
		gen:    c.gen,
		req:    req,
		ctx:    ctx,
		cancel: cancel,
		tracks: make(map[domain.TrackKind]core.TrackHandle),
	}
	c.roster.Reset()

	c.mu.Lock()
	c.err = nil
	c.warnings = nil
	c.room = nil
	c.mu.Unlock()

	c.logger.Info().
		Uint64("attempt", c.gen).
		Str("sid", req.SessionID).
		Str("mode", string(req.Mode)).
		Str("intent", req.Intent.String()).
		Msg("session starting")

	c.setState(core.StateAcquiringCredential, nil)
	c.acquireCredential(c.att, 0)
	return nil
}

// leave tears the attempt down through Leaving into Ended.
func (c *Controller) leave(att *attempt) {
	c.setState(core.StateLeaving, nil)
	c.cleanup(att)
	c.setState(core.StateEnded, nil)
}

// fail runs the same cleanup as leave before settling in Failed.
func (c *Controller) fail(att *attempt, err error) {
	c.cleanup(att)
	c.setState(core.StateFailed, err)
}

func (c *Controller) shutdown() {
	if c.att == nil || c.att.cleaned {
		return
	}
	state := c.State()
	if state.Terminal() || state == core.StateIdle {
		return
	}
	c.leave(c.att)
}

// cleanup runs once per attempt on every exit path.
func (c *Controller) cleanup(att *attempt) {
	if att == nil || att.cleaned {
		return
	}
	att.cleaned = true
	att.cancel()

	if att.meter != nil {
		att.meter.Stop()
		att.meter = nil
	}
	c.binder.UnbindAll()
	for kind, h := range att.tracks {
		if err := h.Close(); err != nil {
			c.logger.Warn().Err(err).Str("kind", string(kind)).Msg("close local track")
		}
	}
	att.tracks = nil

	if att.transport != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.LeaveTimeout)
		if err := att.transport.Leave(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("transport leave")
		}
		cancel()
	}

	att.cred = nil
	att.room = nil
	att.local = nil
	c.setRoom(nil)
	c.roster.Reset()

	c.logger.Info().Uint64("attempt", att.gen).Msg("session cleaned up")
}

func (c *Controller) transportEvents() <-chan core.Event {
	if c.att == nil || c.att.transport == nil || c.att.cleaned {
		return nil
	}
	switch c.State() {
	case core.StateJoining, core.StateInSession:
		return c.att.transport.Events()
	}
	return nil
}

func (c *Controller) meterSamples() <-chan domain.AudioLevelSample {
	if c.att == nil || c.att.meter == nil {
		return nil
	}
	return c.att.meter.Samples()
}

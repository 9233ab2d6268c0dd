package session

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Consult/internal/app/device"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// attempt is the context of one Start. It is created by start and torn down
// by cleanup; nothing outlives it.
type attempt struct {
	gen    uint64
	req    Request
	ctx    context.Context
	cancel context.CancelFunc

	retries    int
	reacquires int

	cred      *domain.Credential
	room      *domain.Room
	report    device.Report
	transport core.Transport
	local     core.LocalParticipant
	localID   domain.ParticipantID
	tracks    map[domain.TrackKind]core.TrackHandle
	meter     meter

	cleaned bool
}

// meter is the part of *audio.Meter the controller needs.
type meter interface {
	Samples() <-chan domain.AudioLevelSample
	Stop()
}

type phaseResult struct {
	gen    uint64
	state  core.SessionState
	cred   *domain.Credential
	room   *domain.Room
	report device.Report
	local  core.LocalParticipant
	err    error
}

// runPhase executes fn off the loop after delay and posts its result.
// Results of a cancelled or replaced attempt are discarded by onResult.
func (c *Controller) runPhase(att *attempt, state core.SessionState, delay time.Duration, fn func(context.Context) phaseResult) {
	go func() {
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-att.ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		res := fn(att.ctx)
		res.gen, res.state = att.gen, state
		select {
		case c.results <- res:
		case <-c.done:
		}
	}()
}

func (c *Controller) backoff(att *attempt, err error) (time.Duration, bool) {
	if !core.Transient(err) || att.retries >= c.opts.MaxRetries {
		return 0, false
	}
	att.retries++
	delay := c.opts.Backoff << (att.retries - 1)
	c.logger.Warn().
		Err(err).
		Int("retry", att.retries).
		Int("max_retries", c.opts.MaxRetries).
		Dur("backoff", delay).
		Str("state", c.State().String()).
		Msg("transient failure, retrying")
	return delay, true
}

func (c *Controller) acquireCredential(att *attempt, delay time.Duration) {
	scope := att.req.scope()
	c.runPhase(att, core.StateAcquiringCredential, delay, func(ctx context.Context) phaseResult {
		cred, err := c.deps.Credentials.Acquire(ctx, scope)
		return phaseResult{cred: cred, err: err}
	})
}

func (c *Controller) resolveRoom(att *attempt, delay time.Duration) {
	sid, cred, intent := att.req.SessionID, att.cred, att.req.Intent
	c.runPhase(att, core.StateResolvingRoom, delay, func(ctx context.Context) phaseResult {
		r, err := c.deps.Rooms.Resolve(ctx, sid, cred, intent)
		return phaseResult{room: r, err: err}
	})
}

func (c *Controller) checkDevices(att *attempt) {
	c.runPhase(att, core.StateCheckingDevices, 0, func(ctx context.Context) phaseResult {
		rep, err := c.deps.Devices.Check(ctx)
		return phaseResult{report: rep, err: err}
	})
}

func (c *Controller) join(att *attempt) {
	att.transport = c.deps.NewTransport()
	req := core.JoinRequest{
		RoomID:        att.room.ID,
		Token:         att.cred.Value,
		DisplayName:   att.req.DisplayName,
		Role:          att.req.Role,
		MicEnabled:    att.req.Mic && att.available(domain.TrackAudio),
		WebcamEnabled: att.req.Webcam && att.available(domain.TrackVideo),
	}
	transport := att.transport
	c.runPhase(att, core.StateJoining, 0, func(ctx context.Context) phaseResult {
		local, err := transport.Join(ctx, req)
		return phaseResult{local: local, err: err}
	})
}

// available reports whether local capture of kind can work at all.
func (a *attempt) available(kind domain.TrackKind) bool {
	if !a.report.PermissionGranted {
		return false
	}
	if kind == domain.TrackAudio {
		return a.report.HasMicrophone
	}
	return a.report.HasCamera
}

func (c *Controller) onResult(res phaseResult) {
	att := c.att
	if att == nil || att.cleaned || res.gen != att.gen || c.State() != res.state {
		c.logger.Debug().Uint64("attempt", res.gen).Str("phase", res.state.String()).Msg("stale phase result discarded")
		return
	}

	switch res.state {
	case core.StateAcquiringCredential:
		if res.err != nil {
			if delay, ok := c.backoff(att, res.err); ok {
				c.acquireCredential(att, delay)
				return
			}
			c.fail(att, res.err)
			return
		}
		att.cred = res.cred
		att.retries = 0
		if !c.credentialUsable(att) {
			return
		}
		if att.room != nil {
			// room and devices were settled before the old credential ran out
			c.setState(core.StateJoining, nil)
			c.join(att)
			return
		}
		c.setState(core.StateResolvingRoom, nil)
		c.resolveRoom(att, 0)

	case core.StateResolvingRoom:
		r := res.room
		if res.err != nil {
			var re *core.RoomError
			if errors.As(res.err, &re) && re.Code == core.RoomCredentialExpired {
				c.reacquire(att, res.err)
				return
			}
			if delay, ok := c.backoff(att, res.err); ok {
				c.resolveRoom(att, delay)
				return
			}
			fb, ok := c.fallback(att, res.err)
			if !ok {
				c.fail(att, res.err)
				return
			}
			r = fb
		}
		att.room = r
		att.retries = 0
		c.setRoom(r)
		c.setState(core.StateCheckingDevices, nil)
		c.checkDevices(att)

	case core.StateCheckingDevices:
		att.report = res.report
		if res.err != nil {
			var de *core.DeviceError
			if !errors.As(res.err, &de) || de.Fatal() || !res.report.Any() {
				c.fail(att, res.err)
				return
			}
			c.warn(res.err)
		}
		if !res.report.Any() {
			c.fail(att, &core.DeviceError{Code: core.DeviceNoDevicesFound})
			return
		}
		if !c.credentialUsable(att) {
			return
		}
		c.setState(core.StateJoining, nil)
		c.join(att)

	case core.StateJoining:
		if res.err != nil {
			var te *core.TransportError
			if !errors.As(res.err, &te) {
				res.err = &core.TransportError{Op: "join", Fatal: true, Err: res.err}
			}
			c.fail(att, res.err)
			return
		}
		att.local = res.local
		c.enterSession(att)
	}
}

// fallback applies the local test room when creation failed transiently.
func (c *Controller) fallback(att *attempt, cause error) (*domain.Room, bool) {
	if att.req.Mode != ModeTest || !c.opts.AllowLocalFallback || !att.req.Intent.Creates() {
		return nil, false
	}
	r, err := c.deps.Rooms.Fallback(att.req.SessionID, cause)
	if err != nil {
		return nil, false
	}
	c.warn(&core.RoomError{Code: core.RoomUnavailable, Message: "using non-shared local room " + string(r.ID), Err: cause})
	return r, true
}

// credentialUsable reports whether the held credential may still be used for
// room operations. An expired one is dropped and re-acquired.
func (c *Controller) credentialUsable(att *attempt) bool {
	if !att.cred.Expired(c.now()) {
		return true
	}
	c.reacquire(att, &core.RoomError{Code: core.RoomCredentialExpired, Message: "credential expired before use"})
	return false
}

// reacquire sends the attempt back for a fresh credential, at most
// maxReacquires times; after that it fails with cause.
func (c *Controller) reacquire(att *attempt, cause error) {
	att.cred = nil
	if att.reacquires >= maxReacquires {
		c.fail(att, cause)
		return
	}
	att.reacquires++
	att.retries = 0
	c.logger.Warn().
		Err(cause).
		Int("reacquire", att.reacquires).
		Str("state", c.State().String()).
		Msg("credential expired, acquiring a new one")
	c.setState(core.StateAcquiringCredential, nil)
	c.acquireCredential(att, 0)
}

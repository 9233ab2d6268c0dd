package session

import (
	"errors"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

func (c *Controller) enterSession(att *attempt) {
	info := att.local.Info()
	info.IsLocal = true
	info.MicEnabled, info.WebcamEnabled = false, false
	att.localID = info.ID
	c.roster.OnJoin(info)

	for _, p := range att.transport.Participants() {
		c.addRemote(att, p)
	}

	if att.req.Mic && att.available(domain.TrackAudio) {
		_ = c.enableLocal(att, domain.TrackAudio)
	}
	if att.req.Webcam && att.available(domain.TrackVideo) {
		_ = c.enableLocal(att, domain.TrackVideo)
	}

	c.setState(core.StateInSession, nil)
	c.notifyRoster()
}

func (c *Controller) addRemote(att *attempt, p core.Participant) {
	info := p.Info()
	if info.ID == att.localID {
		return
	}
	info.IsLocal = false
	c.roster.OnJoin(info)
	for _, kind := range []domain.TrackKind{domain.TrackVideo, domain.TrackAudio} {
		if h, ok := p.Track(kind); ok {
			c.bindRemote(info.ID, h)
		}
	}
}

func (c *Controller) bindRemote(id domain.ParticipantID, h core.TrackHandle) {
	if err := c.binder.Bind(id, h.Kind(), h, false); err != nil {
		c.warn(err)
	}
}

func (c *Controller) onEvent(ev core.Event) {
	att := c.att
	switch e := ev.(type) {
	case core.ParticipantJoined:
		c.addRemote(att, e.Participant)
		c.notifyRoster()
	case core.ParticipantUpdated:
		info := e.Participant.Info()
		if info.ID == att.localID {
			return
		}
		info.IsLocal = false
		c.roster.OnJoin(info)
		c.notifyRoster()
	case core.ParticipantLeft:
		if e.ID == att.localID {
			return
		}
		c.binder.UnbindParticipant(e.ID)
		c.roster.OnLeave(e.ID)
		c.notifyRoster()
	case core.TrackAdded:
		if e.ParticipantID == att.localID {
			return
		}
		c.bindRemote(e.ParticipantID, e.Track)
	case core.TrackRemoved:
		if e.ParticipantID == att.localID {
			return
		}
		c.binder.Unbind(e.ParticipantID, e.Kind)
	case core.RoomClosed:
		c.logger.Info().Str("reason", e.Reason).Msg("room closed by engine")
		if c.State() == core.StateInSession {
			c.leave(att)
			return
		}
		c.fail(att, &core.TransportError{Op: "join", Fatal: true, Err: errRoomClosed(e.Reason)})
	case core.TransportFailed:
		switch {
		case e.Err == nil:
		case e.Err.Fatal:
			c.fail(att, e.Err)
		default:
			c.warn(e.Err)
		}
	}
}

var errNoCapture = errors.New("no capture devices configured")

type errRoomClosed string

func (e errRoomClosed) Error() string { return "room closed: " + string(e) }

func (c *Controller) toggle(att *attempt, kind domain.TrackKind) error {
	if _, on := att.tracks[kind]; on {
		c.disableLocal(att, kind)
		return nil
	}
	if !att.available(kind) {
		code := core.DeviceNoDevicesFound
		guidance := ""
		if !att.report.PermissionGranted && att.report.Any() {
			code, guidance = core.DevicePermissionDenied, att.report.Guidance
		}
		return &core.DeviceError{Code: code, Guidance: guidance}
	}
	return c.enableLocal(att, kind)
}

// enableLocal opens, publishes and binds one local track. The roster flag is
// raised only once the track is bound.
func (c *Controller) enableLocal(att *attempt, kind domain.TrackKind) error {
	if c.deps.Capture == nil {
		return c.localFailure(att, kind, errNoCapture)
	}
	h, err := c.deps.Capture.Open(att.ctx, kind)
	if err != nil {
		return c.localFailure(att, kind, err)
	}
	if err := att.local.Publish(att.ctx, h); err != nil {
		_ = h.Close()
		return c.localFailure(att, kind, err)
	}
	if err := c.binder.Bind(att.localID, kind, h, true); err != nil {
		_ = att.local.Unpublish(att.ctx, kind)
		_ = h.Close()
		c.warn(err)
		return err
	}
	att.tracks[kind] = h

	if kind == domain.TrackAudio && c.deps.Monitor != nil {
		if src, ok := h.(core.PCMSource); ok {
			att.meter = c.deps.Monitor.Start(att.ctx, att.localID, src)
		}
	}
	c.syncLocalFlags(att)
	return nil
}

func (c *Controller) localFailure(att *attempt, kind domain.TrackKind, err error) error {
	// peers may have been told the track is on at join
	_ = att.local.Unpublish(att.ctx, kind)
	be := &core.BindingError{ParticipantID: att.localID, Kind: kind, Err: err}
	c.warn(be)
	return be
}

func (c *Controller) disableLocal(att *attempt, kind domain.TrackKind) {
	if kind == domain.TrackAudio && att.meter != nil {
		att.meter.Stop()
		att.meter = nil
	}
	c.binder.Unbind(att.localID, kind)

	h := att.tracks[kind]
	delete(att.tracks, kind)
	if err := att.local.Unpublish(att.ctx, kind); err != nil {
		c.logger.Warn().Err(err).Str("kind", string(kind)).Msg("unpublish")
	}
	if err := h.Close(); err != nil {
		c.logger.Warn().Err(err).Str("kind", string(kind)).Msg("close local track")
	}
	c.syncLocalFlags(att)
}

func (c *Controller) syncLocalFlags(att *attempt) {
	_, mic := att.tracks[domain.TrackAudio]
	_, cam := att.tracks[domain.TrackVideo]
	c.roster.SetMedia(att.localID, mic, cam)
	c.logger.Debug().Bool("mic", mic).Bool("webcam", cam).Msg("local media changed")
	if c.State() == core.StateInSession {
		c.notifyRoster()
	}
}

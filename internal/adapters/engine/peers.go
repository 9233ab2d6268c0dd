package engine

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Consult/internal/adapters/rtc"
	"github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// peer returns the connection to id, creating it with the currently
// published local tracks when needed.
func (e *Engine) peer(id domain.ParticipantID) (*rtc.Peer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.leaving {
		return nil, ErrClosed
	}
	if p, ok := e.peers[id]; ok {
		return p, nil
	}

	p, err := rtc.NewPeer(e.rtcCfg, id)
	if err != nil {
		return nil, err
	}
	p.OnICECandidate(func(c webrtc.ICECandidateInit) {
		if err := e.send(signal.CandidateMessage{
			Type:          signal.TypeCandidate,
			To:            string(id),
			Candidate:     c.Candidate,
			SDPMid:        c.SDPMid,
			SDPMLineIndex: c.SDPMLineIndex,
		}); err != nil {
			e.logger.Debug().Err(err).Str("participant_id", string(id)).Msg("send candidate")
		}
	})
	p.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.onRemoteTrack(id, track)
	})
	p.Start()

	if e.local != nil {
		for kind, t := range e.local.localTracks() {
			if err := p.SetTrack(kind, t); err != nil {
				e.logger.Warn().Err(err).Str("kind", string(kind)).Msg("attach local track")
			}
		}
	}
	e.peers[id] = p
	return p, nil
}

func (e *Engine) setPeerTracks(kind domain.TrackKind, t webrtc.TrackLocal) {
	e.mu.Lock()
	peers := make([]*rtc.Peer, 0, len(e.peers))
	for _, p := range e.peers {
		peers = append(peers, p)
	}
	e.mu.Unlock()

	for _, p := range peers {
		if err := p.SetTrack(kind, t); err != nil {
			e.logger.Warn().Err(err).Str("kind", string(kind)).Msg("swap local track")
		}
	}
}

func (e *Engine) offer(id domain.ParticipantID) {
	p, err := e.peer(id)
	if err != nil {
		e.fail("offer", id, err)
		return
	}
	sdp, err := p.CreateOffer()
	if err != nil {
		e.fail("offer", id, err)
		return
	}
	if err := e.send(signal.SDPMessage{Type: signal.TypeOffer, To: string(id), SDP: sdp.SDP}); err != nil {
		e.fail("offer", id, err)
	}
}

func (e *Engine) onOffer(m signal.SDPMessage) {
	id := domain.ParticipantID(m.From)
	p, err := e.peer(id)
	if err != nil {
		e.fail("answer", id, err)
		return
	}
	answer, err := p.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: m.SDP})
	if err != nil {
		e.fail("answer", id, err)
		return
	}
	if err := e.send(signal.SDPMessage{Type: signal.TypeAnswer, To: m.From, SDP: answer.SDP}); err != nil {
		e.fail("answer", id, err)
	}
}

func (e *Engine) onAnswer(m signal.SDPMessage) {
	id := domain.ParticipantID(m.From)
	e.mu.Lock()
	p, ok := e.peers[id]
	e.mu.Unlock()
	if !ok {
		e.logger.Warn().Str("participant_id", m.From).Msg("answer without offer")
		return
	}
	if err := p.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: m.SDP}); err != nil {
		e.fail("answer", id, err)
	}
}

func (e *Engine) onCandidate(m signal.CandidateMessage) {
	p, err := e.peer(domain.ParticipantID(m.From))
	if err != nil {
		return
	}
	if err := p.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     m.Candidate,
		SDPMid:        m.SDPMid,
		SDPMLineIndex: m.SDPMLineIndex,
	}); err != nil {
		e.logger.Debug().Err(err).Str("participant_id", m.From).Msg("add candidate")
	}
}

// fail reports a media negotiation problem with one participant. The
// session continues without that participant's media.
func (e *Engine) fail(op string, id domain.ParticipantID, err error) {
	if e.isLeaving() {
		return
	}
	e.logger.Warn().Err(err).Str("op", op).Str("participant_id", string(id)).Msg("negotiation failed")
	e.emit(core.TransportFailed{Err: &core.TransportError{Op: op, Err: err}})
}

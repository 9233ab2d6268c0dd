// Package rtc wraps one pion peer connection towards a single remote participant.
package rtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/domain"
)

var ErrUnknownKind = errors.New("unknown track kind")

func DefaultWebRTCConfig(iceServers []string) webrtc.Configuration {
	if len(iceServers) == 0 {
		iceServers = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	}
}

// Peer owns one audio and one video sendrecv transceiver. Local tracks are
// swapped in with SetTrack, so publishing never renegotiates.
type Peer struct {
	pc     *webrtc.PeerConnection
	remote domain.ParticipantID
	logger zerolog.Logger

	audio *webrtc.RTPTransceiver
	video *webrtc.RTPTransceiver

	mu        sync.Mutex
	pending   []webrtc.ICECandidateInit
	hasRemote bool

	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	onClosed func()

	closeOnce sync.Once
}

func NewPeer(cfg webrtc.Configuration, remote domain.ParticipantID) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	p := &Peer{
		pc:     pc,
		remote: remote,
		logger: log.With().Str("module", "rtc").Str("participant_id", string(remote)).Logger(),
	}
	init := webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendrecv}
	if p.audio, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, init); err != nil {
		_ = pc.Close()
		return nil, err
	}
	if p.video, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, init); err != nil {
		_ = pc.Close()
		return nil, err
	}
	return p, nil
}

// Start installs the connection callbacks. Set the On* hooks before.
func (p *Peer) Start() {
	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		p.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			p.Close()
		}
	})

	p.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && p.onICE != nil {
			p.onICE(cand.ToJSON())
		}
	})

	p.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		p.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if p.onTrack != nil {
			p.onTrack(track, receiver)
		}
	})
}

func (p *Peer) transceiver(kind domain.TrackKind) (*webrtc.RTPTransceiver, error) {
	switch kind {
	case domain.TrackAudio:
		return p.audio, nil
	case domain.TrackVideo:
		return p.video, nil
	}
	return nil, ErrUnknownKind
}

// SetTrack sends track on the transceiver of kind. A nil track stops sending.
func (p *Peer) SetTrack(kind domain.TrackKind, track webrtc.TrackLocal) error {
	t, err := p.transceiver(kind)
	if err != nil {
		return err
	}
	return t.Sender().ReplaceTrack(track)
}

func (p *Peer) CreateOffer() (*webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return p.pc.LocalDescription(), nil
}

func (p *Peer) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := p.setRemote(offer); err != nil {
		return nil, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return p.pc.LocalDescription(), nil
}

func (p *Peer) ApplyAnswer(answer webrtc.SessionDescription) error {
	return p.setRemote(answer)
}

// setRemote applies desc and flushes candidates that arrived before it.
func (p *Peer) setRemote(desc webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.hasRemote = true
	p.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			p.logger.Warn().Err(err).Msg("buffered candidate rejected")
		}
	}
	return nil
}

func (p *Peer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	if !p.hasRemote {
		p.pending = append(p.pending, c)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.pc.AddICECandidate(c)
}

func (p *Peer) OnICECandidate(fn func(webrtc.ICECandidateInit)) { p.onICE = fn }

func (p *Peer) OnTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	p.onTrack = fn
}

// OnClosed runs once when the connection is closed or fails.
func (p *Peer) OnClosed(fn func()) { p.onClosed = fn }

func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		if err := p.pc.Close(); err != nil {
			p.logger.Error().Err(err).Msg("close error")
		} else {
			p.logger.Info().Msg("closed")
		}
		if p.onClosed != nil {
			p.onClosed()
		}
	})
}

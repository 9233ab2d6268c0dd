package engine

import (
	"context"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// sendable is implemented by capture handles that can be sent to peers.
type sendable interface {
	LocalTrack() webrtc.TrackLocal
}

type localParticipant struct {
	e *Engine

	mu     sync.Mutex
	info   domain.Participant
	tracks map[domain.TrackKind]core.TrackHandle
}

func newLocalParticipant(e *Engine, info domain.Participant) *localParticipant {
	info.IsLocal = true
	info.MicEnabled, info.WebcamEnabled = false, false
	return &localParticipant{e: e, info: info, tracks: make(map[domain.TrackKind]core.TrackHandle)}
}

func (l *localParticipant) MicEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracks[domain.TrackAudio] != nil
}

func (l *localParticipant) WebcamEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracks[domain.TrackVideo] != nil
}

func (l *localParticipant) Track(kind domain.TrackKind) (core.TrackHandle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tracks[kind]
	return t, ok
}

func (l *localParticipant) Info() domain.Participant {
	l.mu.Lock()
	defer l.mu.Unlock()
	info := l.info
	info.MicEnabled = l.tracks[domain.TrackAudio] != nil
	info.WebcamEnabled = l.tracks[domain.TrackVideo] != nil
	return info
}

// localTracks returns the sendable tracks currently published.
func (l *localParticipant) localTracks() map[domain.TrackKind]webrtc.TrackLocal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[domain.TrackKind]webrtc.TrackLocal, len(l.tracks))
	for kind, t := range l.tracks {
		if s, ok := t.(sendable); ok {
			out[kind] = s.LocalTrack()
		}
	}
	return out
}

func (l *localParticipant) Publish(ctx context.Context, track core.TrackHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	l.tracks[track.Kind()] = track
	l.mu.Unlock()

	var lt webrtc.TrackLocal
	if s, ok := track.(sendable); ok {
		lt = s.LocalTrack()
	}
	l.e.setPeerTracks(track.Kind(), lt)
	return l.announce()
}

func (l *localParticipant) Unpublish(ctx context.Context, kind domain.TrackKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	delete(l.tracks, kind)
	l.mu.Unlock()

	l.e.setPeerTracks(kind, nil)
	return l.announce()
}

func (l *localParticipant) announce() error {
	info := l.Info()
	if err := l.e.send(signal.MediaStateMessage{
		Type:   signal.TypeMediaState,
		Mic:    info.MicEnabled,
		Webcam: info.WebcamEnabled,
	}); err != nil {
		return &core.TransportError{Op: "media_state", Err: err}
	}
	return nil
}

type remoteParticipant struct {
	mu     sync.Mutex
	info   domain.Participant
	tracks map[domain.TrackKind]core.TrackHandle
}

func newRemoteParticipant(info domain.Participant) *remoteParticipant {
	info.IsLocal = false
	return &remoteParticipant{info: info, tracks: make(map[domain.TrackKind]core.TrackHandle)}
}

func (r *remoteParticipant) MicEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info.MicEnabled
}

func (r *remoteParticipant) WebcamEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info.WebcamEnabled
}

// Track returns the received track of kind while the participant has it enabled.
func (r *remoteParticipant) Track(kind domain.TrackKind) (core.TrackHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tracks[kind]
	if !ok || !enabled(r.info, kind) {
		return nil, false
	}
	return t, true
}

func (r *remoteParticipant) Info() domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// update replaces the media flags and returns the previous info.
func (r *remoteParticipant) update(info domain.Participant) domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.info
	r.info.MicEnabled = info.MicEnabled
	r.info.WebcamEnabled = info.WebcamEnabled
	if info.DisplayName != "" {
		r.info.DisplayName = info.DisplayName
	}
	return prev
}

func (r *remoteParticipant) setTrack(t core.TrackHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracks[t.Kind()] = t
	return enabled(r.info, t.Kind())
}

func (r *remoteParticipant) rawTrack(kind domain.TrackKind) (core.TrackHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tracks[kind]
	return t, ok
}

func enabled(p domain.Participant, kind domain.TrackKind) bool {
	if kind == domain.TrackAudio {
		return p.MicEnabled
	}
	return p.WebcamEnabled
}

// remoteTrack adapts a received pion track to core.TrackHandle.
type remoteTrack struct {
	t    *webrtc.TrackRemote
	kind domain.TrackKind
}

func newRemoteTrack(t *webrtc.TrackRemote) *remoteTrack {
	kind := domain.TrackVideo
	if t.Kind() == webrtc.RTPCodecTypeAudio {
		kind = domain.TrackAudio
	}
	return &remoteTrack{t: t, kind: kind}
}

func (r *remoteTrack) ID() string             { return r.t.ID() }
func (r *remoteTrack) Kind() domain.TrackKind { return r.kind }

// Close is a no-op; the peer connection owns the receiver.
func (r *remoteTrack) Close() error { return nil }

func (r *remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := r.t.ReadRTP()
	return pkt, err
}

func (r *remoteTrack) SetReadDeadline(t time.Time) error { return r.t.SetReadDeadline(t) }

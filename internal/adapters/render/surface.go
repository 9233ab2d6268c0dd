// Package render provides headless surfaces that consume remote media and
// keep per-track receive statistics.
package render

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

var ErrNilTrack = errors.New("nil track")

// detachWait bounds how long Detach waits for a reader that cannot be
// interrupted with a deadline.
const detachWait = time.Second

// RTPReader is implemented by remote track handles.
type RTPReader interface {
	ReadRTP() (*rtp.Packet, error)
}

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

type SurfaceState int

const (
	SurfaceDetached SurfaceState = iota
	SurfacePlaying
	SurfaceMuted
)

func (s SurfaceState) String() string {
	switch s {
	case SurfacePlaying:
		return "playing"
	case SurfaceMuted:
		return "muted"
	}
	return "detached"
}

type Stats struct {
	Packets       uint64
	Bytes         uint64
	LastSeq       uint16
	LastTimestamp uint32
}

// Surface drains one track. Muted surfaces still read so the sender is not
// stalled, but nothing is played.
type Surface struct {
	id     domain.ParticipantID
	kind   domain.TrackKind
	logger zerolog.Logger

	mu      sync.Mutex
	track   core.TrackHandle
	state   SurfaceState
	stats   Stats
	stop    chan struct{}
	stopped chan struct{}
}

func newSurface(id domain.ParticipantID, kind domain.TrackKind) *Surface {
	return &Surface{
		id:     id,
		kind:   kind,
		logger: log.With().Str("module", "render").Str("participant_id", string(id)).Str("kind", string(kind)).Logger(),
	}
}

func (s *Surface) Attach(track core.TrackHandle, muted bool) error {
	if track == nil {
		return ErrNilTrack
	}
	s.Detach()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = track
	s.stats = Stats{}
	s.state = SurfacePlaying
	if muted {
		s.state = SurfaceMuted
	}
	if r, ok := track.(RTPReader); ok {
		if d, ok := track.(readDeadliner); ok {
			_ = d.SetReadDeadline(time.Time{})
		}
		s.stop = make(chan struct{})
		s.stopped = make(chan struct{})
		go s.loop(r, s.stop, s.stopped)
	}
	s.logger.Info().Str("track_id", track.ID()).Str("state", s.state.String()).Msg("attached")
	return nil
}

// loop reads RTP packets from the track until it ends or the surface detaches.
func (s *Surface) loop(r RTPReader, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	for {
		select {
		case <-stop:
			return
		default:
		}
		pkt, err := r.ReadRTP()
		if err != nil {
			select {
			case <-stop:
			default:
				s.logger.Warn().Err(err).Msg("read RTP error, stopping")
			}
			return
		}
		s.record(pkt)
	}
}

func (s *Surface) record(pkt *rtp.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Packets++
	s.stats.Bytes += uint64(len(pkt.Payload))
	s.stats.LastSeq = pkt.SequenceNumber
	s.stats.LastTimestamp = pkt.Timestamp
}

func (s *Surface) Detach() {
	s.mu.Lock()
	track, stop, stopped := s.track, s.stop, s.stopped
	s.track, s.stop, s.stopped = nil, nil, nil
	s.state = SurfaceDetached
	s.mu.Unlock()

	if track == nil {
		return
	}
	if stop != nil {
		close(stop)
		if d, ok := track.(readDeadliner); ok {
			_ = d.SetReadDeadline(time.Now())
		}
		select {
		case <-stopped:
		case <-time.After(detachWait):
			s.logger.Warn().Msg("reader did not stop in time")
		}
	}
	s.logger.Info().Str("track_id", track.ID()).Msg("detached")
}

func (s *Surface) State() SurfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Surface) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

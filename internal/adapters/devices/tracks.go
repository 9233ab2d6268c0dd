package devices

import (
	"math"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

const sampleRate = 48000

// Opus frame that decodes to 20ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// sampleTrack feeds a pion sample track from a ticker until closed.
type sampleTrack struct {
	id    string
	kind  domain.TrackKind
	local *webrtc.TrackLocalStaticSample

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSampleTrack(id string, kind domain.TrackKind, mime string) (*sampleTrack, error) {
	local, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, string(kind), id)
	if err != nil {
		return nil, err
	}
	return &sampleTrack{id: id, kind: kind, local: local, done: make(chan struct{})}, nil
}

func (t *sampleTrack) pump(every time.Duration, payload func() []byte) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				if err := t.local.WriteSample(media.Sample{Data: payload(), Duration: every}); err != nil {
					log.Debug().Err(err).Str("module", "devices").Str("track_id", t.id).Msg("write sample")
				}
			}
		}
	}()
}

func (t *sampleTrack) ID() string             { return t.id }
func (t *sampleTrack) Kind() domain.TrackKind { return t.kind }

// LocalTrack is what the engine sends to peers.
func (t *sampleTrack) LocalTrack() webrtc.TrackLocal { return t.local }

func (t *sampleTrack) closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *sampleTrack) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
		log.Info().Str("module", "devices").Str("track_id", t.id).Msg("track closed")
	})
	return nil
}

// toneTrack is a microphone producing a sine tone, or silence at 0 Hz.
type toneTrack struct {
	*sampleTrack
	hz float64

	mu    sync.Mutex
	phase float64
}

func newToneTrack(id string, hz float64) (*toneTrack, error) {
	st, err := newSampleTrack(id, domain.TrackAudio, webrtc.MimeTypeOpus)
	if err != nil {
		return nil, err
	}
	st.pump(20*time.Millisecond, func() []byte { return opusSilence })
	return &toneTrack{sampleTrack: st, hz: hz}, nil
}

func (t *toneTrack) ReadPCM(dst []float32) (int, error) {
	if t.closed() {
		return 0, core.ErrSourceClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	step := 2 * math.Pi * t.hz / sampleRate
	for i := range dst {
		dst[i] = float32(0.5 * math.Sin(t.phase))
		t.phase += step
	}
	t.phase = math.Mod(t.phase, 2*math.Pi)
	return len(dst), nil
}

// patternTrack is a camera sending a fixed frame at 10 fps.
type patternTrack struct {
	*sampleTrack
}

func newPatternTrack(id string) (*patternTrack, error) {
	st, err := newSampleTrack(id, domain.TrackVideo, webrtc.MimeTypeVP8)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 256)
	st.pump(100*time.Millisecond, func() []byte { return frame })
	return &patternTrack{sampleTrack: st}, nil
}

package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

const DefaultInterval = 16 * time.Millisecond

type Monitor struct {
	interval time.Duration
	now      func() time.Time
}

type MonitorOption func(*Monitor)

func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

func NewMonitor(interval time.Duration, opts ...MonitorOption) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{interval: interval, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Meter is one running analysis loop. Samples is closed when the loop ends.
type Meter struct {
	id       domain.ParticipantID
	samples  chan domain.AudioLevelSample
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger
}

// Start samples source every interval until Stop, ctx end, or the source
// reports core.ErrSourceClosed. Samples the consumer has not taken yet are
// replaced by newer ones.
func (m *Monitor) Start(ctx context.Context, id domain.ParticipantID, source core.PCMSource) *Meter {
	ctx, cancel := context.WithCancel(ctx)
	mt := &Meter{
		id:      id,
		samples: make(chan domain.AudioLevelSample, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  log.With().Str("module", "audio").Str("participant_id", string(id)).Logger(),
	}
	go mt.run(ctx, m.interval, m.now, source)
	return mt
}

func (mt *Meter) run(ctx context.Context, interval time.Duration, now func() time.Time, source core.PCMSource) {
	defer close(mt.done)
	defer close(mt.samples)

	analyzer := NewAnalyzer()
	buf := make([]float32, FrameSize)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	mt.logger.Debug().Dur("interval", interval).Msg("meter started")
	for {
		select {
		case <-ctx.Done():
			mt.logger.Debug().Msg("meter stopped")
			return
		case <-ticker.C:
		}

		n, err := source.ReadPCM(buf)
		if err != nil {
			if errors.Is(err, core.ErrSourceClosed) {
				mt.logger.Debug().Msg("source closed, meter stopped")
			} else {
				mt.logger.Warn().Err(err).Msg("pcm read failed, meter stopped")
			}
			return
		}

		sample := domain.AudioLevelSample{
			ParticipantID: mt.id,
			Level:         analyzer.Level(buf[:n]),
			Timestamp:     now(),
		}
		mt.publish(sample)
	}
}

func (mt *Meter) publish(s domain.AudioLevelSample) {
	select {
	case mt.samples <- s:
		return
	default:
	}
	// drop the stale sample, keep the newest
	select {
	case <-mt.samples:
	default:
	}
	select {
	case mt.samples <- s:
	default:
	}
}

func (mt *Meter) Samples() <-chan domain.AudioLevelSample { return mt.samples }

func (mt *Meter) Done() <-chan struct{} { return mt.done }

// Stop ends the loop and waits for it. Safe to call more than once.
func (mt *Meter) Stop() {
	mt.stopOnce.Do(mt.cancel)
	<-mt.done
}

// Package devices provides synthetic capture devices for headless clients.
package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

var ErrNoDevice = errors.New("no such capture device")

type Config struct {
	Camera     bool
	Microphone bool
	Permission bool
	// ToneHz is the microphone test tone; zero captures silence.
	ToneHz float64
}

// Prober reports the configured devices.
type Prober struct {
	cfg Config
}

func NewProber(cfg Config) *Prober { return &Prober{cfg: cfg} }

func (p *Prober) Enumerate(ctx context.Context) ([]core.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []core.DeviceInfo
	if p.cfg.Microphone {
		out = append(out, core.DeviceInfo{ID: "synthetic-mic", Label: "Synthetic microphone", Kind: domain.TrackAudio})
	}
	if p.cfg.Camera {
		out = append(out, core.DeviceInfo{ID: "synthetic-cam", Label: "Synthetic camera", Kind: domain.TrackVideo})
	}
	return out, nil
}

type lease struct{}

func (lease) Release() {}

func (p *Prober) Request(ctx context.Context, kinds []domain.TrackKind) (core.DeviceLease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.cfg.Permission {
		return nil, core.ErrPermissionDenied
	}
	return lease{}, nil
}

// Capture opens synthetic tracks for the local participant.
type Capture struct {
	cfg Config
}

func NewCapture(cfg Config) *Capture { return &Capture{cfg: cfg} }

func (c *Capture) Open(ctx context.Context, kind domain.TrackKind) (core.TrackHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.cfg.Permission {
		return nil, core.ErrPermissionDenied
	}
	id := string(kind) + "-" + uuid.NewString()[:8]
	switch {
	case kind == domain.TrackAudio && c.cfg.Microphone:
		t, err := newToneTrack(id, c.cfg.ToneHz)
		if err != nil {
			return nil, err
		}
		log.Info().Str("module", "devices").Str("track_id", id).Float64("tone_hz", c.cfg.ToneHz).Msg("microphone opened")
		return t, nil
	case kind == domain.TrackVideo && c.cfg.Camera:
		t, err := newPatternTrack(id)
		if err != nil {
			return nil, err
		}
		log.Info().Str("module", "devices").Str("track_id", id).Msg("camera opened")
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoDevice, kind)
}

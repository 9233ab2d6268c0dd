// Package device checks camera and microphone availability before joining.
package device

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

const PermissionGuidance = "Camera and microphone access was blocked. " +
	"Allow access in your system or browser settings and rejoin to send audio and video."

type Report struct {
	HasCamera         bool
	HasMicrophone     bool
	PermissionGranted bool
	Guidance          string
}

// Any reports whether at least one input kind exists.
func (r Report) Any() bool { return r.HasCamera || r.HasMicrophone }

type Guard struct {
	prober core.DeviceProber
}

func NewGuard(prober core.DeviceProber) *Guard {
	return &Guard{prober: prober}
}

// Check enumerates input devices and asks for access to the kinds present.
// A permission refusal returns the populated report together with a
// non-fatal *core.DeviceError. The lease is released before Check returns.
func (g *Guard) Check(ctx context.Context) (Report, error) {
	devices, err := g.prober.Enumerate(ctx)
	if err != nil {
		return Report{}, &core.DeviceError{Code: core.DeviceProbeFailed, Err: err}
	}

	var rep Report
	for _, d := range devices {
		switch d.Kind {
		case domain.TrackVideo:
			rep.HasCamera = true
		case domain.TrackAudio:
			rep.HasMicrophone = true
		}
	}
	if !rep.Any() {
		return rep, &core.DeviceError{Code: core.DeviceNoDevicesFound}
	}

	kinds := make([]domain.TrackKind, 0, 2)
	if rep.HasMicrophone {
		kinds = append(kinds, domain.TrackAudio)
	}
	if rep.HasCamera {
		kinds = append(kinds, domain.TrackVideo)
	}

	lease, err := g.prober.Request(ctx, kinds)
	if err != nil {
		if errors.Is(err, core.ErrPermissionDenied) {
			rep.Guidance = PermissionGuidance
			log.Warn().Str("module", "device").Msg("capture permission denied")
			return rep, &core.DeviceError{Code: core.DevicePermissionDenied, Guidance: PermissionGuidance, Err: err}
		}
		return rep, &core.DeviceError{Code: core.DeviceProbeFailed, Err: err}
	}
	if lease != nil {
		lease.Release()
	}
	rep.PermissionGranted = true

	log.Info().
		Str("module", "device").
		Bool("camera", rep.HasCamera).
		Bool("microphone", rep.HasMicrophone).
		Msg("devices checked")
	return rep, nil
}

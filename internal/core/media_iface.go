package core

import (
	"context"

	"github.com/dkeye/Consult/internal/domain"
)

// TrackHandle is an opaque reference to one audio or video source.
type TrackHandle interface {
	ID() string
	Kind() domain.TrackKind
	Close() error
}

// PCMSource yields the current audio frame of a microphone track.
// ReadPCM returns ErrSourceClosed once the stream is gone.
type PCMSource interface {
	ReadPCM(dst []float32) (int, error)
}

//go:generate mockgen -destination=mock/surface_mock.go -package=mock . Surface

// Surface renders or plays one track.
type Surface interface {
	Attach(track TrackHandle, muted bool) error
	Detach()
}

type SurfaceFactory interface {
	NewSurface(id domain.ParticipantID, kind domain.TrackKind) Surface
}

// MediaDevices opens capture handles for the local participant.
type MediaDevices interface {
	Open(ctx context.Context, kind domain.TrackKind) (TrackHandle, error)
}

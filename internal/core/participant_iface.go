package core

import (
	"context"

	"github.com/dkeye/Consult/internal/domain"
)

// MediaState exposes live mic/webcam flags of a participant handle.
type MediaState interface {
	MicEnabled() bool
	WebcamEnabled() bool
}

// TrackAccess exposes the current track of a given kind, if any.
type TrackAccess interface {
	Track(kind domain.TrackKind) (TrackHandle, bool)
}

// Participant is a handle returned by the transport engine.
type Participant interface {
	MediaState
	TrackAccess
	Info() domain.Participant
}

// LocalParticipant is the variant that can publish our own tracks.
type LocalParticipant interface {
	Participant
	Publish(ctx context.Context, track TrackHandle) error
	Unpublish(ctx context.Context, kind domain.TrackKind) error
}

package core

import (
	"context"

	"github.com/dkeye/Consult/internal/domain"
)

type JoinRequest struct {
	RoomID        domain.RoomID
	Token         string
	DisplayName   string
	Role          domain.Role
	MicEnabled    bool
	WebcamEnabled bool
}

// Transport is the real-time engine: join/leave a room, list participants
// and stream lifecycle events. One Transport serves one join attempt.
type Transport interface {
	// Join blocks until the engine acknowledges or rejects the join.
	Join(ctx context.Context, req JoinRequest) (LocalParticipant, error)
	Participants() []Participant
	Events() <-chan Event
	// Leave releases engine resources. Safe to call more than once.
	Leave(ctx context.Context) error
}

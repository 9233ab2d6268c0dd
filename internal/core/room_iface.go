package core

import (
	"time"

	"github.com/dkeye/Consult/internal/domain"
)

// Member is one signaling session present in a rendezvous room.
type Member struct {
	SID         SessionID
	Participant domain.Participant
	Signal      SignalConnection
}

// PublishResult reports delivery stats/backpressure to the hub.
type PublishResult struct {
	SendTo  int
	Dropped []SessionID
}

// RoomService is the server-side view of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	// MembersSnapshot lists participants in join order.
	MembersSnapshot() []domain.Participant

	AddMember(m Member)
	RemoveMember(sid SessionID) (Member, bool)
	Member(sid SessionID) (Member, bool)
	MemberByParticipant(id domain.ParticipantID) (Member, bool)
	UpdateMedia(sid SessionID, mic, webcam bool) (domain.Participant, bool)
	// NextParticipantID picks an id for a new member with role.
	NextParticipantID(role domain.Role, sid SessionID) domain.ParticipantID

	Broadcast(from SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID   `json:"roomId"`
	Mode        domain.RoomMode `json:"mode"`
	CreatedAt   time.Time       `json:"createdAt"`
	MemberCount int             `json:"members"`
}

type RoomManager interface {
	// Create provisions a room with a fresh id.
	Create() RoomService
	Get(id domain.RoomID) (RoomService, bool)
	GetOrCreate(id domain.RoomID) RoomService
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}

package domain

import "time"

type RoomID string

type RoomMode string

const (
	RoomCreated RoomMode = "created"
	RoomJoined  RoomMode = "joined"
	// RoomTest is a locally synthesized room nobody else can discover.
	RoomTest RoomMode = "test"
)

// Room is resolved once per session attempt and never mutated afterwards.
type Room struct {
	ID        RoomID
	Mode      RoomMode
	CreatedAt time.Time
}

func NewRoom(id RoomID, mode RoomMode, now time.Time) *Room {
	return &Room{ID: id, Mode: mode, CreatedAt: now}
}

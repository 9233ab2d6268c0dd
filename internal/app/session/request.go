package session

import (
	"fmt"

	"github.com/dkeye/Consult/internal/app/room"
	"github.com/dkeye/Consult/internal/domain"
)

type Mode string

const (
	// ModeProduction joins the room bound to a scheduled appointment.
	ModeProduction Mode = "production"
	// ModeTest joins or creates arbitrary rooms.
	ModeTest Mode = "test"
)

// Request describes one session attempt.
type Request struct {
	Mode        Mode
	SessionID   string
	Intent      room.Intent
	DisplayName string
	Role        domain.Role
	Mic         bool
	Webcam      bool
}

// ProductionRequest targets the room derived from sessionID with template,
// e.g. "meeting-%s".
func ProductionRequest(template, sessionID, name string, role domain.Role) Request {
	return Request{
		Mode:        ModeProduction,
		SessionID:   sessionID,
		Intent:      room.JoinExisting(domain.RoomID(fmt.Sprintf(template, sessionID))),
		DisplayName: name,
		Role:        role,
		Mic:         true,
		Webcam:      true,
	}
}

// TestRequest creates a room when roomID is empty and joins it otherwise.
func TestRequest(sessionID, name string, role domain.Role, roomID domain.RoomID) Request {
	intent := room.CreateNew()
	if roomID != "" {
		intent = room.JoinExisting(roomID)
	}
	return Request{
		Mode:        ModeTest,
		SessionID:   sessionID,
		Intent:      intent,
		DisplayName: name,
		Role:        role,
		Mic:         true,
		Webcam:      true,
	}
}

func (r Request) validate() error {
	if err := domain.ValidateDisplayName(r.DisplayName); err != nil {
		return err
	}
	if _, err := domain.ParseRole(string(r.Role)); err != nil {
		return err
	}
	if r.SessionID == "" {
		return ErrNoSessionID
	}
	return nil
}

// scope asks for create only when the attempt provisions a room.
func (r Request) scope() domain.Scope {
	if r.Intent.Creates() {
		return domain.Scope{domain.PermJoin, domain.PermCreate}
	}
	return domain.Scope{domain.PermJoin}
}

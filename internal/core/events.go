package core

import "github.com/dkeye/Consult/internal/domain"

// Event is a lifecycle notification from the transport engine.
// Events are delivered in order on Transport.Events.
type Event interface{ isEvent() }

type ParticipantJoined struct{ Participant Participant }

// ParticipantUpdated carries changed media flags of a present participant.
type ParticipantUpdated struct{ Participant Participant }

type ParticipantLeft struct{ ID domain.ParticipantID }

type TrackAdded struct {
	ParticipantID domain.ParticipantID
	Track         TrackHandle
}

type TrackRemoved struct {
	ParticipantID domain.ParticipantID
	Kind          domain.TrackKind
}

// RoomClosed means the engine removed us from the room.
type RoomClosed struct{ Reason string }

type TransportFailed struct{ Err *TransportError }

func (ParticipantJoined) isEvent()  {}
func (ParticipantUpdated) isEvent() {}
func (ParticipantLeft) isEvent()    {}
func (TrackAdded) isEvent()         {}
func (TrackRemoved) isEvent()       {}
func (RoomClosed) isEvent()         {}
func (TransportFailed) isEvent()    {}

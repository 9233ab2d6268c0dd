// Package rendezvous implements the local room service: token issuing, room
// provisioning and signaling membership.
package rendezvous

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotInRoom    = errors.New("not in a room")
	ErrPeerNotFound = errors.New("peer not found")
	ErrNoSession    = errors.New("no signaling session")
)

// Hub coordinates registry and rooms for signaling sessions.
type Hub struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy
	// Strict rejects joins to rooms that were never provisioned.
	Strict bool
	// OnMemberLeft runs after a member was removed from a room that still
	// has members.
	OnMemberLeft func(room core.RoomService, m core.Member)
}

// Join places sid into room id, leaving any previous room first. The
// participant id is assigned by the room.
func (h *Hub) Join(sid core.SessionID, id domain.RoomID, p domain.Participant) (core.RoomService, domain.Participant, error) {
	conn, ok := h.Registry.Conn(sid)
	if !ok {
		return nil, domain.Participant{}, ErrNoSession
	}
	if from, _, ok := h.Registry.RoomOf(sid); ok {
		h.Leave(sid)
		log.Info().Str("module", "rendezvous.hub").Str("sid", string(sid)).Str("from_room", string(from)).Msg("left previous room")
	}

	var room core.RoomService
	if h.Strict {
		if room, ok = h.Rooms.Get(id); !ok {
			return nil, domain.Participant{}, ErrRoomNotFound
		}
	} else {
		room = h.Rooms.GetOrCreate(id)
	}

	p.ID = room.NextParticipantID(p.Role, sid)
	p.IsLocal = false
	room.AddMember(core.Member{SID: sid, Participant: p, Signal: conn})
	h.Registry.UpdateRoom(sid, id, p.ID)
	log.Info().Str("module", "rendezvous.hub").Str("sid", string(sid)).Str("room_id", string(id)).Str("participant_id", string(p.ID)).Msg("added to room")
	return room, p, nil
}

// Leave removes sid from its room. Empty rooms opened by a join are stopped;
// provisioned rooms stay until stopped explicitly.
func (h *Hub) Leave(sid core.SessionID) (core.RoomService, core.Member, bool) {
	id, _, ok := h.Registry.RoomOf(sid)
	if !ok {
		return nil, core.Member{}, false
	}
	h.Registry.RemoveRoom(sid)
	room, ok := h.Rooms.Get(id)
	if !ok {
		return nil, core.Member{}, false
	}
	m, ok := room.RemoveMember(sid)
	if !ok {
		return room, core.Member{}, false
	}
	if room.MemberCount() == 0 {
		if room.Room().Mode == domain.RoomJoined {
			h.Rooms.StopRoom(id)
		}
	} else if h.OnMemberLeft != nil {
		h.OnMemberLeft(room, m)
	}
	return room, m, true
}

// Disconnect is Leave plus forgetting the session.
func (h *Hub) Disconnect(sid core.SessionID) {
	h.Leave(sid)
	h.Registry.Unbind(sid)
}

func (h *Hub) UpdateMedia(sid core.SessionID, mic, webcam bool) (core.RoomService, domain.Participant, error) {
	room, err := h.roomOf(sid)
	if err != nil {
		return nil, domain.Participant{}, err
	}
	p, ok := room.UpdateMedia(sid, mic, webcam)
	if !ok {
		return nil, domain.Participant{}, ErrNotInRoom
	}
	return room, p, nil
}

// Peer resolves the room mate `to` of sid, returning it with sid's own
// participant id.
func (h *Hub) Peer(sid core.SessionID, to domain.ParticipantID) (core.Member, domain.ParticipantID, error) {
	room, err := h.roomOf(sid)
	if err != nil {
		return core.Member{}, "", err
	}
	_, from, _ := h.Registry.RoomOf(sid)
	target, ok := room.MemberByParticipant(to)
	if !ok || target.SID == sid {
		return core.Member{}, "", ErrPeerNotFound
	}
	return target, from, nil
}

// Broadcast sends data to every room mate of sid and applies the policy to
// members that could not take it.
func (h *Hub) Broadcast(sid core.SessionID, data core.Frame) {
	room, err := h.roomOf(sid)
	if err != nil {
		return
	}
	res := room.Broadcast(sid, data)
	if h.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch h.Policy.OnBackPressure(room, slow) {
		case KickMember:
			h.Kick(slow)
		case DropFrame, NoAction:
		}
	}
}

// Kick removes sid from its room and stops its connection.
func (h *Hub) Kick(sid core.SessionID) {
	log.Warn().Str("module", "rendezvous.hub").Str("sid", string(sid)).Msg("kicking member")
	h.Leave(sid)
	h.Registry.Cancel(sid)
}

func (h *Hub) roomOf(sid core.SessionID) (core.RoomService, error) {
	id, _, ok := h.Registry.RoomOf(sid)
	if !ok {
		return nil, ErrNotInRoom
	}
	room, ok := h.Rooms.Get(id)
	if !ok {
		return nil, ErrNotInRoom
	}
	return room, nil
}

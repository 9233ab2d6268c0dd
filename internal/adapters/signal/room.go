package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/app/rendezvous"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

func (ctl *SignalWSController) handleJoin(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p JoinMessage
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(string(sid)) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join rate limited")
		ctl.sendError(conn, "too many join attempts")
		return
	}

	role, err := domain.ParseRole(p.Role)
	if err != nil {
		ctl.sendError(conn, "invalid_role")
		return
	}
	member := domain.Participant{Role: role, MicEnabled: p.Mic, WebcamEnabled: p.Webcam}
	if err := member.SetDisplayName(p.Name); err != nil {
		ctl.sendError(conn, "invalid_name")
		return
	}
	if p.Room == "" {
		ctl.sendError(conn, "room required")
		return
	}

	room, me, err := ctl.Hub.Join(sid, domain.RoomID(p.Room), member)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room_id", p.Room).Msg("join rejected")
		if errors.Is(err, rendezvous.ErrRoomNotFound) {
			ctl.sendError(conn, "room not found")
			return
		}
		ctl.sendError(conn, err.Error())
		return
	}

	others := make([]domain.Participant, 0, room.MemberCount())
	for _, m := range room.MembersSnapshot() {
		if m.ID != me.ID {
			others = append(others, m)
		}
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", p.Room).Str("participant_id", string(me.ID)).Msg("join")
	ctl.sendJSON(conn, RoomStateMessage{
		Type:    TypeRoomState,
		Room:    room.Room().ID,
		You:     me,
		Members: others,
	})

	if b, ok := encode(MemberMessage{Type: TypeMemberJoined, Member: me}); ok {
		ctl.Hub.Broadcast(sid, b)
	}
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID, conn *wsSignalConn) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Hub.Leave(sid)
	ctl.sendJSON(conn, Envelope{Type: TypeLeft})
}

// announceLeft runs from the hub once m is out of room.
func (ctl *SignalWSController) announceLeft(room core.RoomService, m core.Member) {
	if b, ok := encode(MemberMessage{Type: TypeMemberLeft, Member: m.Participant}); ok {
		room.Broadcast(m.SID, b)
	}
}

package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// handleSDP relays an offer or answer to the addressed room mate.
func (ctl *SignalWSController) handleSDP(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p SDPMessage
	if err := json.Unmarshal(data, &p); err != nil || p.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad sdp payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	target, from, err := ctl.Hub.Peer(sid, domain.ParticipantID(p.To))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("to", p.To).Msg("sdp relay")
		ctl.sendError(conn, err.Error())
		return
	}
	p.To, p.From = "", string(from)
	ctl.sendJSON(target.Signal, p)
	log.Debug().Str("module", "signal").Str("type", p.Type).Str("from", p.From).Str("to", string(target.Participant.ID)).Msg("sdp relayed")
}

func (ctl *SignalWSController) handleCandidate(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p CandidateMessage
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}
	target, from, err := ctl.Hub.Peer(sid, domain.ParticipantID(p.To))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("candidate: no peer")
		return
	}
	p.To, p.From = "", string(from)
	ctl.sendJSON(target.Signal, p)
}

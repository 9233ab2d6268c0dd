package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
)

func (ctl *SignalWSController) handlePing(conn *wsSignalConn) {
	ctl.sendJSON(conn, Envelope{Type: TypePong})
}

func (ctl *SignalWSController) handleMediaState(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p MediaStateMessage
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad media_state payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	_, me, err := ctl.Hub.UpdateMedia(sid, p.Mic, p.Webcam)
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}
	log.Debug().Str("module", "signal").Str("sid", string(sid)).Bool("mic", p.Mic).Bool("webcam", p.Webcam).Msg("media state")
	if b, ok := encode(MemberMessage{Type: TypeMemberUpdated, Member: me}); ok {
		ctl.Hub.Broadcast(sid, b)
	}
}

package signal

import "github.com/dkeye/Consult/internal/domain"

// Message types of the signaling protocol.
const (
	TypeJoin       = "join"
	TypeLeave      = "leave"
	TypePing       = "ping"
	TypeMediaState = "media_state"
	TypeOffer      = "offer"
	TypeAnswer     = "answer"
	TypeCandidate  = "candidate"

	TypeRoomState     = "room_state"
	TypeMemberJoined  = "member_joined"
	TypeMemberLeft    = "member_left"
	TypeMemberUpdated = "member_updated"
	TypeLeft          = "left"
	TypePong          = "pong"
	TypeError         = "error"
)

type Envelope struct {
	Type string `json:"type"`
}

type JoinMessage struct {
	Type   string `json:"type"`
	Room   string `json:"room"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Mic    bool   `json:"mic"`
	Webcam bool   `json:"webcam"`
}

type MediaStateMessage struct {
	Type   string `json:"type"`
	Mic    bool   `json:"mic"`
	Webcam bool   `json:"webcam"`
}

// SDPMessage carries an offer or answer. Clients set To; the server
// replaces it with From before relaying.
type SDPMessage struct {
	Type string `json:"type"`
	To   string `json:"to,omitempty"`
	From string `json:"from,omitempty"`
	SDP  string `json:"sdp"`
}

type CandidateMessage struct {
	Type          string  `json:"type"`
	To            string  `json:"to,omitempty"`
	From          string  `json:"from,omitempty"`
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// RoomStateMessage acknowledges a join. Members excludes You.
type RoomStateMessage struct {
	Type    string               `json:"type"`
	Room    domain.RoomID        `json:"room"`
	You     domain.Participant   `json:"you"`
	Members []domain.Participant `json:"members"`
}

type MemberMessage struct {
	Type   string             `json:"type"`
	Member domain.Participant `json:"member"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

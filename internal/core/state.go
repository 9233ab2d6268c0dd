package core

type SessionState int

const (
	StateIdle SessionState = iota
	StateAcquiringCredential
	StateResolvingRoom
	StateCheckingDevices
	StateJoining
	StateInSession
	StateLeaving
	StateEnded
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                "idle",
	StateAcquiringCredential: "acquiring_credential",
	StateResolvingRoom:       "resolving_room",
	StateCheckingDevices:     "checking_devices",
	StateJoining:             "joining",
	StateInSession:           "in_session",
	StateLeaving:             "leaving",
	StateEnded:               "ended",
	StateFailed:              "failed",
}

func (s SessionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal states accept a new Start.
func (s SessionState) Terminal() bool { return s == StateEnded || s == StateFailed }

// Pending reports a setup phase that a leave must cancel.
func (s SessionState) Pending() bool {
	return s >= StateAcquiringCredential && s <= StateJoining
}

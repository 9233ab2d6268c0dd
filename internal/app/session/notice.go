package session

import (
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// Notice is an update published to the UI.
type Notice interface{ isNotice() }

type StateChanged struct {
	From core.SessionState
	To   core.SessionState
	Room *domain.Room
	// Err is set when To is StateFailed.
	Err error
}

// Warning is a non-fatal degradation; the session continues.
type Warning struct{ Err error }

type RosterChanged struct{ Participants []domain.Participant }

func (StateChanged) isNotice()  {}
func (Warning) isNotice()       {}
func (RosterChanged) isNotice() {}

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	State        core.SessionState
	Room         *domain.Room
	Err          error
	Warnings     []error
	Participants []domain.Participant
}

// Package roster keeps the ordered set of participants present in a room.
package roster

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/domain"
)

// Roster orders the local participant first, remotes in join order.
// A second local participant replaces the first one.
type Roster struct {
	mu      sync.RWMutex
	local   *domain.Participant
	remotes []domain.Participant
	index   map[domain.ParticipantID]int
}

func New() *Roster {
	return &Roster{index: make(map[domain.ParticipantID]int)}
}

// OnJoin inserts p, or updates the mutable fields of an already present id.
func (r *Roster) OnJoin(p domain.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.IsLocal {
		if r.local != nil && r.local.ID != p.ID {
			log.Warn().Str("module", "roster").Str("old", string(r.local.ID)).Str("new", string(p.ID)).Msg("local participant replaced")
		}
		// a remote entry with the same id is the echo of ourselves
		r.removeRemoteLocked(p.ID)
		lp := p
		r.local = &lp
		return
	}

	if r.local != nil && r.local.ID == p.ID {
		r.local.MicEnabled = p.MicEnabled
		r.local.WebcamEnabled = p.WebcamEnabled
		return
	}

	if i, ok := r.index[p.ID]; ok {
		cur := &r.remotes[i]
		cur.MicEnabled = p.MicEnabled
		cur.WebcamEnabled = p.WebcamEnabled
		if p.DisplayName != "" {
			cur.DisplayName = p.DisplayName
		}
		return
	}

	r.index[p.ID] = len(r.remotes)
	r.remotes = append(r.remotes, p)
	log.Debug().Str("module", "roster").Str("participant_id", string(p.ID)).Int("size", r.lenLocked()).Msg("participant added")
}

// OnLeave removes id. Unknown ids are ignored.
func (r *Roster) OnLeave(id domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.local != nil && r.local.ID == id {
		r.local = nil
		return
	}
	if r.removeRemoteLocked(id) {
		log.Debug().Str("module", "roster").Str("participant_id", string(id)).Int("size", r.lenLocked()).Msg("participant removed")
	}
}

func (r *Roster) removeRemoteLocked(id domain.ParticipantID) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	r.remotes = append(r.remotes[:i], r.remotes[i+1:]...)
	delete(r.index, id)
	for j := i; j < len(r.remotes); j++ {
		r.index[r.remotes[j].ID] = j
	}
	return true
}

// SetMedia updates the flags of a present participant.
func (r *Roster) SetMedia(id domain.ParticipantID, mic, webcam bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.local != nil && r.local.ID == id {
		r.local.MicEnabled, r.local.WebcamEnabled = mic, webcam
		return true
	}
	if i, ok := r.index[id]; ok {
		r.remotes[i].MicEnabled, r.remotes[i].WebcamEnabled = mic, webcam
		return true
	}
	return false
}

// List returns a snapshot, local participant first.
func (r *Roster) List() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Participant, 0, r.lenLocked())
	if r.local != nil {
		out = append(out, *r.local)
	}
	return append(out, r.remotes...)
}

func (r *Roster) Get(id domain.ParticipantID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.local != nil && r.local.ID == id {
		return *r.local, true
	}
	if i, ok := r.index[id]; ok {
		return r.remotes[i], true
	}
	return domain.Participant{}, false
}

func (r *Roster) Local() (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.local == nil {
		return domain.Participant{}, false
	}
	return *r.local, true
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

func (r *Roster) lenLocked() int {
	n := len(r.remotes)
	if r.local != nil {
		n++
	}
	return n
}

func (r *Roster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = nil
	r.remotes = nil
	r.index = make(map[domain.ParticipantID]int)
}

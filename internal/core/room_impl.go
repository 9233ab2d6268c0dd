package core

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room *domain.Room

	mu     sync.RWMutex
	bySID  map[SessionID]*Member
	byPID  map[domain.ParticipantID]SessionID
	joined []SessionID
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:  room,
		bySID: make(map[SessionID]*Member),
		byPID: make(map[domain.ParticipantID]SessionID),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[m.SID]; !ok {
		r.joined = append(r.joined, m.SID)
	}
	mm := m
	r.bySID[m.SID] = &mm
	r.byPID[m.Participant.ID] = m.SID
	log.Info().Str("module", "core.room").Str("room_id", string(r.room.ID)).Str("sid", string(m.SID)).Str("participant_id", string(m.Participant.ID)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.bySID[sid]
	if !ok {
		return Member{}, false
	}
	delete(r.byPID, m.Participant.ID)
	delete(r.bySID, sid)
	r.joined = slices.DeleteFunc(r.joined, func(s SessionID) bool { return s == sid })
	log.Info().Str("module", "core.room").Str("room_id", string(r.room.ID)).Str("sid", string(sid)).Msg("member removed")
	return *m, true
}

func (r *roomImpl) Member(sid SessionID) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.bySID[sid]; ok {
		return *m, true
	}
	return Member{}, false
}

func (r *roomImpl) MemberByParticipant(id domain.ParticipantID) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byPID[id]
	if !ok {
		return Member{}, false
	}
	return *r.bySID[sid], true
}

func (r *roomImpl) UpdateMedia(sid SessionID, mic, webcam bool) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.bySID[sid]
	if !ok {
		return domain.Participant{}, false
	}
	m.Participant.MicEnabled = mic
	m.Participant.WebcamEnabled = webcam
	return m.Participant, true
}

// NextParticipantID uses the bare role name while it is free in the room,
// which is the common 1:1 coach/client case.
func (r *roomImpl) NextParticipantID(role domain.Role, sid SessionID) domain.ParticipantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := domain.ParticipantID(role)
	if _, taken := r.byPID[id]; !taken {
		return id
	}
	suffix := string(sid)
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return domain.ParticipantID(string(role) + "-" + suffix)
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if sid == from {
			continue
		}
		if err := m.Signal.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Participant, 0, len(r.joined))
	for _, sid := range r.joined {
		out = append(out, r.bySID[sid].Participant)
	}
	return out
}

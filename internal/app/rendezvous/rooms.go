package rendezvous

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
	now   func() time.Time
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{
		rooms: make(map[domain.RoomID]core.RoomService),
		now:   time.Now,
	}
}

// newRoomID returns a lowercase id shaped like "abcd-efgh-ijkl".
func newRoomID() domain.RoomID {
	u := uuid.New()
	var b strings.Builder
	for i := 0; i < 12; i++ {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte('a' + u[i]%26)
	}
	return domain.RoomID(b.String())
}

func (f *RoomManagerImpl) Create() core.RoomService {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := newRoomID()
	for f.rooms[id] != nil {
		id = newRoomID()
	}
	room := core.NewRoomService(domain.NewRoom(id, domain.RoomCreated, f.now()))
	f.rooms[id] = room
	log.Info().Str("module", "rendezvous.rooms").Str("room_id", string(id)).Msg("room created")
	return room
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) GetOrCreate(id domain.RoomID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(domain.NewRoom(id, domain.RoomJoined, f.now()))
	f.rooms[id] = room
	log.Info().Str("module", "rendezvous.rooms").Str("room_id", string(id)).Msg("room opened on join")
	return room
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{
			ID:          id,
			Mode:        r.Room().Mode,
			CreatedAt:   r.Room().CreatedAt,
			MemberCount: r.MemberCount(),
		})
	}
	f.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *RoomManagerImpl) StopRoom(id domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	log.Info().Str("module", "rendezvous.rooms").Str("room_id", string(id)).Msg("room stopped")
}

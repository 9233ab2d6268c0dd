package render

import (
	"cmp"
	"slices"
	"sync"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// Factory hands out surfaces and remembers them for status output.
type Factory struct {
	mu       sync.Mutex
	surfaces []*Surface
}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) NewSurface(id domain.ParticipantID, kind domain.TrackKind) core.Surface {
	s := newSurface(id, kind)
	f.mu.Lock()
	f.surfaces = append(f.surfaces, s)
	f.mu.Unlock()
	return s
}

type SurfaceInfo struct {
	ParticipantID domain.ParticipantID
	Kind          domain.TrackKind
	State         SurfaceState
	Stats         Stats
}

// Active lists attached surfaces by participant and kind, pruning detached ones.
func (f *Factory) Active() []SurfaceInfo {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]SurfaceInfo, 0, len(f.surfaces))
	live := f.surfaces[:0]
	for _, s := range f.surfaces {
		st := s.State()
		if st == SurfaceDetached {
			continue
		}
		live = append(live, s)
		out = append(out, SurfaceInfo{ParticipantID: s.id, Kind: s.kind, State: st, Stats: s.Stats()})
	}
	clear(f.surfaces[len(live):])
	f.surfaces = live

	slices.SortFunc(out, func(a, b SurfaceInfo) int {
		if c := cmp.Compare(a.ParticipantID, b.ParticipantID); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
	return out
}

// Package media binds participant tracks to renderable surfaces.
package media

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// Binding associates a track with the surface currently playing it.
// Local audio bindings have no surface.
type Binding struct {
	ParticipantID domain.ParticipantID
	Kind          domain.TrackKind
	Source        core.TrackHandle
	Surface       core.Surface
	Local         bool
}

type bindingKey struct {
	id   domain.ParticipantID
	kind domain.TrackKind
}

type Binder struct {
	mu       sync.Mutex
	surfaces core.SurfaceFactory
	bindings map[bindingKey]*Binding
}

func NewBinder(surfaces core.SurfaceFactory) *Binder {
	return &Binder{
		surfaces: surfaces,
		bindings: make(map[bindingKey]*Binding),
	}
}

// Bind attaches source to a fresh surface, first releasing any previous
// binding of the same (participant, kind). Local video is attached muted and
// local audio is tracked without a playback surface. An attach failure is
// returned as *core.BindingError and leaves other bindings untouched.
func (b *Binder) Bind(id domain.ParticipantID, kind domain.TrackKind, source core.TrackHandle, local bool) error {
	k := bindingKey{id: id, kind: kind}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.unbindLocked(k)

	binding := &Binding{ParticipantID: id, Kind: kind, Source: source, Local: local}
	if local && kind == domain.TrackAudio {
		b.bindings[k] = binding
		log.Debug().Str("module", "media").Str("participant_id", string(id)).Msg("local audio bound without playback")
		return nil
	}

	surface := b.surfaces.NewSurface(id, kind)
	muted := local && kind == domain.TrackVideo
	if err := surface.Attach(source, muted); err != nil {
		log.Warn().Err(err).
			Str("module", "media").
			Str("participant_id", string(id)).
			Str("kind", string(kind)).
			Msg("surface attach failed")
		return &core.BindingError{ParticipantID: id, Kind: kind, Err: err}
	}
	binding.Surface = surface
	b.bindings[k] = binding

	log.Info().
		Str("module", "media").
		Str("participant_id", string(id)).
		Str("kind", string(kind)).
		Str("track_id", source.ID()).
		Bool("muted", muted).
		Msg("track bound")
	return nil
}

// Unbind releases the surface of (id, kind). Unbound pairs are a no-op.
func (b *Binder) Unbind(id domain.ParticipantID, kind domain.TrackKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unbindLocked(bindingKey{id: id, kind: kind})
}

func (b *Binder) UnbindParticipant(id domain.ParticipantID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unbindLocked(bindingKey{id: id, kind: domain.TrackVideo})
	b.unbindLocked(bindingKey{id: id, kind: domain.TrackAudio})
}

func (b *Binder) UnbindAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.bindings {
		b.unbindLocked(k)
	}
}

func (b *Binder) unbindLocked(k bindingKey) {
	binding, ok := b.bindings[k]
	if !ok {
		return
	}
	if binding.Surface != nil {
		binding.Surface.Detach()
		binding.Surface = nil
	}
	delete(b.bindings, k)
	log.Info().Str("module", "media").Str("participant_id", string(k.id)).Str("kind", string(k.kind)).Msg("track unbound")
}

func (b *Binder) Bound(id domain.ParticipantID, kind domain.TrackKind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.bindings[bindingKey{id: id, kind: kind}]
	return ok
}

// Bindings returns a copy of the current bindings ordered by participant and kind.
func (b *Binder) Bindings() []Binding {
	b.mu.Lock()
	out := make([]Binding, 0, len(b.bindings))
	for _, binding := range b.bindings {
		out = append(out, *binding)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ParticipantID != out[j].ParticipantID {
			return out[i].ParticipantID < out[j].ParticipantID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Package engine implements core.Transport over the rendezvous signaling
// websocket with one pion peer connection per remote participant.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/adapters/rtc"
	"github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

var ErrClosed = errors.New("engine closed")

// ServerError is an error message sent by the signaling server.
type ServerError string

func (e ServerError) Error() string { return "server: " + string(e) }

const (
	eventBuffer      = 64
	defaultWriteWait = 5 * time.Second
)

type Options struct {
	URL        string
	ICEServers []string
	Dialer     *websocket.Dialer
	WriteWait  time.Duration
}

type Engine struct {
	opts   Options
	rtcCfg webrtc.Configuration
	logger zerolog.Logger

	writeMu sync.Mutex
	ws      *websocket.Conn

	mu      sync.Mutex
	local   *localParticipant
	remotes map[domain.ParticipantID]*remoteParticipant
	order   []domain.ParticipantID
	peers   map[domain.ParticipantID]*rtc.Peer
	leaving bool

	emitMu sync.Mutex
	closed bool
	events chan core.Event

	joinAck   chan joinResult
	done      chan struct{}
	readDone  chan struct{}
	leaveOnce sync.Once
}

type joinResult struct {
	local *localParticipant
	err   error
}

func New(opts Options) *Engine {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	return &Engine{
		opts:     opts,
		rtcCfg:   rtc.DefaultWebRTCConfig(opts.ICEServers),
		logger:   log.With().Str("module", "engine").Logger(),
		remotes:  make(map[domain.ParticipantID]*remoteParticipant),
		peers:    make(map[domain.ParticipantID]*rtc.Peer),
		events:   make(chan core.Event, eventBuffer),
		joinAck:  make(chan joinResult, 1),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
}

func (e *Engine) Join(ctx context.Context, req core.JoinRequest) (core.LocalParticipant, error) {
	u, err := url.Parse(e.opts.URL)
	if err != nil {
		return nil, &core.TransportError{Op: "dial", Fatal: true, Err: err}
	}
	q := u.Query()
	q.Set("token", req.Token)
	u.RawQuery = q.Encode()

	ws, resp, err := e.opts.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, &core.TransportError{Op: "dial", Fatal: true, Err: err}
	}

	e.mu.Lock()
	if e.leaving {
		e.mu.Unlock()
		_ = ws.Close()
		return nil, &core.TransportError{Op: "dial", Fatal: true, Err: ErrClosed}
	}
	e.writeMu.Lock()
	e.ws = ws
	e.writeMu.Unlock()
	e.mu.Unlock()

	go e.readLoop(ws)

	if err := e.send(signal.JoinMessage{
		Type:   signal.TypeJoin,
		Room:   string(req.RoomID),
		Name:   req.DisplayName,
		Role:   string(req.Role),
		Mic:    req.MicEnabled,
		Webcam: req.WebcamEnabled,
	}); err != nil {
		return nil, &core.TransportError{Op: "join", Fatal: true, Err: err}
	}

	select {
	case res := <-e.joinAck:
		if res.err != nil {
			return nil, &core.TransportError{Op: "join", Fatal: true, Err: res.err}
		}
		e.logger.Info().Str("room_id", string(req.RoomID)).Str("participant_id", string(res.local.info.ID)).Msg("joined")
		return res.local, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return nil, &core.TransportError{Op: "join", Fatal: true, Err: ErrClosed}
	}
}

func (e *Engine) Participants() []core.Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Participant, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.remotes[id])
	}
	return out
}

func (e *Engine) Events() <-chan core.Event { return e.events }

// Leave says goodbye to the server, closes every peer and the event channel.
func (e *Engine) Leave(ctx context.Context) error {
	e.leaveOnce.Do(func() {
		e.mu.Lock()
		e.leaving = true
		peers := e.peers
		e.peers = make(map[domain.ParticipantID]*rtc.Peer)
		e.mu.Unlock()

		e.writeMu.Lock()
		ws := e.ws
		e.writeMu.Unlock()

		if ws != nil {
			if err := e.send(signal.Envelope{Type: signal.TypeLeave}); err != nil {
				e.logger.Debug().Err(err).Msg("leave message")
			}
			e.writeMu.Lock()
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(e.opts.WriteWait))
			e.writeMu.Unlock()
			_ = ws.Close()
		}
		for _, p := range peers {
			p.Close()
		}
		close(e.done)
		if ws != nil {
			select {
			case <-e.readDone:
			case <-ctx.Done():
				e.logger.Warn().Msg("read loop still running after leave")
			}
		}

		e.emitMu.Lock()
		e.closed = true
		close(e.events)
		e.emitMu.Unlock()
		e.logger.Info().Int("peers", len(peers)).Msg("left")
	})
	return nil
}

func (e *Engine) emit(ev core.Event) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) send(v any) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.ws == nil {
		return core.ErrNotJoined
	}
	if err := e.ws.SetWriteDeadline(time.Now().Add(e.opts.WriteWait)); err != nil {
		return err
	}
	return e.ws.WriteJSON(v)
}

func (e *Engine) isLeaving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaving
}

func (e *Engine) ack(res joinResult) {
	select {
	case e.joinAck <- res:
	default:
	}
}

func (e *Engine) readLoop(ws *websocket.Conn) {
	var err error
	defer func() {
		if !e.isLeaving() {
			e.logger.Error().Err(err).Msg("signaling connection lost")
			e.ack(joinResult{err: err})
			e.emit(core.TransportFailed{Err: &core.TransportError{Op: "signal", Fatal: true, Err: err}})
		}
		close(e.readDone)
	}()

	for {
		var data []byte
		if _, data, err = ws.ReadMessage(); err != nil {
			return
		}
		var env signal.Envelope
		if jerr := json.Unmarshal(data, &env); jerr != nil {
			e.logger.Warn().Err(jerr).Msg("bad json from server")
			continue
		}
		e.handle(env.Type, data)
	}
}

func (e *Engine) handle(typ string, data []byte) {
	switch typ {
	case signal.TypeRoomState:
		var m signal.RoomStateMessage
		if e.decode(data, &m) {
			e.onRoomState(m)
		}
	case signal.TypeMemberJoined:
		var m signal.MemberMessage
		if e.decode(data, &m) {
			e.onMemberJoined(m.Member)
		}
	case signal.TypeMemberUpdated:
		var m signal.MemberMessage
		if e.decode(data, &m) {
			e.onMemberUpdated(m.Member)
		}
	case signal.TypeMemberLeft:
		var m signal.MemberMessage
		if e.decode(data, &m) {
			e.onMemberLeft(m.Member.ID)
		}
	case signal.TypeOffer:
		var m signal.SDPMessage
		if e.decode(data, &m) {
			e.onOffer(m)
		}
	case signal.TypeAnswer:
		var m signal.SDPMessage
		if e.decode(data, &m) {
			e.onAnswer(m)
		}
	case signal.TypeCandidate:
		var m signal.CandidateMessage
		if e.decode(data, &m) {
			e.onCandidate(m)
		}
	case signal.TypeLeft:
		if !e.isLeaving() {
			e.emit(core.RoomClosed{Reason: "removed by server"})
		}
	case signal.TypeError:
		var m signal.ErrorMessage
		if !e.decode(data, &m) {
			return
		}
		e.mu.Lock()
		joined := e.local != nil
		e.mu.Unlock()
		if !joined {
			e.ack(joinResult{err: ServerError(m.Error)})
			return
		}
		e.logger.Warn().Str("error", m.Error).Msg("server error")
		e.emit(core.TransportFailed{Err: &core.TransportError{Op: "signal", Err: ServerError(m.Error)}})
	case signal.TypePong:
	default:
		e.logger.Debug().Str("type", typ).Msg("unhandled message")
	}
}

func (e *Engine) decode(data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		e.logger.Warn().Err(err).Msg("bad payload from server")
		return false
	}
	return true
}

func (e *Engine) onRoomState(m signal.RoomStateMessage) {
	e.mu.Lock()
	if e.local != nil {
		e.mu.Unlock()
		return
	}
	e.local = newLocalParticipant(e, m.You)
	for _, p := range m.Members {
		e.addRemoteLocked(p)
	}
	local := e.local
	e.mu.Unlock()

	// Whoever joins later offers to everyone already present.
	for _, p := range m.Members {
		e.offer(p.ID)
	}
	e.ack(joinResult{local: local})
}

func (e *Engine) addRemoteLocked(p domain.Participant) *remoteParticipant {
	if r, ok := e.remotes[p.ID]; ok {
		r.update(p)
		return r
	}
	r := newRemoteParticipant(p)
	e.remotes[p.ID] = r
	e.order = append(e.order, p.ID)
	return r
}

func (e *Engine) onMemberJoined(p domain.Participant) {
	e.mu.Lock()
	r := e.addRemoteLocked(p)
	e.mu.Unlock()
	e.logger.Info().Str("participant_id", string(p.ID)).Msg("member joined")
	e.emit(core.ParticipantJoined{Participant: r})
}

func (e *Engine) onMemberUpdated(p domain.Participant) {
	e.mu.Lock()
	r, ok := e.remotes[p.ID]
	e.mu.Unlock()
	if !ok {
		return
	}
	prev := r.update(p)
	e.emit(core.ParticipantUpdated{Participant: r})

	for _, kind := range []domain.TrackKind{domain.TrackAudio, domain.TrackVideo} {
		t, has := r.rawTrack(kind)
		if !has {
			continue
		}
		was, now := enabled(prev, kind), enabled(p, kind)
		switch {
		case was && !now:
			e.emit(core.TrackRemoved{ParticipantID: p.ID, Kind: kind})
		case !was && now:
			e.emit(core.TrackAdded{ParticipantID: p.ID, Track: t})
		}
	}
}

func (e *Engine) onMemberLeft(id domain.ParticipantID) {
	e.mu.Lock()
	_, ok := e.remotes[id]
	delete(e.remotes, id)
	for i, o := range e.order {
		if o == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	peer := e.peers[id]
	delete(e.peers, id)
	e.mu.Unlock()

	if peer != nil {
		peer.Close()
	}
	if ok {
		e.logger.Info().Str("participant_id", string(id)).Msg("member left")
		e.emit(core.ParticipantLeft{ID: id})
	}
}

func (e *Engine) onRemoteTrack(id domain.ParticipantID, track *webrtc.TrackRemote) {
	e.mu.Lock()
	r, ok := e.remotes[id]
	e.mu.Unlock()
	if !ok {
		return
	}
	h := newRemoteTrack(track)
	if r.setTrack(h) {
		e.emit(core.TrackAdded{ParticipantID: id, Track: h})
	}
}

// Package signal is the websocket signaling endpoint of the rendezvous server.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/app/rendezvous"
	"github.com/dkeye/Consult/internal/core"
)

var ErrConnClosed = errors.New("connection closed")

const (
	sendBuffer        = 32
	writeWait         = 5 * time.Second
	defaultReadLimit  = 32 << 10
	defaultPingPeriod = 54 * time.Second
)

type SignalWSController struct {
	Hub     *rendezvous.Hub
	Limiter *RoomRateLimiter

	readLimit  int64
	pingPeriod time.Duration
}

func NewSignalWSController(hub *rendezvous.Hub, limiter *RoomRateLimiter, readLimit int64, pingPeriod time.Duration) *SignalWSController {
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}
	ctl := &SignalWSController{
		Hub:        hub,
		Limiter:    limiter,
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
	hub.OnMemberLeft = ctl.announceLeft
	return ctl
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves one signaling session until
// the socket closes or ctx ends.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, sendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Hub.Registry.BindSignal(sid, conn, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}

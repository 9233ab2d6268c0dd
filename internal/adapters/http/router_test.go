package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app/credential"
	"github.com/dkeye/Consult/internal/app/rendezvous"
	"github.com/dkeye/Consult/internal/config"
	transport "github.com/dkeye/Consult/internal/transport/http"
)

func newTestRouter(t *testing.T) (*httptest.Server, *rendezvous.Issuer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	issuer := rendezvous.NewIssuer("signing", time.Hour)
	hub := &rendezvous.Hub{
		Registry: rendezvous.NewRegistry(),
		Rooms:    rendezvous.NewRoomManager(),
		Policy:   rendezvous.SimplePolicy{},
	}
	api := &transport.API{
		APIKey:    "key",
		SecretKey: "secret",
		Issuer:    issuer,
		Rooms:     hub.Rooms,
		Catalog:   rendezvous.NewCatalog(),
	}
	ctrl := signal.NewSignalWSController(hub, signal.NewRoomRateLimiter(5, time.Minute), 0, 0)
	r := SetupRouter(ctx, &config.Config{Mode: "test"}, api, ctrl)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, issuer
}

func TestSignalRequiresJoinToken(t *testing.T) {
	srv, issuer := newTestRouter(t)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without token: resp=%v err=%v", resp, err)
	}

	modOnly, _, err := issuer.Issue(time.Now().Add(time.Minute), []string{credential.PermAllowMod})
	if err != nil {
		t.Fatal(err)
	}
	_, resp, err = websocket.DefaultDialer.Dial(base+"?token="+modOnly, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("dial with mod-only token: resp=%v err=%v", resp, err)
	}

	tok, _, err := issuer.Issue(time.Now().Add(time.Minute), []string{credential.PermAllowJoin})
	if err != nil {
		t.Fatal(err)
	}
	ws, _, err := websocket.DefaultDialer.Dial(base+"?token="+tok, nil)
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(signal.Envelope{Type: signal.TypePing}); err != nil {
		t.Fatal(err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env signal.Envelope
	if err := ws.ReadJSON(&env); err != nil || env.Type != signal.TypePong {
		t.Fatalf("pong = %+v, %v", env, err)
	}
}

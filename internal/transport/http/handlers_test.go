package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Consult/internal/app/credential"
	"github.com/dkeye/Consult/internal/app/rendezvous"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

type stubTokens struct {
	err error
}

func (s stubTokens) Acquire(context.Context, domain.Scope) (*domain.Credential, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Credential{Value: "tok"}, nil
}

func newTestAPI(tokens TokenSource) (*gin.Engine, *API) {
	gin.SetMode(gin.TestMode)
	a := &API{
		APIKey:    "key",
		SecretKey: "secret",
		Issuer:    rendezvous.NewIssuer("signing", 48*time.Hour),
		Rooms:     rendezvous.NewRoomManager(),
		Catalog:   rendezvous.NewCatalog(),
		Tokens:    tokens,
	}
	r := gin.New()
	a.Register(r)
	return r, a
}

func do(r http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTokenThenRoom(t *testing.T) {
	r, _ := newTestAPI(stubTokens{})

	w := do(r, http.MethodPost, "/v2/token", "key:secret", TokenRequest{
		Expire:      time.Now().Add(time.Hour).Unix(),
		Permissions: []string{credential.PermAllowJoin, credential.PermAllowMod},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d body=%s", w.Code, w.Body)
	}
	var tr TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &tr); err != nil || tr.Token == "" {
		t.Fatalf("token response %s: %v", w.Body, err)
	}

	w = do(r, http.MethodPost, "/v2/rooms", tr.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rooms status = %d body=%s", w.Code, w.Body)
	}
	var rr RoomResponse
	if err := json.Unmarshal(w.Body.Bytes(), &rr); err != nil || len(rr.RoomID) != 14 {
		t.Fatalf("room response %s: %v", w.Body, err)
	}

	w = do(r, http.MethodGet, "/api/rooms", "", nil)
	var infos []core.RoomInfo
	if err := json.Unmarshal(w.Body.Bytes(), &infos); err != nil || len(infos) != 1 || infos[0].ID != rr.RoomID {
		t.Fatalf("list = %s: %v", w.Body, err)
	}
}

func TestTokenRejections(t *testing.T) {
	r, _ := newTestAPI(stubTokens{})
	future := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name string
		auth string
		body TokenRequest
		code int
	}{
		{"wrong key", "key:nope", TokenRequest{Expire: future, Permissions: []string{"allow_join"}}, http.StatusUnauthorized},
		{"past expiry", "key:secret", TokenRequest{Expire: 1, Permissions: []string{"allow_join"}}, http.StatusBadRequest},
		{"too long", "key:secret", TokenRequest{Expire: time.Now().Add(72 * time.Hour).Unix(), Permissions: []string{"allow_join"}}, http.StatusBadRequest},
		{"unknown permission", "key:secret", TokenRequest{Expire: future, Permissions: []string{"allow_everything"}}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/v2/token", tc.auth, tc.body)
			if w.Code != tc.code {
				t.Fatalf("status = %d, want %d", w.Code, tc.code)
			}
			var m MessageResponse
			if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil || m.Message == "" {
				t.Fatalf("body = %s", w.Body)
			}
		})
	}
}

func TestCreateRoomRejections(t *testing.T) {
	r, a := newTestAPI(stubTokens{})

	joinOnly, _, err := a.Issuer.Issue(time.Now().Add(time.Hour), []string{credential.PermAllowJoin})
	if err != nil {
		t.Fatal(err)
	}
	if w := do(r, http.MethodPost, "/v2/rooms", joinOnly, nil); w.Code != http.StatusForbidden {
		t.Fatalf("join-only status = %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/v2/rooms", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage status = %d", w.Code)
	}

	expired := rendezvous.NewIssuer("signing", 0)
	tok, _, err := expired.Issue(time.Now().Add(time.Second), []string{credential.PermAllowMod})
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(1100 * time.Millisecond)
	w := do(r, http.MethodPost, "/v2/rooms", tok, nil)
	var m MessageResponse
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if w.Code != http.StatusUnauthorized || m.Message != "token expired" {
		t.Fatalf("expired = %d %q", w.Code, m.Message)
	}
}

func TestVideoToken(t *testing.T) {
	r, _ := newTestAPI(stubTokens{})
	w := do(r, http.MethodPost, "/api/video-token", "", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"token":"tok"`)) {
		t.Fatalf("ok = %d %s", w.Code, w.Body)
	}

	r, _ = newTestAPI(stubTokens{err: errors.New("upstream down")})
	w = do(r, http.MethodGet, "/api/video-token", "", nil)
	if w.Code != http.StatusInternalServerError || !bytes.Contains(w.Body.Bytes(), []byte("upstream down")) {
		t.Fatalf("err = %d %s", w.Code, w.Body)
	}
}

func TestSessionDetails(t *testing.T) {
	r, a := newTestAPI(stubTokens{})
	a.Catalog.Put(domain.SessionDetails{ID: "s-1", Title: "Intake", CoachName: "Lee", DurationMinutes: 45})

	w := do(r, http.MethodGet, "/api/sessions/s-1", "", nil)
	var d domain.SessionDetails
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil || d.Title != "Intake" || d.DurationMinutes != 45 {
		t.Fatalf("details = %s: %v", w.Body, err)
	}

	w = do(r, http.MethodGet, "/api/sessions/unknown", "", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &d); err != nil || d.DurationMinutes != 60 || d.ID != "unknown" {
		t.Fatalf("default details = %s: %v", w.Body, err)
	}
}

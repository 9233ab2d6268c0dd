package room

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func validCred(scope ...domain.Permission) *domain.Credential {
	return &domain.Credential{
		Value:     "tok",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		Scope:     append(domain.Scope{domain.PermJoin}, scope...),
	}
}

func roomCode(t *testing.T, err error) core.RoomErrorCode {
	t.Helper()
	var re *core.RoomError
	if !errors.As(err, &re) {
		t.Fatalf("error %v is not a RoomError", err)
	}
	return re.Code
}

func TestJoinExistingIsLocal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	r := NewResolver(Options{Endpoint: srv.URL, Now: func() time.Time { return now }})
	room, err := r.Resolve(context.Background(), "s1", validCred(), JoinExisting("room-42"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if room.ID != "room-42" || room.Mode != domain.RoomJoined {
		t.Errorf("room = %+v", room)
	}
	if calls.Load() != 0 {
		t.Errorf("network calls = %d, want 0", calls.Load())
	}
}

func TestCreateNew(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "tok" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"roomId": "abcd-efgh-ijkl"})
	}))
	defer srv.Close()

	r := NewResolver(Options{Endpoint: srv.URL, Now: func() time.Time { return now }})
	first, err := r.Resolve(context.Background(), "s1", validCred(domain.PermCreate), CreateNew())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first.ID != "abcd-efgh-ijkl" || first.Mode != domain.RoomCreated {
		t.Errorf("room = %+v", first)
	}

	second, err := r.Resolve(context.Background(), "s1", validCred(domain.PermCreate), CreateNew())
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("each resolve must produce a fresh Room value")
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]string
		cred   *domain.Credential
		want   core.RoomErrorCode
	}{
		{"expired credential", 200, nil, &domain.Credential{Value: "t", ExpiresAt: now.Add(-time.Second)}, core.RoomCredentialExpired},
		{"missing create scope", 200, nil, validCred(), core.RoomCreationRejected},
		{"forbidden", 403, map[string]string{"message": "allow_mod required"}, validCred(domain.PermCreate), core.RoomCreationRejected},
		{"not found", 404, nil, validCred(domain.PermCreate), core.RoomNotFound},
		{"server error", 503, nil, validCred(domain.PermCreate), core.RoomUnavailable},
		{"empty id", 200, map[string]string{}, validCred(domain.PermCreate), core.RoomCreationRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != nil {
					_ = json.NewEncoder(w).Encode(tt.body)
				}
			}))
			defer srv.Close()

			r := NewResolver(Options{Endpoint: srv.URL, Now: func() time.Time { return now }})
			_, err := r.Resolve(context.Background(), "s1", tt.cred, CreateNew())
			if got := roomCode(t, err); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFallbackOnlyForTransient(t *testing.T) {
	r := NewResolver(Options{Now: func() time.Time { return now }})

	room, err := r.Fallback("s1", &core.RoomError{Code: core.RoomUnavailable})
	if err != nil {
		t.Fatalf("Fallback: %v", err)
	}
	if room.Mode != domain.RoomTest {
		t.Errorf("mode = %s", room.Mode)
	}
	want := domain.RoomID("test-meeting-s1-" + "1772359200000")
	if room.ID != want {
		t.Errorf("id = %s, want %s", room.ID, want)
	}

	rejected := &core.RoomError{Code: core.RoomCreationRejected}
	if _, err := r.Fallback("s1", rejected); !errors.Is(err, rejected) {
		t.Errorf("hard error must pass through, got %v", err)
	}
}

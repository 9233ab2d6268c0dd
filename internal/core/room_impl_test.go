package core

import (
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Consult/internal/domain"
)

type stubConn struct {
	sent [][]byte
	full bool
}

func (c *stubConn) TrySend(f Frame) error {
	if c.full {
		return ErrBackpressure
	}
	c.sent = append(c.sent, f)
	return nil
}

func (c *stubConn) Close() {}

func newTestRoom() RoomService {
	return NewRoomService(domain.NewRoom("room-42", domain.RoomCreated, time.Now()))
}

func TestRoomMembersInJoinOrder(t *testing.T) {
	r := newTestRoom()
	for _, sid := range []SessionID{"s1", "s2", "s3"} {
		pid := r.NextParticipantID(domain.RoleClient, sid)
		r.AddMember(Member{SID: sid, Participant: domain.Participant{ID: pid}, Signal: &stubConn{}})
	}
	if _, ok := r.RemoveMember("s2"); !ok {
		t.Fatal("remove s2")
	}

	got := r.MembersSnapshot()
	if len(got) != 2 || got[0].ID != "client" || got[1].ID != "client-s3" {
		t.Fatalf("members = %+v", got)
	}
	if _, ok := r.RemoveMember("s2"); ok {
		t.Fatal("second remove reported success")
	}
}

func TestRoomNextParticipantID(t *testing.T) {
	r := newTestRoom()
	if id := r.NextParticipantID(domain.RoleCoach, "abcdef123456"); id != "coach" {
		t.Fatalf("id = %s", id)
	}
	r.AddMember(Member{SID: "abcdef123456", Participant: domain.Participant{ID: "coach"}, Signal: &stubConn{}})
	if id := r.NextParticipantID(domain.RoleCoach, "0123456789ab"); id != "coach-01234567" {
		t.Fatalf("id = %s", id)
	}
	if id := r.NextParticipantID(domain.RoleClient, "0123456789ab"); id != "client" {
		t.Fatalf("id = %s", id)
	}
}

func TestRoomUpdateMediaAndLookup(t *testing.T) {
	r := newTestRoom()
	r.AddMember(Member{SID: "s1", Participant: domain.Participant{ID: "coach", MicEnabled: true}, Signal: &stubConn{}})

	p, ok := r.UpdateMedia("s1", false, true)
	if !ok || p.MicEnabled || !p.WebcamEnabled {
		t.Fatalf("UpdateMedia = %+v, %v", p, ok)
	}
	m, ok := r.MemberByParticipant("coach")
	if !ok || m.SID != "s1" || !m.Participant.WebcamEnabled {
		t.Fatalf("MemberByParticipant = %+v, %v", m, ok)
	}
	if _, ok := r.UpdateMedia("nobody", true, true); ok {
		t.Fatal("update of unknown member succeeded")
	}
}

func TestRoomBroadcastReportsDropped(t *testing.T) {
	r := newTestRoom()
	from, ok1, slow := &stubConn{}, &stubConn{}, &stubConn{full: true}
	r.AddMember(Member{SID: "from", Participant: domain.Participant{ID: "a"}, Signal: from})
	r.AddMember(Member{SID: "ok", Participant: domain.Participant{ID: "b"}, Signal: ok1})
	r.AddMember(Member{SID: "slow", Participant: domain.Participant{ID: "c"}, Signal: slow})

	res := r.Broadcast("from", Frame(`{"type":"ping"}`))
	if res.SendTo != 1 || len(res.Dropped) != 1 || res.Dropped[0] != "slow" {
		t.Fatalf("result = %+v", res)
	}
	if len(from.sent) != 0 || len(ok1.sent) != 1 {
		t.Fatalf("from=%d ok=%d", len(from.sent), len(ok1.sent))
	}
	if err := slow.TrySend(nil); !errors.Is(err, ErrBackpressure) {
		t.Fatal("stub not full")
	}
}

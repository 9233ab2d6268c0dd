package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Consult/internal/adapters/render"
	"github.com/dkeye/Consult/internal/adapters/share"
	"github.com/dkeye/Consult/internal/app/session"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

const levelEvery = 500 * time.Millisecond

type terminal struct {
	out       io.Writer
	ctrl      *session.Controller
	surfaces  *render.Factory
	req       session.Request
	shareBase string

	mu sync.Mutex
}

func (t *terminal) println(a ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, a...)
}

func (t *terminal) printf(format string, a ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, a...)
}

func (t *terminal) printDetails(d domain.SessionDetails) {
	t.printf("%s\n  coach:  %s\n  client: %s\n  when:   %s (%d min)\n",
		d.Title, d.CoachName, d.ClientName, d.ScheduledTime.Local().Format(time.RFC1123), d.DurationMinutes)
}

// notices prints controller notices and stops the program once a session
// that was started has ended.
func (t *terminal) notices(ctx context.Context, stop context.CancelFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-t.ctrl.Notices():
			switch n := n.(type) {
			case session.StateChanged:
				t.onState(n)
				if n.To == core.StateEnded {
					stop()
				}
			case session.Warning:
				t.println("warning:", describe(n.Err))
			case session.RosterChanged:
				t.printRoster(n.Participants)
			}
		}
	}
}

func (t *terminal) onState(n session.StateChanged) {
	t.printf("[%s]\n", n.To)
	switch n.To {
	case core.StateInSession:
		if n.Room != nil {
			t.printf("room: %s\n", n.Room.ID)
			if t.req.Mode == session.ModeTest {
				t.printShare(n.Room)
			}
		}
		t.println("keys: m mic, v camera, s stats, q leave")
	case core.StateFailed:
		t.println("failed:", describe(n.Err))
		t.println("press r to retry or q to quit")
	}
}

func (t *terminal) printShare(r *domain.Room) {
	if r.Mode == domain.RoomTest {
		t.println("this is a local fallback room; nobody else can join it")
		return
	}
	link, err := share.Link(t.shareBase, r.ID)
	if err != nil {
		log.Warn().Err(err).Str("module", "videotest").Msg("share link")
		return
	}
	t.println("share:", link)
	t.mu.Lock()
	msg, _ := share.Clipboard{Out: t.out}.Copy("Meeting link", link)
	fmt.Fprintln(t.out)
	t.mu.Unlock()
	t.println(msg)
}

func (t *terminal) printRoster(ps []domain.Participant) {
	var b strings.Builder
	b.WriteString("participants:\n")
	for _, p := range ps {
		you := ""
		if p.IsLocal {
			you = " (you)"
		}
		fmt.Fprintf(&b, "  %-12s %-6s mic:%-3s cam:%-3s%s\n", p.DisplayName, p.Role, onOff(p.MicEnabled), onOff(p.WebcamEnabled), you)
	}
	t.printf("%s", b.String())
}

func (t *terminal) printStats() {
	active := t.surfaces.Active()
	if len(active) == 0 {
		t.println("no media attached")
		return
	}
	for _, s := range active {
		t.printf("  %-12s %-5s %-7s packets=%d bytes=%d\n", s.ParticipantID, s.Kind, s.State, s.Stats.Packets, s.Stats.Bytes)
	}
}

// levels prints a level bar at most every levelEvery.
func (t *terminal) levels(ctx context.Context) error {
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-t.ctrl.Levels():
			if s.Timestamp.Sub(last) < levelEvery {
				continue
			}
			last = s.Timestamp
			t.printf("level %s\n", bar(s.Level))
		}
	}
}

func (t *terminal) key(k byte, stop context.CancelFunc) {
	var err error
	switch k {
	case 'm':
		err = t.ctrl.ToggleMic()
	case 'v':
		err = t.ctrl.ToggleWebcam()
	case 's':
		t.printStats()
	case 'r':
		err = t.ctrl.Start(t.req)
	case 'q':
		if st := t.ctrl.State(); st == core.StateIdle || st.Terminal() {
			stop()
			return
		}
		err = t.ctrl.Leave()
	default:
		return
	}
	if err != nil {
		t.println("error:", describe(err))
	}
}

// readKeys forwards key presses until r ends or done is closed.
func readKeys(done <-chan struct{}, r io.Reader, keys chan<- byte) {
	defer close(keys)
	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		if b == '\n' || b == '\r' || b == ' ' {
			continue
		}
		select {
		case keys <- b:
		case <-done:
			return
		}
	}
}

func describe(err error) string {
	if err == nil {
		return "unknown error"
	}
	var de *core.DeviceError
	if errors.As(err, &de) && de.Guidance != "" {
		return de.Guidance
	}
	if errors.Is(err, core.ErrInvalidState) {
		return "not available right now"
	}
	return err.Error()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func bar(level float64) string {
	n := int(level / 5)
	return fmt.Sprintf("%-20s %3.0f", strings.Repeat("#", n), level)
}

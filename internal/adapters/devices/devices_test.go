package devices

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Consult/internal/app/audio"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

func TestProber(t *testing.T) {
	ctx := context.Background()

	p := NewProber(Config{Camera: true, Microphone: true, Permission: true})
	list, err := p.Enumerate(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("Enumerate = %v, %v", list, err)
	}
	l, err := p.Request(ctx, []domain.TrackKind{domain.TrackAudio})
	if err != nil || l == nil {
		t.Fatalf("Request = %v, %v", l, err)
	}
	l.Release()

	denied := NewProber(Config{Microphone: true})
	if _, err := denied.Request(ctx, []domain.TrackKind{domain.TrackAudio}); !errors.Is(err, core.ErrPermissionDenied) {
		t.Fatalf("Request err = %v", err)
	}
	if list, _ := NewProber(Config{}).Enumerate(ctx); len(list) != 0 {
		t.Fatalf("no devices listed %v", list)
	}
}

func TestCaptureTone(t *testing.T) {
	c := NewCapture(Config{Microphone: true, Permission: true, ToneHz: 1000})
	h, err := c.Open(context.Background(), domain.TrackAudio)
	if err != nil {
		t.Fatal(err)
	}
	src, ok := h.(core.PCMSource)
	if !ok {
		t.Fatal("microphone is not a PCM source")
	}

	buf := make([]float32, audio.FrameSize)
	a := audio.NewAnalyzer()
	var level float64
	for range 10 {
		if _, err := src.ReadPCM(buf); err != nil {
			t.Fatal(err)
		}
		level = a.Level(buf)
	}
	if level <= 0 {
		t.Fatalf("tone level = %v", level)
	}

	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	_ = h.Close()
	if _, err := src.ReadPCM(buf); !errors.Is(err, core.ErrSourceClosed) {
		t.Fatalf("read after close = %v", err)
	}
}

func TestCaptureSilence(t *testing.T) {
	h, err := NewCapture(Config{Microphone: true, Permission: true}).Open(context.Background(), domain.TrackAudio)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	buf := make([]float32, audio.FrameSize)
	_, _ = h.(core.PCMSource).ReadPCM(buf)
	if got := audio.NewAnalyzer().Level(buf); got != 0 {
		t.Fatalf("silence level = %v", got)
	}
}

func TestCaptureMissingDevice(t *testing.T) {
	c := NewCapture(Config{Microphone: true, Permission: true})
	if _, err := c.Open(context.Background(), domain.TrackVideo); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("camera err = %v", err)
	}
	v, err := NewCapture(Config{Camera: true, Permission: true}).Open(context.Background(), domain.TrackVideo)
	if err != nil || v.Kind() != domain.TrackVideo {
		t.Fatalf("camera = %v, %v", v, err)
	}
	_ = v.Close()
}

package main

import (
	"strings"
	"testing"
	"time"
)

func TestReadKeysSkipsBlanks(t *testing.T) {
	keys := make(chan byte, 8)
	readKeys(make(chan struct{}), strings.NewReader("m \nv\r\nq"), keys)

	var got []byte
	for k := range keys {
		got = append(got, k)
	}
	if string(got) != "mvq" {
		t.Fatalf("keys = %q, want %q", got, "mvq")
	}
}

func TestReadKeysStopsWhenDone(t *testing.T) {
	done := make(chan struct{})
	keys := make(chan byte)
	finished := make(chan struct{})
	go func() {
		readKeys(done, strings.NewReader("mmmm"), keys)
		close(finished)
	}()

	if k := <-keys; k != 'm' {
		t.Fatalf("key = %q", k)
	}
	close(done)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("readKeys blocked after done")
	}
	if _, ok := <-keys; ok {
		t.Fatal("keys not closed")
	}
}

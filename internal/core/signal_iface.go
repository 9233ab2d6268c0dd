package core

// SessionID identifies one signaling connection on the rendezvous server.
type SessionID string

// Frame is a raw signaling payload.
type Frame []byte

// SignalConnection abstracts the signaling transport of one session.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend never blocks; it fails with ErrBackpressure when the peer is slow.
	TrySend(Frame) error
	Close()
}

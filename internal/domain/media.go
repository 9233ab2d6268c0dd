package domain

import "time"

type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// AudioLevelSample is one loudness reading, never persisted.
type AudioLevelSample struct {
	ParticipantID ParticipantID
	Level         float64 // 0..100
	Timestamp     time.Time
}

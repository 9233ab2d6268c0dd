package domain

import "time"

// SessionDetails describes a scheduled appointment. Read-only for the media core.
type SessionDetails struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	CoachName       string    `json:"coachName"`
	ClientName      string    `json:"clientName"`
	ScheduledTime   time.Time `json:"scheduledTime"`
	DurationMinutes int       `json:"duration"`
}

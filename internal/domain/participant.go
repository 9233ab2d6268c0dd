// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxParticipantIDLen = 36
	MaxDisplayNameLen   = 36
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrUnknownRole        = errors.New("unknown role")
)

type ParticipantID string

type Role string

const (
	RoleCoach  Role = "coach"
	RoleClient Role = "client"
)

// ParseRole accepts the wire names of a role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCoach:
		return RoleCoach, nil
	case RoleClient:
		return RoleClient, nil
	}
	return "", ErrUnknownRole
}

// Participant is one party present in a room.
// Owned by the roster; no transport or lifecycle logic here.
type Participant struct {
	ID            ParticipantID `json:"id"`
	DisplayName   string        `json:"username"`
	Role          Role          `json:"role"`
	IsLocal       bool          `json:"-"`
	MicEnabled    bool          `json:"mic"`
	WebcamEnabled bool          `json:"webcam"`
}

func ValidateDisplayName(name string) error {
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	return nil
}

// SetDisplayName keeps the name within the length the signaling server accepts.
func (p *Participant) SetDisplayName(name string) error {
	if err := ValidateDisplayName(name); err != nil {
		return err
	}
	p.DisplayName = name
	return nil
}

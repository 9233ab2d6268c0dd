package domain

import (
	"slices"
	"time"
)

type Permission string

const (
	PermJoin   Permission = "join"
	PermCreate Permission = "create"
)

// Scope is the set of room operations a credential authorizes.
type Scope []Permission

func (s Scope) Has(p Permission) bool { return slices.Contains(s, p) }

// Credential is a short-lived access token.
type Credential struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Scope     Scope
}

// Expired reports whether the credential must no longer be used at now.
func (c *Credential) Expired(now time.Time) bool {
	return c == nil || !now.Before(c.ExpiresAt)
}

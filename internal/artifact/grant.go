package artifact

import "time"

// Permission is an access mode carried by a grant.
type Permission string

// PermissionRead is the only permission grants carry; instances fetch
// payloads, they never write them.
const PermissionRead Permission = "read"

// Grant is a time-scoped authorization to fetch one payload.
type Grant struct {
	PayloadID   string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Permissions []Permission
	ResourceURI string
}

// Expired reports whether the grant is no longer valid at the given time.
// A grant is valid up to but not including its expiry instant.
func (g *Grant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

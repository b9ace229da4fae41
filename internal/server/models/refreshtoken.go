// Package models defines server-side data models persisted by the stores.
package models

import "time"

// RefreshToken is a persisted refresh-token record. Token holds the opaque
// signed string; stores key the record by a digest of it.
type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the record is no longer redeemable at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

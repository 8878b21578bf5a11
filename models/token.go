package models

import "time"

// Token is a short-lived session credential bound to a user.
type Token struct {
	ID      string `json:"id"`
	Phone   string `json:"phone"`
	Expires int64  `json:"expires"` // milliseconds since epoch
}

// ExpiredAt reports whether the token is no longer valid at the given time.
func (t *Token) ExpiredAt(now time.Time) bool {
	return t.Expires <= now.UnixMilli()
}

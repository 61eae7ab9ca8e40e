package domain

import "time"

// Session is the server-side view of a signed session token.
type Session struct {
	ID        string    `json:"-"`
	UserID    string    `json:"-"`
	Username  string    `json:"-"`
	Role      Role      `json:"-"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Can reports whether the session's role grants c.
func (s *Session) Can(c Capability) bool {
	if s == nil {
		return false
	}
	return Can(s.Role, c)
}

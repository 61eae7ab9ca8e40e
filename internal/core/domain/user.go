package domain

import "time"

// Role is a forum member's role. Premium access is never derived from it.
type Role string

const (
	RoleMember    Role = "member"
	RoleVIP       Role = "vip"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleVIP, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// LegacyPasswordSentinel marks accounts imported from the previous forum whose
// only usable credential is the legacy HMAC digest.
const LegacyPasswordSentinel = "!migrated-needs-reset"

// User models a forum member.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	DisplayName  string    `json:"display_name,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Location     string    `json:"location,omitempty"`
	Signature    string    `json:"signature,omitempty"`
	Reputation   int       `json:"reputation"`
	PostCount    int       `json:"post_count"`
	Banned       bool      `json:"banned"`
	LegacyKey    string    `json:"-"`
	LegacyDigest string    `json:"-"`
	JoinedAt     time.Time `json:"joined_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasLegacyCredentials reports whether both halves of the legacy digest are present.
func (u *User) HasLegacyCredentials() bool {
	return u.LegacyKey != "" && u.LegacyDigest != ""
}

// ProfileUpdate holds the editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	Location    *string
	Signature   *string
	Email       *string
}

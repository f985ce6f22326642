package session

import (
	"time"

	"github.com/samber/lo"
)

// User is the authenticated player's profile as returned by /api/auth/me/
type User struct {
	ID                  int64  `json:"id"`
	Email               string `json:"email"`
	MpesaNumber         string `json:"mpesa_number"`
	DateJoined          string `json:"date_joined,omitempty"`
	IsStaff             bool   `json:"is_staff"`
	IsSuperuser         bool   `json:"is_superuser"`
	ReferralCode        string `json:"referral_code,omitempty"`
	ForcePasswordChange bool   `json:"force_password_change"`
}

// Tokens is the bearer credential pair issued by the server
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// persisted is the JSON document stored under the storage key
type persisted struct {
	User   *User   `json:"user"`
	Tokens *Tokens `json:"tokens"`
}

// RegisterPayload is the sign-up form
type RegisterPayload struct {
	Email        string `json:"email"`
	MpesaNumber  string `json:"mpesa_number"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code,omitempty"`
}

type registerResponse struct {
	User    User   `json:"user"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// session is the live credential. It never leaves the package: other
// components only see Snapshot and the Request capability.
type session struct {
	user            User
	tokens          Tokens
	ageVerified     bool
	accessExpiresAt time.Time
}

func (s *session) expired(now time.Time) bool {
	return !s.accessExpiresAt.IsZero() && !now.Before(s.accessExpiresAt)
}

// Snapshot is the plain state handed to the rendering layer
type Snapshot struct {
	User            *User     `json:"user"`
	AgeVerified     bool      `json:"age_verified"`
	Loading         bool      `json:"loading"`
	AccessExpiresAt time.Time `json:"access_expires_at,omitempty"`
}

// LoggedIn reports whether the snapshot carries a session
func (s Snapshot) LoggedIn() bool {
	return s.User != nil
}

// Activity is a user input event that proves the player is present
type Activity string

const (
	ActivityPointerMove Activity = "pointer_move"
	ActivityKeyPress    Activity = "key_press"
	ActivityTouch       Activity = "touch"
	ActivityClick       Activity = "click"
)

var qualifyingActivities = []Activity{
	ActivityPointerMove,
	ActivityKeyPress,
	ActivityTouch,
	ActivityClick,
}

func (a Activity) qualifies() bool {
	return lo.Contains(qualifyingActivities, a)
}

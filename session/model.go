package session

import "time"

// Session is the client's record of an authenticated principal and its
// access token. At most one Session is live per client; the session manager
// in the root package is its sole writer.
type Session struct {
	SchemaVersion int

	AccessToken string

	AccountID int
	Username  string
	BirderID  int

	// Unix seconds. ExpiresAt zero means the token carried no expiry and
	// stays valid until the server rejects it.
	IssuedAt  int64
	ExpiresAt int64
}

// Expired reports whether the session's token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return s.ExpiresAt != 0 && now.Unix() >= s.ExpiresAt
}

// Expiry returns the expiry as a time.Time, zero when the token never
// self-expires.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

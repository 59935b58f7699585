package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is stamped on every encoded session. Decoding a
// higher version fails rather than guessing at fields written by a newer
// client.
const CurrentSchemaVersion = 1

// ErrSchemaVersion is returned when a stored session was written by a newer
// schema than this client understands.
var ErrSchemaVersion = errors.New("unsupported session schema version")

type encodedSession struct {
	SchemaVersion int    `json:"v"`
	AccessToken   string `json:"access_token"`
	AccountID     int    `json:"account_id,omitempty"`
	Username      string `json:"username"`
	BirderID      int    `json:"birder_id"`
	IssuedAt      int64  `json:"issued_at"`
	ExpiresAt     int64  `json:"expires_at,omitempty"`
}

// Encode serializes a session for durable storage.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.AccessToken == "" {
		return nil, errors.New("session has no access token")
	}
	return json.Marshal(encodedSession{
		SchemaVersion: CurrentSchemaVersion,
		AccessToken:   s.AccessToken,
		AccountID:     s.AccountID,
		Username:      s.Username,
		BirderID:      s.BirderID,
		IssuedAt:      s.IssuedAt,
		ExpiresAt:     s.ExpiresAt,
	})
}

// Decode deserializes a stored session.
func Decode(data []byte) (*Session, error) {
	var enc encodedSession
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if enc.SchemaVersion < 1 || enc.SchemaVersion > CurrentSchemaVersion {
		return nil, ErrSchemaVersion
	}
	if enc.AccessToken == "" {
		return nil, errors.New("decode session: missing access token")
	}
	return &Session{
		SchemaVersion: enc.SchemaVersion,
		AccessToken:   enc.AccessToken,
		AccountID:     enc.AccountID,
		Username:      enc.Username,
		BirderID:      enc.BirderID,
		IssuedAt:      enc.IssuedAt,
		ExpiresAt:     enc.ExpiresAt,
	}, nil
}

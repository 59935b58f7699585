package session

import (
	"context"
	"errors"
)

// ErrNoSession is returned by [Store.Load] when no session is stored.
// Absence of a stored session means "unauthenticated".
var ErrNoSession = errors.New("no stored session")

// ErrStorageUnavailable wraps backend failures (unreadable file, Redis
// down). Callers treat it the same way they treat a network failure: report
// it, never retry silently.
var ErrStorageUnavailable = errors.New("session storage unavailable")

// Store is durable client-side storage for the single live session plus an
// app-version marker. The version marker is the coarse cache-busting
// safeguard: when it disagrees with the running app version at startup, the
// whole store is wiped before anything is read from it.
//
// The session manager is the sole writer; implementations only need to
// tolerate concurrent reads against one writer.
type Store interface {
	// Load returns the stored session, or ErrNoSession.
	Load(ctx context.Context) (*Session, error)
	// Save replaces the stored session.
	Save(ctx context.Context, s *Session) error
	// Clear removes the stored session, keeping the version marker.
	// Clearing an empty store is not an error.
	Clear(ctx context.Context) error
	// AppVersion returns the stored version marker, "" when unset.
	AppVersion(ctx context.Context) (string, error)
	// SetAppVersion replaces the version marker.
	SetAppVersion(ctx context.Context, version string) error
	// Wipe removes everything, session and version marker together.
	Wipe(ctx context.Context) error
}

// Prepare wipes the store iff its version marker disagrees with version,
// then records version. It returns true when a wipe happened. Run it before
// the first Load.
func Prepare(ctx context.Context, store Store, version string) (wiped bool, err error) {
	stored, err := store.AppVersion(ctx)
	if err != nil {
		return false, err
	}
	if stored == version {
		return false, nil
	}
	if err := store.Wipe(ctx); err != nil {
		return false, err
	}
	if err := store.SetAppVersion(ctx, version); err != nil {
		return true, err
	}
	return true, nil
}

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisStore(rdb, "avestest"), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	want := testSession(time.Now().Add(time.Hour).Unix())
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if *got != *want {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, want)
	}
}

func TestRedisStoreLoadEmpty(t *testing.T) {
	store, _ := newTestRedisStore(t)
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestRedisStoreSessionKeyExpiresWithToken(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	if err := store.Save(ctx, testSession(time.Now().Add(time.Minute).Unix())); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected expired session gone, got %v", err)
	}
}

func TestRedisStoreRejectsExpiredSession(t *testing.T) {
	store, _ := newTestRedisStore(t)
	err := store.Save(context.Background(), testSession(time.Now().Add(-time.Minute).Unix()))
	if err == nil {
		t.Fatal("expected error saving an already-expired session")
	}
}

func TestRedisStoreWipe(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	if err := store.SetAppVersion(ctx, "1.0"); err != nil {
		t.Fatalf("set version failed: %v", err)
	}
	if err := store.Save(ctx, testSession(0)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Wipe(ctx); err != nil {
		t.Fatalf("wipe failed: %v", err)
	}

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected empty store, got %v", err)
	}
	version, err := store.AppVersion(ctx)
	if err != nil || version != "" {
		t.Fatalf("expected no version marker, got %q err %v", version, err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if err := store.Save(context.Background(), testSession(0)); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestRedisStoreSharedBetweenClients(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	if err := store.Save(ctx, testSession(0)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// A second worker pointed at the same prefix sees the session the
	// first one established.
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	other := NewRedisStore(rdb, "avestest")
	got, err := other.Load(ctx)
	if err != nil {
		t.Fatalf("load from second store failed: %v", err)
	}
	if got.Username != "alice" {
		t.Fatalf("unexpected session %+v", got)
	}
}

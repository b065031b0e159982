package credstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyMedium struct {
	inner      Medium
	failWrites bool
}

func (m *flakyMedium) Write(ctx context.Context, key string, data []byte) error {
	if m.failWrites {
		return errors.New("disk full")
	}
	return m.inner.Write(ctx, key, data)
}

func (m *flakyMedium) Read(ctx context.Context, key string) ([]byte, error) {
	return m.inner.Read(ctx, key)
}

func (m *flakyMedium) Erase(ctx context.Context, keys ...string) error {
	return m.inner.Erase(ctx, keys...)
}

func newTestStore(t *testing.T) (*Store, *MemoryMedium) {
	t.Helper()
	medium := NewMemoryMedium()
	return NewStore(medium, Base64Cipher{}, 0, nil), medium
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	pair := TokenPair{AccessToken: "at-1", RefreshToken: "rt-1", IssuedAt: time.Now().Unix()}
	if err := store.Save(ctx, pair); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a stored pair")
	}
	if got != pair {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, pair)
	}
}

func TestStoreRejectsEmptyAccessToken(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Save(context.Background(), TokenPair{RefreshToken: "rt"}); !errors.Is(err, ErrEmptyAccessToken) {
		t.Fatalf("expected ErrEmptyAccessToken, got %v", err)
	}
}

func TestStoreLoadAbsent(t *testing.T) {
	store, _ := newTestStore(t)
	_, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Fatal("expected no stored pair")
	}
}

func TestStoreStalenessEvictsAndErases(t *testing.T) {
	ctx := context.Background()
	store, medium := newTestStore(t)

	now := time.Now()
	store.now = func() time.Time { return now }
	if err := store.Save(ctx, TokenPair{AccessToken: "at"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	store.now = func() time.Time { return now.Add(DefaultStalenessCeiling + time.Minute) }
	_, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Fatal("expected stale pair to be reported absent")
	}

	// The underlying record must have been erased as a side effect.
	if _, err := medium.Read(ctx, CredentialKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected stale record erased, read returned %v", err)
	}
}

func TestStoreCorruptRecordEvicted(t *testing.T) {
	ctx := context.Background()
	store, medium := newTestStore(t)

	if err := medium.Write(ctx, CredentialKey, []byte("not a sealed record")); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	_, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Fatal("expected corrupt record to be reported absent")
	}
	if _, err := medium.Read(ctx, CredentialKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected corrupt record erased, read returned %v", err)
	}
}

func TestStoreDegradesToMemoryOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyMedium{inner: NewMemoryMedium(), failWrites: true}
	store := NewStore(flaky, Base64Cipher{}, 0, nil)

	pair := TokenPair{AccessToken: "at-degraded", IssuedAt: 42}
	err := store.Save(ctx, pair)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if !store.Degraded() {
		t.Fatal("expected store to be degraded")
	}

	// The pair survives in the memory holder for the process lifetime.
	got, ok, loadErr := store.Load(ctx)
	if loadErr != nil || !ok {
		t.Fatalf("Load after degradation: ok=%v err=%v", ok, loadErr)
	}
	if got != pair {
		t.Fatalf("memory fallback mismatch: got %+v want %+v", got, pair)
	}

	// Once degraded, saves stay in memory even if the medium recovers.
	flaky.failWrites = false
	if err := store.Save(ctx, TokenPair{AccessToken: "at-2"}); err != nil {
		t.Fatalf("degraded Save failed: %v", err)
	}
	if _, err := flaky.inner.Read(ctx, CredentialKey); !errors.Is(err, ErrNotFound) {
		t.Fatal("expected degraded save to bypass the medium")
	}
}

func TestStoreClearErasesMediumAfterDegradation(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyMedium{inner: NewMemoryMedium()}
	store := NewStore(flaky, Base64Cipher{}, 0, nil)

	// First save reaches the medium; the second degrades the store.
	if err := store.Save(ctx, TokenPair{AccessToken: "at-1", RefreshToken: "rt-1", IssuedAt: 1}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	flaky.failWrites = true
	if err := store.Save(ctx, TokenPair{AccessToken: "at-2", IssuedAt: 2}); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	store.Clear(ctx)

	// The record persisted before degradation must not survive the clear:
	// a fresh store over the same medium sees nothing.
	restarted := NewStore(flaky.inner, Base64Cipher{}, 0, nil)
	if got, ok, err := restarted.Load(ctx); ok || err != nil {
		t.Fatalf("cleared credentials resurrected after restart: ok=%v pair=%+v err=%v", ok, got, err)
	}
}

func TestStoreClearIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	// Clear on an empty store is a no-op.
	store.Clear(ctx)

	if err := store.Save(ctx, TokenPair{AccessToken: "at"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.SaveProfile(ctx, []byte(`{"email":"a@b.c"}`)); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	store.Clear(ctx)
	store.Clear(ctx)

	if _, ok, _ := store.Load(ctx); ok {
		t.Fatal("expected credentials cleared")
	}
	if _, ok, _ := store.LoadProfile(ctx); ok {
		t.Fatal("expected profile cleared")
	}
}

func TestStoreIssuedAtMonotonic(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.Save(ctx, TokenPair{AccessToken: "a", IssuedAt: 100}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, TokenPair{AccessToken: "b", IssuedAt: 50}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.IssuedAt < 100 {
		t.Fatalf("IssuedAt regressed: %d", got.IssuedAt)
	}
}

func TestStoreProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	profile := []byte(`{"id":"u1","email":"a@b.c"}`)
	if err := store.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	got, ok, err := store.LoadProfile(ctx)
	if err != nil || !ok {
		t.Fatalf("LoadProfile: ok=%v err=%v", ok, err)
	}
	if string(got) != string(profile) {
		t.Fatalf("profile mismatch: got %s", got)
	}
}

func TestStoreFileMedium(t *testing.T) {
	ctx := context.Background()
	medium, err := NewFileMedium(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileMedium failed: %v", err)
	}
	store := NewStore(medium, Base64Cipher{}, 0, nil)

	pair := TokenPair{AccessToken: "file-at", RefreshToken: "file-rt", IssuedAt: 7}
	if err := store.Save(ctx, pair); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got != pair {
		t.Fatalf("file round trip mismatch: got %+v", got)
	}
}

package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authsdk/credstore"
)

func newSeededStore(t *testing.T, pair credstore.TokenPair) *credstore.Store {
	t.Helper()
	store := credstore.NewStore(credstore.NewMemoryMedium(), nil, 0, nil)
	if err := store.Save(context.Background(), pair); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	return store
}

func TestRefreshSingleFlight(t *testing.T) {
	store := newSeededStore(t, credstore.TokenPair{AccessToken: "old", RefreshToken: "r1"})

	var calls atomic.Int64
	coord := NewCoordinator(Config{
		Store: store,
		Call: func(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
			calls.Add(1)
			time.Sleep(200 * time.Millisecond)
			return credstore.TokenPair{AccessToken: "new", RefreshToken: "r2"}, nil
		},
	})

	const waiters = 16
	start := make(chan struct{})
	results := make([]credstore.TokenPair, waiters)
	errs := make([]error, waiters)

	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = coord.Refresh(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 backend exchange, got %d", got)
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d failed: %v", i, errs[i])
		}
		if results[i].AccessToken != "new" || results[i].RefreshToken != "r2" {
			t.Fatalf("waiter %d got stale pair: %+v", i, results[i])
		}
	}

	// The fresh pair was persisted.
	pair, present, err := store.Load(context.Background())
	if err != nil || !present {
		t.Fatalf("Load after refresh: present=%v err=%v", present, err)
	}
	if pair.AccessToken != "new" {
		t.Fatalf("store holds %q, want \"new\"", pair.AccessToken)
	}
}

func TestRefreshSequentialCallsExchangeAgain(t *testing.T) {
	store := newSeededStore(t, credstore.TokenPair{AccessToken: "a", RefreshToken: "r"})

	var calls atomic.Int64
	coord := NewCoordinator(Config{
		Store: store,
		Call: func(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
			n := calls.Add(1)
			if n == 1 {
				return credstore.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
			}
			return credstore.TokenPair{AccessToken: "a3", RefreshToken: "r3"}, nil
		},
	})

	if _, err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	pair, err := coord.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 exchanges, got %d", calls.Load())
	}
	if pair.AccessToken != "a3" {
		t.Fatalf("second refresh returned %q", pair.AccessToken)
	}
}

func TestRefreshRejectionTearsDownSession(t *testing.T) {
	store := newSeededStore(t, credstore.TokenPair{AccessToken: "a", RefreshToken: "r"})

	rejected := errors.New("refresh token revoked")
	coord := NewCoordinator(Config{
		Store: store,
		Call: func(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
			return credstore.TokenPair{}, rejected
		},
	})

	_, err := coord.Refresh(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if !errors.Is(err, rejected) {
		t.Fatalf("cause not preserved: %v", err)
	}

	_, present, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if present {
		t.Fatal("credentials survived a rejected refresh")
	}
}

func TestRefreshWithoutToken(t *testing.T) {
	store := credstore.NewStore(credstore.NewMemoryMedium(), nil, 0, nil)
	coord := NewCoordinator(Config{
		Store: store,
		Call: func(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
			t.Fatal("exchange should not run without a refresh token")
			return credstore.TokenPair{}, nil
		},
	})

	if _, err := coord.Refresh(context.Background()); !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
}

func TestInvalidateDiscardsInFlightResult(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t, credstore.TokenPair{AccessToken: "a", RefreshToken: "r"})

	entered := make(chan struct{})
	release := make(chan struct{})
	coord := NewCoordinator(Config{
		Store: store,
		Call: func(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
			close(entered)
			<-release
			return credstore.TokenPair{AccessToken: "fresh", RefreshToken: "r2"}, nil
		},
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := coord.Refresh(ctx)
		errCh <- err
	}()

	<-entered
	// Logout lands while the exchange is in flight.
	coord.Invalidate()
	store.Clear(ctx)
	close(release)

	if err := <-errCh; !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	_, present, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if present {
		t.Fatal("discarded refresh result was persisted")
	}
}

func TestCancelledExchangeLeavesSessionIntact(t *testing.T) {
	seeded := credstore.TokenPair{AccessToken: "old", RefreshToken: "r1"}
	store := newSeededStore(t, seeded)

	var expired atomic.Int64
	entered := make(chan struct{})
	coord := NewCoordinator(Config{
		Store: store,
		Call: func(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
			close(entered)
			<-ctx.Done()
			return credstore.TokenPair{}, ctx.Err()
		},
		OnExpired: func() { expired.Add(1) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := coord.Refresh(ctx)
		done <- err
	}()

	<-entered
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := expired.Load(); got != 0 {
		t.Fatalf("cancellation fired the expiry hook %d times", got)
	}
	pair, present, err := store.Load(context.Background())
	if err != nil || !present {
		t.Fatalf("pair gone after cancelled exchange: present=%v err=%v", present, err)
	}
	if pair != seeded {
		t.Fatalf("stored pair changed: %+v", pair)
	}
}

func TestInvalidateSuppressesRejectionTeardown(t *testing.T) {
	store := newSeededStore(t, credstore.TokenPair{AccessToken: "old", RefreshToken: "r1"})

	var expired atomic.Int64
	entered := make(chan struct{})
	release := make(chan struct{})
	coord := NewCoordinator(Config{
		Store: store,
		Call: func(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
			close(entered)
			<-release
			return credstore.TokenPair{}, errors.New("refresh token revoked")
		},
		OnExpired: func() { expired.Add(1) },
	})

	done := make(chan error, 1)
	go func() {
		_, err := coord.Refresh(context.Background())
		done <- err
	}()

	<-entered
	coord.Invalidate()
	close(release)

	if err := <-done; !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	// The session was already torn down by whoever invalidated; the late
	// rejection must not announce a second expiry.
	if got := expired.Load(); got != 0 {
		t.Fatalf("stale rejection fired the expiry hook %d times", got)
	}
}

func TestWaiterContextCancellation(t *testing.T) {
	store := newSeededStore(t, credstore.TokenPair{AccessToken: "a", RefreshToken: "r"})

	entered := make(chan struct{})
	release := make(chan struct{})
	coord := NewCoordinator(Config{
		Store: store,
		Call: func(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
			close(entered)
			<-release
			return credstore.TokenPair{AccessToken: "fresh", RefreshToken: "r2"}, nil
		},
	})

	go coord.Refresh(context.Background())
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := coord.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(release)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "u1",
	}).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return raw
}

func TestProactiveTickRenewsNearExpiry(t *testing.T) {
	ctx := context.Background()
	near := signedToken(t, time.Now().Add(4*time.Minute))
	store := newSeededStore(t, credstore.TokenPair{AccessToken: near, RefreshToken: "r"})

	var calls atomic.Int64
	coord := NewCoordinator(Config{
		Store:           store,
		ExpiryThreshold: 5 * time.Minute,
		Call: func(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
			calls.Add(1)
			return credstore.TokenPair{AccessToken: signedToken(t, time.Now().Add(time.Hour)), RefreshToken: "r2"}, nil
		},
	})

	coord.tick(ctx)
	if calls.Load() != 1 {
		t.Fatalf("expected a renewal, got %d exchanges", calls.Load())
	}

	// The renewed token is an hour out, so the next tick is a no-op.
	coord.tick(ctx)
	if calls.Load() != 1 {
		t.Fatalf("tick renewed a healthy token: %d exchanges", calls.Load())
	}
}

func TestProactiveTickIgnoresOpaqueToken(t *testing.T) {
	store := newSeededStore(t, credstore.TokenPair{AccessToken: "not-a-jwt", RefreshToken: "r"})
	coord := NewCoordinator(Config{
		Store: store,
		Call: func(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
			t.Fatal("opaque token must not trigger renewal")
			return credstore.TokenPair{}, nil
		},
	})
	coord.tick(context.Background())
}

func TestProactiveStartStop(t *testing.T) {
	near := signedToken(t, time.Now().Add(time.Minute))
	store := newSeededStore(t, credstore.TokenPair{AccessToken: near, RefreshToken: "r"})

	var calls atomic.Int64
	coord := NewCoordinator(Config{
		Store:             store,
		ProactiveInterval: 10 * time.Millisecond,
		ExpiryThreshold:   5 * time.Minute,
		Call: func(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
			calls.Add(1)
			return credstore.TokenPair{AccessToken: signedToken(t, time.Now().Add(time.Hour)), RefreshToken: "r2"}, nil
		},
	})

	coord.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("proactive loop never renewed")
		case <-time.After(5 * time.Millisecond):
		}
	}
	coord.Stop()
	coord.Stop() // idempotent
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	got, ok := tokenExpiry(signedToken(t, exp))
	if !ok {
		t.Fatal("expected expiry from a well-formed token")
	}
	if !got.Equal(exp) {
		t.Fatalf("expiry mismatch: got %v want %v", got, exp)
	}
	if _, ok := tokenExpiry("garbage"); ok {
		t.Fatal("garbage token produced an expiry")
	}
}

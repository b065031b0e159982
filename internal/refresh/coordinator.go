// Package refresh coordinates credential renewal. Concurrent callers share
// a single in-flight exchange, a failed exchange tears the session down, and
// an optional background loop renews credentials before they expire.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/authsdk/credstore"
)

var (
	// ErrNoRefreshToken means there is nothing to renew with.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrSessionExpired wraps a rejected or invalidated renewal. The local
	// session is already cleared by the time a caller sees it.
	ErrSessionExpired = errors.New("session expired")
)

const (
	DefaultProactiveInterval = time.Minute
	DefaultExpiryThreshold   = 5 * time.Minute
)

// CallFunc performs the actual token exchange against the backend.
type CallFunc func(ctx context.Context, refreshToken string) (credstore.TokenPair, error)

// Config wires a Coordinator. Store and Call are required.
type Config struct {
	Store  *credstore.Store
	Call   CallFunc
	Logger *slog.Logger

	// OnCollapse, when set, fires once for each caller that attached to an
	// exchange already in flight instead of starting its own.
	OnCollapse func()

	// OnExpired, when set, fires after a rejected exchange has cleared the
	// store, in the goroutine that ran the exchange.
	OnExpired func()

	// ProactiveInterval is how often the background loop checks the
	// access token, ExpiryThreshold how close to expiry a renewal fires.
	ProactiveInterval time.Duration
	ExpiryThreshold   time.Duration
}

// operation is one in-flight exchange. Result fields are written before done
// is closed and never after, so waiters read them without a lock.
type operation struct {
	gen  uint64
	done chan struct{}
	pair credstore.TokenPair
	err  error
}

// Coordinator serializes credential renewal. At most one exchange runs at a
// time; callers arriving during an exchange block on it and share its result.
type Coordinator struct {
	store      *credstore.Store
	call       CallFunc
	log        *slog.Logger
	interval   time.Duration
	threshold  time.Duration
	now        func() time.Time
	onCollapse func()
	onExpired  func()

	mu      sync.Mutex
	pending *operation
	gen     uint64

	cancelProactive context.CancelFunc
	proactiveDone   chan struct{}
}

func NewCoordinator(cfg Config) *Coordinator {
	c := &Coordinator{
		store:      cfg.Store,
		call:       cfg.Call,
		log:        cfg.Logger,
		interval:   cfg.ProactiveInterval,
		threshold:  cfg.ExpiryThreshold,
		now:        time.Now,
		onCollapse: cfg.OnCollapse,
		onExpired:  cfg.OnExpired,
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if c.interval <= 0 {
		c.interval = DefaultProactiveInterval
	}
	if c.threshold <= 0 {
		c.threshold = DefaultExpiryThreshold
	}
	return c
}

// Refresh renews the credential pair. If an exchange is already in flight the
// caller waits on it and receives the same result; otherwise the caller runs
// the exchange itself. ctx cancellation detaches the waiter without stopping
// the shared exchange.
func (c *Coordinator) Refresh(ctx context.Context) (credstore.TokenPair, error) {
	c.mu.Lock()
	if op := c.pending; op != nil {
		c.mu.Unlock()
		if c.onCollapse != nil {
			c.onCollapse()
		}
		select {
		case <-op.done:
			return op.pair, op.err
		case <-ctx.Done():
			return credstore.TokenPair{}, ctx.Err()
		}
	}
	op := &operation{gen: c.gen, done: make(chan struct{})}
	c.pending = op
	c.mu.Unlock()

	op.pair, op.err = c.exchange(ctx, op.gen)

	c.mu.Lock()
	close(op.done)
	c.pending = nil
	c.mu.Unlock()

	return op.pair, op.err
}

func (c *Coordinator) exchange(ctx context.Context, gen uint64) (credstore.TokenPair, error) {
	current, present, err := c.store.Load(ctx)
	if err != nil && !errors.Is(err, credstore.ErrStorage) {
		return credstore.TokenPair{}, err
	}
	if !present || current.RefreshToken == "" {
		return credstore.TokenPair{}, ErrNoRefreshToken
	}

	fresh, err := c.call(ctx, current.RefreshToken)

	// A logout that landed while the exchange was in flight wins: the
	// outcome is discarded, whatever it was, instead of being treated as a
	// verdict on a session that is already gone.
	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		return credstore.TokenPair{}, fmt.Errorf("%w: invalidated during refresh", ErrSessionExpired)
	}

	if err != nil {
		// Cancellation says nothing about the refresh token; leave the
		// stored pair and the session intact.
		if ctx.Err() != nil {
			return credstore.TokenPair{}, err
		}
		c.log.Warn("credential refresh rejected", "error", err)
		c.store.Clear(ctx)
		if c.onExpired != nil {
			c.onExpired()
		}
		return credstore.TokenPair{}, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	if serr := c.store.Save(ctx, fresh); serr != nil && !errors.Is(serr, credstore.ErrStorage) {
		return credstore.TokenPair{}, serr
	}
	return fresh, nil
}

// Invalidate marks the session gone. Any exchange already in flight keeps
// running but its result is discarded rather than persisted.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
}

package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Start launches the proactive renewal loop. Every interval the stored access
// token is inspected and, if it expires within the threshold, renewed ahead
// of time so foreground calls rarely see a 401. Start is a no-op if the loop
// is already running.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancelProactive != nil {
		c.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancelProactive = cancel
	c.proactiveDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				c.tick(loopCtx)
			}
		}
	}()
}

// Stop halts the proactive loop and waits for it to exit. Safe to call when
// the loop was never started.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel := c.cancelProactive
	done := c.proactiveDone
	c.cancelProactive = nil
	c.proactiveDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	pair, present, err := c.store.Load(ctx)
	if err != nil || !present || pair.AccessToken == "" {
		return
	}
	expiry, ok := tokenExpiry(pair.AccessToken)
	if !ok {
		return
	}
	remaining := expiry.Sub(c.now())
	if remaining >= c.threshold {
		return
	}
	c.log.Debug("access token near expiry, renewing", "remaining", remaining)
	if _, err := c.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("proactive refresh failed", "error", err)
	}
}

// tokenExpiry extracts the exp claim without verifying the signature. The
// token is the backend's; only its timestamp matters here.
func tokenExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

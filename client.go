package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MrEthical07/authsdk/credstore"
	internalaudit "github.com/MrEthical07/authsdk/internal/audit"
	"github.com/MrEthical07/authsdk/internal/otp"
	"github.com/MrEthical07/authsdk/internal/refresh"
	"github.com/MrEthical07/authsdk/internal/transport"
	"github.com/MrEthical07/authsdk/internal/validate"
)

// Client is the session facade. It owns the externally observable session
// state and orchestrates the store, gateway, refresh coordinator, and OTP
// machine behind the auth operations. Safe for concurrent use.
type Client struct {
	cfg              Config
	log              *slog.Logger
	store            *credstore.Store
	gateway          *transport.Client
	coordinator      *refresh.Coordinator
	otp              *otp.Machine
	metrics          *Metrics
	audit            *internalaudit.Dispatcher
	bus              *eventBus
	proactiveEnabled bool

	mu     sync.RWMutex
	state  SessionState
	closed bool
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionPayload is the login/verify response: the token shim plus the user.
type sessionPayload struct {
	transport.TokenData
	User *User `json:"user"`
}

// State returns a snapshot of the current session.
func (c *Client) State() SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Client) snapshotLocked() SessionState {
	st := c.state
	if c.state.User != nil {
		u := *c.state.User
		st.User = &u
	}
	if c.state.LastError != nil {
		e := *c.state.LastError
		st.LastError = &e
	}
	return st
}

// Events returns a typed stream of session lifecycle events bound to ctx.
func (c *Client) Events(ctx context.Context) (<-chan Event, error) {
	return c.bus.subscribe(ctx)
}

// Metrics returns a point-in-time copy of the client's counters.
func (c *Client) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped reports audit events lost to dispatcher backpressure.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Degraded reports whether credential persistence has fallen back to memory.
func (c *Client) Degraded() bool {
	return c.store.Degraded()
}

// begin marks an operation in flight: loading set, prior error cleared.
func (c *Client) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.state.IsLoading = true
	c.state.LastError = nil
	return nil
}

// finish clears loading unconditionally and records the classified error,
// if any. Runs via defer so a failure mid-operation cannot leave the
// loading flag stuck.
func (c *Client) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsLoading = false
	if err != nil {
		cls := Classify(err)
		c.state.LastError = &cls
	}
}

// Login authenticates with email and password and establishes a session.
func (c *Client) Login(ctx context.Context, email, password string) (user *User, err error) {
	if err = c.begin(); err != nil {
		return nil, err
	}
	defer func() { c.finish(err) }()

	if err = validate.Credentials(email, password); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return nil, err
	}

	var payload sessionPayload
	if err = c.gateway.DoOnce(ctx, http.MethodPost, "/auth/login", credentialsRequest{Email: email, Password: password}, &payload); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.audit.Record(ctx, "login", email, false, err)
		return nil, err
	}
	if err = c.establishSession(ctx, payload.TokenData, payload.User); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.audit.Record(ctx, "login", email, false, err)
		return nil, err
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.audit.Record(ctx, "login", email, true, nil)
	c.bus.publish(EventLogin, email, "")
	return payload.User, nil
}

// Register creates an account. It does not establish a session; the new
// account logs in separately.
func (c *Client) Register(ctx context.Context, email, password string) (res RegisterResult, err error) {
	if err = c.begin(); err != nil {
		return RegisterResult{}, err
	}
	defer func() { c.finish(err) }()

	if err = validate.Credentials(email, password); err != nil {
		c.metrics.Inc(MetricRegisterFailure)
		return RegisterResult{}, err
	}
	if err = c.gateway.DoOnce(ctx, http.MethodPost, "/auth/register", credentialsRequest{Email: email, Password: password}, &res); err != nil {
		c.metrics.Inc(MetricRegisterFailure)
		c.audit.Record(ctx, "register", email, false, err)
		return RegisterResult{}, err
	}

	c.metrics.Inc(MetricRegisterSuccess)
	c.audit.Record(ctx, "register", email, true, nil)
	return res, nil
}

// Refresh forces a credential renewal through the single-flight coordinator.
func (c *Client) Refresh(ctx context.Context) (err error) {
	if err = c.begin(); err != nil {
		return err
	}
	defer func() { c.finish(err) }()

	if _, err = c.coordinator.Refresh(ctx); err != nil {
		if errors.Is(err, refresh.ErrNoRefreshToken) {
			c.sessionExpired(ctx, "no refresh token")
		}
		return err
	}
	c.bus.publish(EventRefreshed, c.currentEmail(), "")
	return nil
}

// Logout tears the session down locally: the coordinator is invalidated so
// an in-flight refresh cannot resurrect the session, the proactive loop
// stops, the store is cleared, and state resets. Never fails.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.finish(nil)

	email := c.currentEmail()
	c.coordinator.Invalidate()
	c.coordinator.Stop()
	c.store.Clear(ctx)
	c.otp.Reset()

	c.mu.Lock()
	c.state.User = nil
	c.state.IsAuthenticated = false
	c.mu.Unlock()

	c.metrics.Inc(MetricLogout)
	c.audit.Record(ctx, "logout", email, true, nil)
	c.bus.publish(EventLogout, email, "user logout")
	return nil
}

// Init restores a persisted session at process start. With valid stored
// credentials the session is marked authenticated and the backend init
// endpoint is probed best-effort; a stale or absent record leaves the
// client signed out.
func (c *Client) Init(ctx context.Context) (st SessionState, err error) {
	if err = c.begin(); err != nil {
		return SessionState{}, err
	}
	defer func() { c.finish(err) }()

	pair, present, lerr := c.store.Load(ctx)
	if lerr != nil && !errors.Is(lerr, credstore.ErrStorage) {
		err = lerr
		return c.State(), err
	}
	if !present || pair.AccessToken == "" {
		return c.State(), nil
	}

	var user *User
	if blob, ok, _ := c.store.LoadProfile(ctx); ok {
		_ = json.Unmarshal(blob, &user)
	}

	c.mu.Lock()
	c.state.User = user
	c.state.IsAuthenticated = true
	c.mu.Unlock()

	if c.proactiveEnabled {
		c.coordinator.Start(context.Background())
	}

	// Probe the backend. A 401 here funnels through the normal
	// refresh-and-replay path; a dead session tears itself down.
	if perr := c.gateway.Do(ctx, http.MethodGet, "/auth/init", nil, nil); perr != nil {
		c.log.Debug("init probe failed", "error", perr)
	}
	return c.State(), nil
}

// Close releases the client: the proactive loop, audit dispatcher, and event
// bus shut down. The persisted credential record is left intact.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.coordinator.Stop()
	c.audit.Close()
	c.bus.close()
	return nil
}

// refreshExchange is the coordinator's network call: one non-retrying POST
// to the refresh endpoint.
func (c *Client) refreshExchange(ctx context.Context, refreshToken string) (credstore.TokenPair, error) {
	var data transport.TokenData
	err := c.gateway.DoOnce(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &data)
	if err != nil {
		c.metrics.Inc(MetricRefreshFailure)
		return credstore.TokenPair{}, err
	}

	access, rotated := data.Canonical()
	if access == "" {
		c.metrics.Inc(MetricRefreshFailure)
		return credstore.TokenPair{}, errors.New("refresh response missing token")
	}
	if rotated == "" {
		// Backend did not rotate; the pair written back stays complete.
		rotated = refreshToken
	}
	c.metrics.Inc(MetricRefreshSuccess)
	return credstore.TokenPair{AccessToken: access, RefreshToken: rotated}, nil
}

// establishSession persists the pair and profile and flips the state to
// authenticated. Storage degradation is logged and counted, never fatal.
func (c *Client) establishSession(ctx context.Context, data transport.TokenData, user *User) error {
	access, refreshToken := data.Canonical()
	if access == "" {
		return errors.New("auth response missing token")
	}

	pair := credstore.TokenPair{AccessToken: access, RefreshToken: refreshToken}
	if err := c.store.Save(ctx, pair); err != nil {
		if !errors.Is(err, credstore.ErrStorage) {
			return err
		}
		c.metrics.Inc(MetricStorageDegraded)
		c.log.Warn("credential persistence degraded", "error", err)
	}
	if user != nil {
		if blob, err := json.Marshal(user); err == nil {
			if perr := c.store.SaveProfile(ctx, blob); perr != nil && !errors.Is(perr, credstore.ErrStorage) {
				c.log.Warn("profile persistence failed", "error", perr)
			}
		}
	}

	c.mu.Lock()
	c.state.User = user
	c.state.IsAuthenticated = true
	c.mu.Unlock()

	if c.proactiveEnabled {
		c.coordinator.Start(context.Background())
	}
	return nil
}

// sessionExpired tears down a dead session exactly once: a no-op unless the
// client currently believes it is authenticated.
func (c *Client) sessionExpired(ctx context.Context, reason string) {
	c.mu.Lock()
	if !c.state.IsAuthenticated {
		c.mu.Unlock()
		return
	}
	email := ""
	if c.state.User != nil {
		email = c.state.User.Email
	}
	c.state.User = nil
	c.state.IsAuthenticated = false
	c.mu.Unlock()

	c.store.Clear(ctx)
	c.metrics.Inc(MetricSessionInvalidated)
	c.audit.Record(ctx, "session_expired", email, false, errors.New(reason))
	c.bus.publish(EventSessionExpired, email, reason)
	c.log.Warn("session expired", "reason", reason)
}

// onSessionInvalid is the gateway's callback for a failed refresh or a
// replayed request that is still unauthorized.
func (c *Client) onSessionInvalid(ctx context.Context, reason string) {
	c.sessionExpired(ctx, reason)
}

func (c *Client) currentEmail() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.User == nil {
		return ""
	}
	return c.state.User.Email
}

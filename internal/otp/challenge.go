package otp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotIssued        = errors.New("no otp challenge issued")
	ErrChallengeActive  = errors.New("otp challenge already active")
	ErrAlreadyVerified  = errors.New("otp challenge already verified")
	ErrExpired          = errors.New("otp challenge expired")
	ErrInvalid          = errors.New("invalid otp code")
	ErrAttemptsExceeded = errors.New("otp attempts exceeded")
	ErrResendCooldown   = errors.New("otp resend cooldown active")
)

// State is the lifecycle position of the current challenge.
type State uint8

const (
	StateIdle State = iota
	StateIssued
	StateVerified
	StateExhausted
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIssued:
		return "issued"
	case StateVerified:
		return "verified"
	case StateExhausted:
		return "exhausted"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// SendFunc asks the backend to dispatch a code to identity.
type SendFunc func(ctx context.Context, identity string) error

// VerifyFunc submits a code for backend verification. ok=false with a nil
// error means the backend rejected the code; a non-nil error is an
// infrastructure failure and passes through unchanged.
type VerifyFunc func(ctx context.Context, identity, code string) (ok bool, err error)

// Config fixes the challenge windows. Zero values take the defaults below.
type Config struct {
	Validity       time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
}

const (
	DefaultValidity       = 5 * time.Minute
	DefaultResendCooldown = time.Minute
	DefaultMaxAttempts    = 3
)

func (c Config) withDefaults() Config {
	if c.Validity <= 0 {
		c.Validity = DefaultValidity
	}
	if c.ResendCooldown <= 0 {
		c.ResendCooldown = DefaultResendCooldown
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Machine holds at most one challenge at a time. Backend delegates are passed
// per call so the machine stays free of transport wiring.
//
// Machine is safe for concurrent use.
type Machine struct {
	cfg Config
	now func() time.Time

	mu            sync.Mutex
	state         State
	challengeID   string
	identity      string
	expiresAt     time.Time
	cooldownUntil time.Time
	attempts      int
}

func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg.withDefaults(), now: time.Now}
}

// Issue starts a new challenge for identity. A live challenge must complete,
// expire, or be resent before a fresh Issue is accepted.
func (m *Machine) Issue(ctx context.Context, identity string, send SendFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIssued && m.now().Before(m.expiresAt) {
		return ErrChallengeActive
	}
	return m.issueLocked(ctx, identity, send)
}

// Resend reissues the current challenge outside the cooldown window,
// resetting the attempt counter.
func (m *Machine) Resend(ctx context.Context, send SendFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle {
		return ErrNotIssued
	}
	if m.now().Before(m.cooldownUntil) {
		return ErrResendCooldown
	}
	return m.issueLocked(ctx, m.identity, send)
}

func (m *Machine) issueLocked(ctx context.Context, identity string, send SendFunc) error {
	if err := send(ctx, identity); err != nil {
		return err
	}

	now := m.now()
	m.state = StateIssued
	m.challengeID = uuid.NewString()
	m.identity = identity
	m.expiresAt = now.Add(m.cfg.Validity)
	m.cooldownUntil = now.Add(m.cfg.ResendCooldown)
	m.attempts = 0
	return nil
}

// Verify submits code. The attempt counter is consumed before the backend is
// consulted; an expired challenge is rejected without consuming an attempt. A
// verified challenge is single use.
func (m *Machine) Verify(ctx context.Context, code string, verify VerifyFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateIdle:
		return ErrNotIssued
	case StateVerified:
		return ErrAlreadyVerified
	case StateExhausted:
		return ErrAttemptsExceeded
	case StateExpired:
		return ErrExpired
	}

	if m.attempts >= m.cfg.MaxAttempts {
		m.state = StateExhausted
		return ErrAttemptsExceeded
	}
	if m.now().After(m.expiresAt) {
		m.state = StateExpired
		return ErrExpired
	}

	m.attempts++

	ok, err := verify(ctx, m.identity, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalid
	}

	m.state = StateVerified
	return nil
}

// Reset abandons the current challenge and returns the machine to Idle.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
	m.challengeID = ""
	m.identity = ""
	m.expiresAt = time.Time{}
	m.cooldownUntil = time.Time{}
	m.attempts = 0
}

// State reports the current lifecycle position.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Identity returns the identity of the current challenge, if any.
func (m *Machine) Identity() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity
}

// RemainingAttempts is a pure derived query over the attempt fields.
func (m *Machine) RemainingAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := m.cfg.MaxAttempts - m.attempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired reports whether client-side expiry has passed for a live
// challenge.
func (m *Machine) IsExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateExpired {
		return true
	}
	return m.state == StateIssued && m.now().After(m.expiresAt)
}

// CanResend reports whether the resend cooldown has elapsed.
func (m *Machine) CanResend() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != StateIdle && !m.now().Before(m.cooldownUntil)
}

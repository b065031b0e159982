package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authsdk/credstore"
)

const (
	// DefaultTimeout bounds a single backend round trip.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxAttempts is the hard ceiling on dispatches for one call,
	// refresh replay included.
	DefaultMaxAttempts = 3
)

// TokenSource supplies the current credential pair for bearer attachment.
// The bool reports whether a credential is present at all.
type TokenSource interface {
	Load(ctx context.Context) (credstore.TokenPair, bool, error)
}

// Refresher exchanges the stored refresh token for a fresh credential pair.
type Refresher interface {
	Refresh(ctx context.Context) (credstore.TokenPair, error)
}

// Config wires a Client. BaseURL is required; everything else has a default.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	Refresher  Refresher

	// OnSessionInvalid fires when a refresh attempt fails or a replayed
	// request is still unauthorized. The reason is a short diagnostic.
	OnSessionInvalid func(ctx context.Context, reason string)

	// OnRetry fires once per replay after a credential refresh.
	OnRetry func()

	// ObserveLatency receives the round-trip duration of every dispatch.
	ObserveLatency func(d time.Duration)

	Logger      *slog.Logger
	MaxAttempts int
}

// Client dispatches envelope-shaped requests to the backend.
type Client struct {
	baseURL          string
	http             *http.Client
	tokens           TokenSource
	refresher        Refresher
	onSessionInvalid func(ctx context.Context, reason string)
	onRetry          func()
	observeLatency   func(d time.Duration)
	log              *slog.Logger
	maxAttempts      int
}

func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		http:             cfg.HTTPClient,
		tokens:           cfg.Tokens,
		refresher:        cfg.Refresher,
		onSessionInvalid: cfg.OnSessionInvalid,
		onRetry:          cfg.OnRetry,
		observeLatency:   cfg.ObserveLatency,
		log:              cfg.Logger,
		maxAttempts:      cfg.MaxAttempts,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultTimeout}
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	return c
}

// Do sends one request and decodes the envelope data into out (which may be
// nil). A 401 triggers at most one refresh-and-replay; every other failure
// surfaces immediately. The attempt ceiling holds regardless of outcome.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	payload, err := marshalBody(body)
	if err != nil {
		return err
	}

	retriedAuth := false
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		status, env, err := c.dispatch(ctx, method, path, payload, true)
		if err != nil {
			return err
		}
		if status >= 200 && status < 300 && env.Success {
			return decodeData(env.Data, out)
		}

		apiErr := &APIError{Status: status, Message: env.Message}
		if status != http.StatusUnauthorized {
			return apiErr
		}
		if retriedAuth || c.refresher == nil || attempt == c.maxAttempts {
			c.sessionInvalid(ctx, "unauthorized after refresh")
			return apiErr
		}

		retriedAuth = true
		c.log.Debug("unauthorized response, refreshing credentials", "method", method, "path", path)
		if _, rerr := c.refresher.Refresh(ctx); rerr != nil {
			if ctx.Err() == nil {
				c.sessionInvalid(ctx, "credential refresh failed")
			}
			return rerr
		}
		if c.onRetry != nil {
			c.onRetry()
		}
	}
	return fmt.Errorf("request attempt ceiling reached for %s %s", method, path)
}

// DoOnce sends exactly one request with no refresh or replay. The refresh
// call itself goes through here so a rejected refresh token cannot recurse.
func (c *Client) DoOnce(ctx context.Context, method, path string, body, out any) error {
	payload, err := marshalBody(body)
	if err != nil {
		return err
	}
	status, env, err := c.dispatch(ctx, method, path, payload, false)
	if err != nil {
		return err
	}
	if status >= 200 && status < 300 && env.Success {
		return decodeData(env.Data, out)
	}
	return &APIError{Status: status, Message: env.Message}
}

func (c *Client) dispatch(ctx context.Context, method, path string, payload []byte, attachBearer bool) (int, *Envelope, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// The bearer is read per dispatch so a replay after refresh carries
	// the new access token, not the one the failed attempt used.
	if attachBearer && c.tokens != nil {
		pair, present, err := c.tokens.Load(ctx)
		if err == nil && present && pair.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		}
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if c.observeLatency != nil {
		c.observeLatency(time.Since(started))
	}
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: reading response: %w", method, path, err)
	}

	env := &Envelope{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, env); err != nil {
			// Non-envelope body. Fall back to the HTTP status text so
			// the caller still gets a classifiable APIError.
			env = &Envelope{Message: http.StatusText(resp.StatusCode)}
		}
	}
	return resp.StatusCode, env, nil
}

func (c *Client) sessionInvalid(ctx context.Context, reason string) {
	if c.onSessionInvalid != nil {
		c.onSessionInvalid(ctx, reason)
	}
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return payload, nil
}

func decodeData(data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}

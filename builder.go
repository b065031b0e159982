package authsdk

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authsdk/credstore"
	internalaudit "github.com/MrEthical07/authsdk/internal/audit"
	"github.com/MrEthical07/authsdk/internal/otp"
	"github.com/MrEthical07/authsdk/internal/refresh"
	"github.com/MrEthical07/authsdk/internal/transport"
)

// Builder assembles a [Client]. Construction is allocation-only; no I/O
// happens until Client methods run (Build may stat the credentials directory).
type Builder struct {
	config Config

	medium     credstore.Medium
	cipher     credstore.Cipher
	httpClient *http.Client
	redis      redis.UniversalClient
	auditSink  AuditSink
	logger     *slog.Logger

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets the backend root without replacing the rest of the config.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithMedium overrides the credential persistence medium. Takes precedence
// over WithRedis and Config.Credentials.Dir.
func (b *Builder) WithMedium(m credstore.Medium) *Builder {
	b.medium = m
	return b
}

// WithCipher overrides the at-rest credential transform.
func (b *Builder) WithCipher(c credstore.Cipher) *Builder {
	b.cipher = c
	return b
}

func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithRedis stores credentials in Redis instead of the local filesystem, for
// deployments that share a session across processes.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(log *slog.Logger) *Builder {
	b.logger = log
	return b
}

// Build wires the client. The builder is single-use.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	medium := b.medium
	if medium == nil {
		switch {
		case b.redis != nil:
			medium = credstore.NewRedisMedium(b.redis, "", 0)
		case cfg.Credentials.Dir != "":
			fm, err := credstore.NewFileMedium(cfg.Credentials.Dir)
			if err != nil {
				return nil, err
			}
			medium = fm
		default:
			medium = credstore.NewMemoryMedium()
		}
	}

	store := credstore.NewStore(medium, b.cipher, cfg.Credentials.StalenessCeiling, log)
	metrics := NewMetrics(cfg.Metrics)

	c := &Client{
		cfg:     cfg,
		log:     log,
		store:   store,
		metrics: metrics,
		bus:     newEventBus(),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	c.coordinator = refresh.NewCoordinator(refresh.Config{
		Store:             store,
		Call:              c.refreshExchange,
		Logger:            log,
		ProactiveInterval: cfg.Refresh.ProactiveInterval,
		ExpiryThreshold:   cfg.Refresh.ExpiryThreshold,
		OnCollapse:        func() { metrics.Inc(MetricRefreshCollapsed) },
		OnExpired:         func() { c.sessionExpired(context.Background(), "refresh rejected") },
	})

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.API.Timeout}
	}
	c.gateway = transport.NewClient(transport.Config{
		BaseURL:          cfg.API.BaseURL,
		HTTPClient:       httpClient,
		Tokens:           store,
		Refresher:        c.coordinator,
		OnSessionInvalid: c.onSessionInvalid,
		OnRetry:          func() { metrics.Inc(MetricRequestRetried) },
		ObserveLatency:   metrics.Observe,
		Logger:           log,
		MaxAttempts:      cfg.API.MaxAttempts,
	})

	c.otp = otp.NewMachine(otp.Config{
		Validity:       cfg.OTP.Validity,
		ResendCooldown: cfg.OTP.ResendCooldown,
		MaxAttempts:    cfg.OTP.MaxAttempts,
	})

	c.proactiveEnabled = cfg.Refresh.ProactiveEnabled
	if c.proactiveEnabled {
		c.coordinator.Start(context.Background())
	}

	b.built = true
	return c, nil
}

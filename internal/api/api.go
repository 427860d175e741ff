// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/focusdial/internal/api/auth"
	"github.com/good-yellow-bee/focusdial/internal/api/dashboard"
	"github.com/good-yellow-bee/focusdial/internal/api/health"
	"github.com/good-yellow-bee/focusdial/internal/api/middleware"
	"github.com/good-yellow-bee/focusdial/internal/events"
	"github.com/good-yellow-bee/focusdial/internal/storage"
	"github.com/good-yellow-bee/focusdial/internal/timeline"
	"github.com/good-yellow-bee/focusdial/internal/tracker"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address          string
	JWTSecret        []byte
	HTTPTLSEnabled   bool
	HTTPTLSCertFile  string
	HTTPTLSKeyFile   string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	RateLimitPerIP   int // login attempts per minute per IP
	RateLimitPerUser int // API requests per minute per user
	WebhookRateLimit int // webhook calls per minute per API key
	WebhookBurst     int
	LockoutThreshold int
	LockoutDuration  time.Duration
	Verbose          bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 15 * time.Minute
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 10
	}
	if c.RateLimitPerUser == 0 {
		c.RateLimitPerUser = 300
	}
	if c.WebhookRateLimit == 0 {
		c.WebhookRateLimit = 60
	}
	if c.WebhookBurst == 0 {
		c.WebhookBurst = 10
	}
	if c.LockoutThreshold == 0 {
		c.LockoutThreshold = 5
	}
	if c.LockoutDuration == 0 {
		c.LockoutDuration = 15 * time.Minute
	}
}

// Deps are the long-lived components the server routes requests to.
// Nil Broker, Tracker and Timeline get defaults.
type Deps struct {
	Storage  storage.Storage
	Broker   *events.Broker
	Tracker  *tracker.Service
	Timeline *timeline.Settings
}

// Server is the HTTP API server.
type Server struct {
	config  *Config
	deps    Deps
	server  *http.Server
	health  *health.Handler
	jwt     *auth.JWTService
	lockout *auth.LockoutTracker
	tokens  *auth.TokenService
	dash    *dashboard.Handler

	ipLimiter      *middleware.RateLimiter
	userLimiter    *middleware.RateLimiter
	webhookLimiter *middleware.RateLimiter
}

// New creates a new API server.
func New(cfg *Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Storage == nil {
		return nil, errors.New("storage is required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, errors.New("JWT secret is required")
	}
	cfg.SetDefaults()

	if deps.Broker == nil {
		deps.Broker = events.NewBroker(0)
	}
	if deps.Tracker == nil {
		deps.Tracker = tracker.NewService(deps.Storage, deps.Broker, tracker.UpdateNever)
	}
	if deps.Timeline == nil {
		deps.Timeline = timeline.NewSettings(time.Local, timeline.DefaultWorkdayStartHour)
	}

	s := &Server{
		config:         cfg,
		deps:           deps,
		health:         health.NewHandler(),
		jwt:            auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL),
		lockout:        auth.NewLockoutTracker(cfg.LockoutThreshold, cfg.LockoutDuration),
		tokens:         auth.NewTokenService(deps.Storage, cfg.RefreshTokenTTL),
		dash:           dashboard.NewHandler(deps.Storage, deps.Broker, deps.Timeline),
		ipLimiter:      middleware.NewRateLimiter(cfg.RateLimitPerIP, 0),
		userLimiter:    middleware.NewRateLimiter(cfg.RateLimitPerUser, 0),
		webhookLimiter: middleware.NewRateLimiter(cfg.WebhookRateLimit, cfg.WebhookBurst),
	}

	if db, ok := deps.Storage.(interface{ DB() *sql.DB }); ok {
		s.health.RegisterChecker(health.NewSQLiteChecker(db.DB()))
	}
	if v, ok := deps.Storage.(health.Versioner); ok {
		s.health.RegisterChecker(health.NewSchemaChecker(v, storage.LatestSchemaVersion()))
	}

	s.server = &http.Server{
		Addr:        cfg.Address,
		Handler:     s.setupRouter(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream keeps connections open.
		IdleTimeout: 60 * time.Second,
	}
	if cfg.HTTPTLSEnabled {
		s.server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS13}
	}
	// Event streams only end when the broker closes.
	s.server.RegisterOnShutdown(deps.Broker.Close)

	return s, nil
}

// Run starts the HTTP server and its housekeeping loops and blocks until
// ctx is canceled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("HTTP API listening on %s", s.config.Address)
		var err error
		if s.config.HTTPTLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.HTTPTLSCertFile, s.config.HTTPTLSKeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("shutting down HTTP API server...")
		s.dash.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return s.lockout.Run(ctx, time.Minute) })
	g.Go(func() error { return s.tokens.RunCleanup(ctx, time.Hour) })
	for _, rl := range []*middleware.RateLimiter{s.ipLimiter, s.userLimiter, s.webhookLimiter} {
		g.Go(func() error { return rl.Run(ctx) })
	}

	return g.Wait()
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	s.health.RegisterChecker(c)
}

// Package sso keeps single-sign-on credentials fresh. Refresh timestamps
// are persisted per profile in a small SQLite cache so that separate
// processes agree on when the last login happened and only re-run the login
// command once the refresh window has passed.
package sso

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/dataferry/connector/connerr"
	"github.com/dataferry/connector/retry"
)

// Defaults applied when a value is neither set directly nor present in the
// environment.
const (
	DefaultRefreshWindow = 6 * time.Hour
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 5 * time.Second
)

const defaultCachePath = "~/.dataferry/sso-cache.db"

// Config describes one SSO profile and its refresh behavior.
type Config struct {
	// Profile is the SSO profile to keep fresh.
	Profile string

	// LoginCommand overrides the command run to refresh credentials.
	// Empty means `aws sso login --profile <Profile>`.
	LoginCommand []string

	// CachePath is the SQLite file holding refresh timestamps. Empty means
	// ~/.dataferry/sso-cache.db.
	CachePath string

	// RefreshWindow is how long a login stays valid before the next
	// EnsureFresh triggers a new one.
	RefreshWindow time.Duration

	// MaxRetries is the number of additional login attempts after the
	// first failure.
	MaxRetries int

	// RetryDelay is the fixed pause between login attempts.
	RetryDelay time.Duration
}

// Default returns a Config carrying only the documented defaults.
func Default() Config {
	return Config{
		RefreshWindow: DefaultRefreshWindow,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
	}
}

// Validate checks the configuration before any I/O.
func (c Config) Validate() error {
	if c.Profile == "" {
		return &connerr.ConfigurationError{Field: "profile", Reason: "cannot be empty"}
	}
	if c.RefreshWindow <= 0 {
		return &connerr.ValidationError{Field: "refresh_window", Reason: "must be positive"}
	}
	if c.MaxRetries < 0 {
		return &connerr.ValidationError{Field: "max_retries", Reason: "cannot be negative"}
	}
	if c.RetryDelay < 0 {
		return &connerr.ValidationError{Field: "retry_delay", Reason: "cannot be negative"}
	}
	return nil
}

// FromEnv builds and validates a Config from SSO_* environment variables.
// A .env file in the working directory is loaded first without overriding
// real environment values.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	c := Default()
	c.Profile = os.Getenv("SSO_PROFILE")
	c.CachePath = os.Getenv("SSO_CACHE_PATH")
	if raw := os.Getenv("SSO_LOGIN_COMMAND"); raw != "" {
		c.LoginCommand = strings.Fields(raw)
	}

	var err error
	if c.RefreshWindow, err = secondsenv("SSO_REFRESH_WINDOW", DefaultRefreshWindow); err != nil {
		return Config{}, err
	}
	if c.RetryDelay, err = secondsenv("SSO_RETRY_DELAY", DefaultRetryDelay); err != nil {
		return Config{}, err
	}
	if raw := os.Getenv("SSO_MAX_RETRIES"); raw != "" {
		if c.MaxRetries, err = strconv.Atoi(raw); err != nil {
			return Config{}, &connerr.ValidationError{Field: "SSO_MAX_RETRIES", Reason: "must be an integer"}
		}
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func secondsenv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &connerr.ValidationError{Field: key, Reason: "must be an integer"}
	}
	return time.Duration(n) * time.Second, nil
}

// Runner executes the login command. It exists so tests can script logins.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Provider refreshes SSO credentials on demand and remembers when it last
// did so.
type Provider struct {
	cfg    Config
	db     *sql.DB
	runner Runner
	policy retry.Policy
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithRunner substitutes the command runner, typically with a fake in tests.
func WithRunner(r Runner) Option {
	return func(p *Provider) {
		p.runner = r
	}
}

// WithLogger sets the logger used for refresh and retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithClock substitutes the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// New validates cfg, opens the timestamp cache and builds a Provider. No
// login happens until EnsureFresh or Refresh.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.CachePath == "" {
		cfg.CachePath = defaultCachePath
	}
	path, err := homedir.Expand(cfg.CachePath)
	if err != nil {
		return nil, &connerr.CredentialError{Cause: fmt.Errorf("failed to resolve cache path: %w", err)}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, &connerr.CredentialError{Cause: fmt.Errorf("failed to create cache directory: %w", err)}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &connerr.CredentialError{Cause: fmt.Errorf("failed to open cache: %w", err)}
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS credential_refresh (
		profile      TEXT PRIMARY KEY,
		refreshed_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, &connerr.CredentialError{Cause: fmt.Errorf("failed to init cache: %w", err)}
	}

	p := &Provider{
		cfg:    cfg,
		db:     db,
		runner: execRunner{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	// Unlike statement execution, a failed login is always worth retrying:
	// the command's exit status carries no usable classification.
	p.policy = retry.New(cfg.MaxRetries, cfg.RetryDelay).
		WithLogger(p.logger).
		WithClassifier(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		})
	return p, nil
}

// Close releases the timestamp cache.
func (p *Provider) Close() error {
	return p.db.Close()
}

// LastRefresh returns when the profile's credentials were last refreshed.
// ok is false when no refresh was ever recorded.
func (p *Provider) LastRefresh(ctx context.Context) (last time.Time, ok bool, err error) {
	var unix int64
	err = p.db.QueryRowContext(ctx,
		`SELECT refreshed_at FROM credential_refresh WHERE profile = ?`,
		p.cfg.Profile).Scan(&unix)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &connerr.CredentialError{Cause: err}
	}
	return time.Unix(unix, 0), true, nil
}

// NeedsRefresh reports whether the refresh window has passed since the last
// recorded refresh. A profile never refreshed needs one.
func (p *Provider) NeedsRefresh(ctx context.Context) (bool, error) {
	last, ok, err := p.LastRefresh(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return p.now().Sub(last) >= p.cfg.RefreshWindow, nil
}

// EnsureFresh refreshes the credentials when the window has passed and is a
// no-op otherwise. It reports whether a refresh actually ran.
func (p *Provider) EnsureFresh(ctx context.Context) (bool, error) {
	needs, err := p.NeedsRefresh(ctx)
	if err != nil || !needs {
		return false, err
	}
	if err := p.Refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Refresh runs the login command unconditionally, retrying per the
// configured budget, and records the new timestamp on success.
func (p *Provider) Refresh(ctx context.Context) error {
	name, args := p.loginCommand()

	err := p.policy.Do(ctx, func() error {
		return p.runner.Run(ctx, name, args...)
	})
	if err != nil {
		return &connerr.CredentialError{Cause: err}
	}

	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO credential_refresh (profile, refreshed_at) VALUES (?, ?)
		 ON CONFLICT(profile) DO UPDATE SET refreshed_at = excluded.refreshed_at`,
		p.cfg.Profile, p.now().Unix()); err != nil {
		return &connerr.CredentialError{Cause: fmt.Errorf("failed to record refresh: %w", err)}
	}

	if p.logger != nil {
		p.logger.Info("credentials refreshed", "profile", p.cfg.Profile)
	}
	return nil
}

func (p *Provider) loginCommand() (string, []string) {
	if len(p.cfg.LoginCommand) > 0 {
		return p.cfg.LoginCommand[0], p.cfg.LoginCommand[1:]
	}
	return "aws", []string{"sso", "login", "--profile", p.cfg.Profile}
}

package sso

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataferry/connector/connerr"
)

// scriptedRunner records login invocations and fails the first n of them.
type scriptedRunner struct {
	calls    int
	failures int
	lastName string
	lastArgs []string
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) error {
	r.calls++
	r.lastName = name
	r.lastArgs = args
	if r.calls <= r.failures {
		return errors.New("exit status 1")
	}
	return nil
}

func testProvider(t *testing.T, runner Runner, mutate func(*Config)) *Provider {
	t.Helper()
	cfg := Default()
	cfg.Profile = "analytics"
	cfg.CachePath = filepath.Join(t.TempDir(), "cache.db")
	cfg.RetryDelay = 0
	if mutate != nil {
		mutate(&cfg)
	}

	p, err := New(cfg, WithRunner(runner))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestEnsureFreshRunsLoginOnce(t *testing.T) {
	runner := &scriptedRunner{}
	p := testProvider(t, runner, nil)
	ctx := context.Background()

	refreshed, err := p.EnsureFresh(ctx)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, "aws", runner.lastName)
	assert.Equal(t, []string{"sso", "login", "--profile", "analytics"}, runner.lastArgs)

	// Within the window the second call is a no-op.
	refreshed, err = p.EnsureFresh(ctx)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, 1, runner.calls)
}

func TestEnsureFreshAfterWindowExpires(t *testing.T) {
	runner := &scriptedRunner{}
	now := time.Now()
	p := testProvider(t, runner, nil)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := p.EnsureFresh(ctx)
	require.NoError(t, err)

	now = now.Add(DefaultRefreshWindow + time.Minute)
	refreshed, err := p.EnsureFresh(ctx)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 2, runner.calls)
}

func TestRefreshRetriesLoginFailures(t *testing.T) {
	runner := &scriptedRunner{failures: 2}
	p := testProvider(t, runner, func(c *Config) { c.MaxRetries = 3 })

	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, 3, runner.calls)

	last, ok, err := p.LastRefresh(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), last, time.Minute)
}

func TestRefreshExhaustedBudgetFails(t *testing.T) {
	runner := &scriptedRunner{failures: 100}
	p := testProvider(t, runner, func(c *Config) { c.MaxRetries = 2 })

	err := p.Refresh(context.Background())
	require.Error(t, err)

	var ce *connerr.CredentialError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, runner.calls)

	// A failed refresh records nothing.
	_, ok, lookupErr := p.LastRefresh(context.Background())
	require.NoError(t, lookupErr)
	assert.False(t, ok)
}

func TestCustomLoginCommand(t *testing.T) {
	runner := &scriptedRunner{}
	p := testProvider(t, runner, func(c *Config) {
		c.LoginCommand = []string{"okta", "login", "--env", "prod"}
	})

	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, "okta", runner.lastName)
	assert.Equal(t, []string{"login", "--env", "prod"}, runner.lastArgs)
}

func TestTimestampsSurviveReopen(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	cfg := Default()
	cfg.Profile = "analytics"
	cfg.CachePath = cachePath
	cfg.RetryDelay = 0

	p1, err := New(cfg, WithRunner(&scriptedRunner{}))
	require.NoError(t, err)
	require.NoError(t, p1.Refresh(context.Background()))
	require.NoError(t, p1.Close())

	p2, err := New(cfg, WithRunner(&scriptedRunner{}))
	require.NoError(t, err)
	defer p2.Close()

	needs, err := p2.NeedsRefresh(context.Background())
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestConfigValidation(t *testing.T) {
	cfg := Default()
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, connerr.IsConfiguration(err))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SSO_PROFILE", "analytics")
	t.Setenv("SSO_REFRESH_WINDOW", "3600")
	t.Setenv("SSO_MAX_RETRIES", "1")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "analytics", cfg.Profile)
	assert.Equal(t, time.Hour, cfg.RefreshWindow)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
}

func TestFromEnvMissingProfile(t *testing.T) {
	t.Setenv("SSO_PROFILE", "")
	_, err := FromEnv()
	require.Error(t, err)
	assert.True(t, connerr.IsConfiguration(err))
}

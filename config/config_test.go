package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataferry/connector/connerr"
)

func validConfig() Config {
	c := Default()
	c.Driver = "odbc"
	c.DSN = "MY_DSN"
	c.Username = "admin"
	c.Password = "secret"
	return c
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		isValid bool
	}{
		{"empty target", func(c *Config) { c.DSN = ""; c.Host = "" }, false},
		{"host without database", func(c *Config) { c.DSN = ""; c.Host = "db.local" }, false},
		{"host with database", func(c *Config) {
			c.DSN = ""
			c.Host = "db.local"
			c.Database = "sales"
		}, true},
		{"empty username", func(c *Config) { c.Username = "" }, false},
		{"empty password", func(c *Config) { c.Password = "" }, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, false},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, false},
		{"negative max retries", func(c *Config) { c.MaxRetries = -1 }, false},
		{"zero max retries", func(c *Config) { c.MaxRetries = 0 }, true},
		{"negative retry delay", func(c *Config) { c.RetryDelay = -time.Second }, false},
		{"zero retry delay", func(c *Config) { c.RetryDelay = 0 }, true},
		{"zero pool size", func(c *Config) { c.PoolSize = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.isValid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, connerr.IsConfiguration(err))
			}
		})
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("TESTDB_DSN", "TESTDSN")
	t.Setenv("TESTDB_USERNAME", "u")
	t.Setenv("TESTDB_PASSWORD", "p")

	c, err := FromEnv("TESTDB")
	require.NoError(t, err)

	assert.Equal(t, "TESTDSN", c.DSN)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, 5*time.Second, c.RetryDelay)
	assert.Equal(t, 5, c.PoolSize)
	assert.Equal(t, 30*time.Second, c.PoolTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("WAREHOUSE_HOST", "cluster.example.com")
	t.Setenv("WAREHOUSE_PORT", "5439")
	t.Setenv("WAREHOUSE_DATABASE", "analytics")
	t.Setenv("WAREHOUSE_USERNAME", "loader")
	t.Setenv("WAREHOUSE_PASSWORD", "hunter2")
	t.Setenv("WAREHOUSE_TIMEOUT", "10")
	t.Setenv("WAREHOUSE_MAX_RETRIES", "7")
	t.Setenv("WAREHOUSE_RETRY_DELAY", "0")
	t.Setenv("WAREHOUSE_POOL_SIZE", "12")
	t.Setenv("WAREHOUSE_SSL", "true")

	c, err := FromEnv("WAREHOUSE")
	require.NoError(t, err)

	assert.Equal(t, "cluster.example.com", c.Host)
	assert.Equal(t, 5439, c.Port)
	assert.Equal(t, 10*time.Second, c.Timeout)
	assert.Equal(t, 7, c.MaxRetries)
	assert.Equal(t, time.Duration(0), c.RetryDelay)
	assert.Equal(t, 12, c.PoolSize)
	assert.True(t, c.SSL)
	assert.Equal(t, "cluster.example.com/analytics", c.Target())
}

func TestFromEnvIdempotent(t *testing.T) {
	t.Setenv("REPEAT_DSN", "D")
	t.Setenv("REPEAT_USERNAME", "u")
	t.Setenv("REPEAT_PASSWORD", "p")

	first, err := FromEnv("REPEAT")
	require.NoError(t, err)
	second, err := FromEnv("REPEAT")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFromEnvInvalid(t *testing.T) {
	t.Setenv("BROKEN_DSN", "D")
	t.Setenv("BROKEN_USERNAME", "u")
	t.Setenv("BROKEN_PASSWORD", "p")
	t.Setenv("BROKEN_MAX_RETRIES", "not-a-number")

	_, err := FromEnv("BROKEN")
	require.Error(t, err)
	assert.True(t, connerr.IsConfiguration(err))

	t.Setenv("BROKEN_MAX_RETRIES", "-2")
	_, err = FromEnv("BROKEN")
	require.Error(t, err)
}

// Package config holds connection configuration and its validation.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dataferry/connector/connerr"
)

// Defaults applied when a value is neither set directly nor present in the
// environment.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 5 * time.Second
	DefaultPoolSize    = 5
	DefaultPoolTimeout = 30 * time.Second
)

// Config describes one database target. It is a value object: build it,
// validate it, then treat it as read-only.
type Config struct {
	// Driver selects the database/sql driver: postgres, mysql, sqlite3 or odbc.
	Driver string

	// DSN is the raw data source name. When empty, one is assembled from
	// Host, Port, Database and the credentials.
	DSN string

	Host     string
	Port     int
	Database string

	Username string
	Password string

	// SSL enables TLS for drivers that support it in the assembled DSN.
	SSL bool

	// Timeout bounds a single connection attempt.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first
	// failure; MaxRetries+1 attempts happen in total.
	MaxRetries int

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration

	// PoolSize bounds the number of concurrently open connections.
	PoolSize int

	// PoolTimeout bounds how long an acquire waits for a free connection.
	PoolTimeout time.Duration

	// LogStatements echoes each statement to the injected logger before
	// execution.
	LogStatements bool
}

// Default returns a Config carrying only the documented defaults.
func Default() Config {
	return Config{
		Timeout:     DefaultTimeout,
		MaxRetries:  DefaultMaxRetries,
		RetryDelay:  DefaultRetryDelay,
		PoolSize:    DefaultPoolSize,
		PoolTimeout: DefaultPoolTimeout,
	}
}

// Target returns the identifier of the configured endpoint: the DSN when
// given, otherwise host/database.
func (c Config) Target() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Database != "" {
		return c.Host + "/" + c.Database
	}
	return c.Host
}

// Validate checks the configuration synchronously, before any I/O.
// Missing identity fields fail with a ConfigurationError, out-of-range
// numbers with a ValidationError.
func (c Config) Validate() error {
	if c.DSN == "" && c.Host == "" {
		return &connerr.ConfigurationError{Field: "dsn/host", Reason: "cannot both be empty"}
	}
	if c.DSN == "" && c.Database == "" && c.Driver != "sqlite3" {
		return &connerr.ConfigurationError{Field: "database", Reason: "cannot be empty"}
	}
	if c.Username == "" {
		return &connerr.ConfigurationError{Field: "username", Reason: "cannot be empty"}
	}
	if c.Password == "" {
		return &connerr.ConfigurationError{Field: "password", Reason: "cannot be empty"}
	}
	if c.Timeout <= 0 {
		return &connerr.ValidationError{Field: "timeout", Reason: "must be positive"}
	}
	if c.MaxRetries < 0 {
		return &connerr.ValidationError{Field: "max_retries", Reason: "cannot be negative"}
	}
	if c.RetryDelay < 0 {
		return &connerr.ValidationError{Field: "retry_delay", Reason: "cannot be negative"}
	}
	if c.Port < 0 {
		return &connerr.ValidationError{Field: "port", Reason: "cannot be negative"}
	}
	if c.PoolSize <= 0 {
		return &connerr.ValidationError{Field: "pool_size", Reason: "must be positive"}
	}
	if c.PoolTimeout < 0 {
		return &connerr.ValidationError{Field: "pool_timeout", Reason: "cannot be negative"}
	}
	return nil
}

// FromEnv builds and validates a Config from <PREFIX>_* environment
// variables, e.g. ISERIES_DSN or REDSHIFT_HOST. A .env file in the working
// directory is loaded first without overriding real environment values.
// Rebuilding from the same environment yields the same Config.
func FromEnv(prefix string) (Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	c := Default()
	c.Driver = getenv(prefix, "DRIVER")
	c.DSN = getenv(prefix, "DSN")
	c.Host = getenv(prefix, "HOST")
	c.Database = getenv(prefix, "DATABASE")
	c.Username = getenv(prefix, "USERNAME")
	c.Password = getenv(prefix, "PASSWORD")

	var err error
	if c.Port, err = intenv(prefix, "PORT", 0); err != nil {
		return Config{}, err
	}
	if c.Timeout, err = secondsenv(prefix, "TIMEOUT", DefaultTimeout); err != nil {
		return Config{}, err
	}
	if c.MaxRetries, err = intenv(prefix, "MAX_RETRIES", DefaultMaxRetries); err != nil {
		return Config{}, err
	}
	if c.RetryDelay, err = secondsenv(prefix, "RETRY_DELAY", DefaultRetryDelay); err != nil {
		return Config{}, err
	}
	if c.PoolSize, err = intenv(prefix, "POOL_SIZE", DefaultPoolSize); err != nil {
		return Config{}, err
	}
	if c.PoolTimeout, err = secondsenv(prefix, "POOL_TIMEOUT", DefaultPoolTimeout); err != nil {
		return Config{}, err
	}
	c.SSL = getenv(prefix, "SSL") == "true"

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func getenv(prefix, key string) string {
	return os.Getenv(prefix + "_" + key)
}

func intenv(prefix, key string, def int) (int, error) {
	raw := getenv(prefix, key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &connerr.ValidationError{Field: prefix + "_" + key, Reason: "must be an integer"}
	}
	return n, nil
}

// secondsenv parses an integer number of seconds, matching the unit the
// original environment contract documents.
func secondsenv(prefix, key string, def time.Duration) (time.Duration, error) {
	n, err := intenv(prefix, key, int(def/time.Second))
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

package driver

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/dataferry/connector/config"
)

// SQLConnector is the default Connector built on database/sql. It opens one
// *sql.DB per target and hands out dedicated sessions from it, so every Conn
// maps to exactly one underlying driver connection.
//
// Drivers for postgres, mysql and sqlite are registered by import. An "odbc"
// configuration expects the caller to have registered an ODBC driver under
// that name.
type SQLConnector struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLConnector creates an SQLConnector.
func NewSQLConnector() *SQLConnector {
	return &SQLConnector{}
}

// Connect implements Connector.
func (c *SQLConnector) Connect(ctx context.Context, cfg config.Config) (Conn, error) {
	db, err := c.ensureDB(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &sqlConn{conn: conn}, nil
}

// Close closes the shared handle and every idle session in it.
func (c *SQLConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *SQLConnector) ensureDB(cfg config.Config) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db, nil
	}

	name := driverName(cfg.Driver)
	if name == "" {
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	db, err := sql.Open(name, buildDSN(cfg))
	if err != nil {
		return nil, err
	}
	// The connector's own pool bounds concurrency; database/sql just has to
	// not cap below it.
	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	c.db = db
	return db, nil
}

// driverName maps connector driver names to registered database/sql drivers.
func driverName(driver string) string {
	switch driver {
	case "postgresql", "postgres", "redshift":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "odbc", "":
		return "odbc"
	default:
		return ""
	}
}

// buildDSN assembles a driver DSN from the configuration when no raw DSN is
// given. ODBC targets reuse the classic DSN=...;UID=...;PWD=... form even
// when cfg.DSN names only the data source.
func buildDSN(cfg config.Config) string {
	switch driverName(cfg.Driver) {
	case "postgres":
		if cfg.DSN != "" {
			return cfg.DSN
		}
		sslmode := "disable"
		if cfg.SSL {
			sslmode = "require"
		}
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, port, cfg.Username, cfg.Password, cfg.Database, sslmode)
	case "mysql":
		if cfg.DSN != "" {
			return cfg.DSN
		}
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			cfg.Username, cfg.Password, cfg.Host, port, cfg.Database)
	case "sqlite3":
		if cfg.DSN != "" {
			return cfg.DSN
		}
		return cfg.Database
	default:
		return fmt.Sprintf("DSN=%s;UID=%s;PWD=%s", cfg.DSN, cfg.Username, cfg.Password)
	}
}

type sqlConn struct {
	conn *sql.Conn
}

func (c *sqlConn) Exec(ctx context.Context, statement string) (int64, error) {
	res, err := c.conn.ExecContext(ctx, statement)
	if err != nil {
		return 0, err
	}
	// Not every driver reports affected rows; treat that as zero.
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (c *sqlConn) Query(ctx context.Context, query string) (Cursor, error) {
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &sqlCursor{rows: rows, columns: cols}, nil
}

func (c *sqlConn) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

func (c *sqlConn) Close() error {
	return c.conn.Close()
}

type sqlCursor struct {
	rows    *sql.Rows
	columns []string
	done    bool
}

func (c *sqlCursor) Columns() []string {
	return c.columns
}

func (c *sqlCursor) Fetch(n int) ([][]any, error) {
	if c.done {
		return nil, nil
	}

	var out [][]any
	for n <= 0 || len(out) < n {
		if !c.rows.Next() {
			c.done = true
			if err := c.rows.Err(); err != nil {
				return out, err
			}
			break
		}
		values := make([]any, len(c.columns))
		ptrs := make([]any, len(c.columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := c.rows.Scan(ptrs...); err != nil {
			return out, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	return out, nil
}

func (c *sqlCursor) Close() error {
	c.done = true
	return c.rows.Close()
}

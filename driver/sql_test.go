package driver

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataferry/connector/config"
)

func mockConn(t *testing.T) (Conn, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing()
	conn, err := db.Conn(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.PingContext(context.Background()))

	return &sqlConn{conn: conn}, mock
}

func TestSQLConnExec(t *testing.T) {
	conn, mock := mockConn(t)
	defer conn.Close()

	mock.ExpectExec("DELETE FROM staging").WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := conn.Exec(context.Background(), "DELETE FROM staging")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCursorFetch(t *testing.T) {
	conn, mock := mockConn(t)
	defer conn.Close()

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(1, "alpha").
		AddRow(2, "beta").
		AddRow(3, "gamma")
	mock.ExpectQuery("SELECT \\* FROM items").WillReturnRows(rows)

	cur, err := conn.Query(context.Background(), "SELECT * FROM items")
	require.NoError(t, err)
	defer cur.Close()

	assert.Equal(t, []string{"id", "name"}, cur.Columns())

	batch, err := cur.Fetch(2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "alpha", batch[0][1])

	batch, err = cur.Fetch(2)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "gamma", batch[0][1])

	batch, err = cur.Fetch(2)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestSQLCursorFetchAll(t *testing.T) {
	conn, mock := mockConn(t)
	defer conn.Close()

	rows := sqlmock.NewRows([]string{"n"}).AddRow(1).AddRow(2).AddRow(3)
	mock.ExpectQuery("SELECT n FROM seq").WillReturnRows(rows)

	cur, err := conn.Query(context.Background(), "SELECT n FROM seq")
	require.NoError(t, err)
	defer cur.Close()

	all, err := cur.Fetch(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDriverName(t *testing.T) {
	assert.Equal(t, "postgres", driverName("redshift"))
	assert.Equal(t, "postgres", driverName("postgresql"))
	assert.Equal(t, "mysql", driverName("mysql"))
	assert.Equal(t, "sqlite3", driverName("sqlite"))
	assert.Equal(t, "odbc", driverName(""))
	assert.Equal(t, "", driverName("oracle"))
}

func TestBuildDSN(t *testing.T) {
	cfg := config.Default()
	cfg.Driver = "postgres"
	cfg.Host = "cluster.example.com"
	cfg.Port = 5439
	cfg.Database = "analytics"
	cfg.Username = "loader"
	cfg.Password = "pw"
	cfg.SSL = true
	assert.Equal(t,
		"host=cluster.example.com port=5439 user=loader password=pw dbname=analytics sslmode=require",
		buildDSN(cfg))

	cfg.Driver = "mysql"
	cfg.Port = 0
	assert.Equal(t, "loader:pw@tcp(cluster.example.com:3306)/analytics", buildDSN(cfg))

	odbc := config.Default()
	odbc.DSN = "ISERIES_PROD"
	odbc.Username = "admin"
	odbc.Password = "secret"
	assert.Equal(t, "DSN=ISERIES_PROD;UID=admin;PWD=secret", buildDSN(odbc))
}

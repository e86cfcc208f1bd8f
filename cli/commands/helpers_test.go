package commands

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataferry/connector/cli/internal/config"
	"github.com/dataferry/connector/executor"
	"github.com/dataferry/connector/table"
)

func TestLoadStatementsFromFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "script.sql",
		[]byte("-- setup\nCREATE TABLE t (n INT);\nINSERT INTO t VALUES (1);"), 0o644))

	orig := config.AppFs
	config.AppFs = fs
	t.Cleanup(func() { config.AppFs = orig })

	statements, err := loadStatements("script.sql", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE TABLE t (n INT)",
		"INSERT INTO t VALUES (1)",
	}, statements)
}

func TestLoadStatementsFromArgs(t *testing.T) {
	statements, err := loadStatements("", []string{"SELECT 1; SELECT 2", "SELECT 3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1", "SELECT 2", "SELECT 3"}, statements)
}

func TestLoadStatementsEmpty(t *testing.T) {
	_, err := loadStatements("", nil)
	assert.Error(t, err)
}

func TestResultRows(t *testing.T) {
	rows := resultRows([]executor.StatementResult{
		{Index: 0, Statement: "SELECT 1", Success: true, Duration: 12 * time.Millisecond, RowsAffected: 1},
		{Index: 1, Statement: "BROKEN", Error: "syntax error"},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0][0])
	assert.Equal(t, "ok", rows[0][1])
	assert.Equal(t, "failed", rows[1][1])
	assert.Equal(t, "syntax error", rows[1][5])
}

func TestTableRowsFormatsNull(t *testing.T) {
	tbl := table.New([]string{"a", "b"})
	require.NoError(t, tbl.Append([]any{1, nil}))

	rows := tableRows(tbl)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"1", "NULL"}, rows[0])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Len(t, []rune(truncate("this is a long statement", 10)), 10)
}

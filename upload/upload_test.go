package upload

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataferry/connector/table"
)

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New([]string{"id", "name"})
	require.NoError(t, tbl.Append([]any{1, "alice"}))
	require.NoError(t, tbl.Append([]any{2, nil}))
	return tbl
}

func TestUploadTableWritesCSV(t *testing.T) {
	fs := afero.NewMemMapFs()
	u := New(NewDirStore(fs, "exports"))

	result := u.UploadTable(context.Background(), "2026/items.csv", sampleTable(t))
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "exports/2026/items.csv", result.Location)
	assert.Empty(t, result.Error)

	data, err := afero.ReadFile(fs, "exports/2026/items.csv")
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,alice\n2,\n", string(data))
}

func TestUploadFailureReportedInResult(t *testing.T) {
	u := New(failingStore{err: errors.New("access denied")})

	result := u.UploadTable(context.Background(), "items.csv", sampleTable(t))
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "access denied")
	assert.Contains(t, result.Error, "items.csv")
	assert.Empty(t, result.Location)
}

func TestDirStoreRejectsBadKeys(t *testing.T) {
	s := NewDirStore(afero.NewMemMapFs(), "exports")

	for _, key := range []string{"", "/etc/passwd"} {
		_, err := s.Put(context.Background(), key, nil)
		assert.Error(t, err, "key %q", key)
	}
}

type failingStore struct {
	err error
}

func (s failingStore) Put(ctx context.Context, key string, body io.Reader) (string, error) {
	return "", s.err
}

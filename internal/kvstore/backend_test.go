package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBackend runs the behaviour every Backend must share
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, b.Ping(ctx))
	require.NoError(t, b.Clear(ctx))

	_, ok, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "b", "2"))
	require.NoError(t, b.Set(ctx, "a", "1"))
	require.NoError(t, b.Set(ctx, "a", "1-updated"))

	v, ok, err := b.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1-updated", v)

	keys, err := b.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, b.Delete(ctx, "a"))
	require.NoError(t, b.Delete(ctx, "a"), "deleting a missing key is not an error")
	_, ok, err = b.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Clear(ctx))
	keys, err = b.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryBackend(t *testing.T) {
	t.Parallel()
	b := NewMemoryBackend()
	exerciseBackend(t, b)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Ping(context.Background()), ErrClosed)
}

func TestSQLiteBackend(t *testing.T) {
	t.Parallel()
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "plans.db"))
	require.NoError(t, err)
	defer b.Close()
	exerciseBackend(t, b)
}

func TestSQLiteBackend_InMemory(t *testing.T) {
	t.Parallel()
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer b.Close()
	exerciseBackend(t, b)
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plans.db")

	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "last_sync", "2024-04-15T00:00:00Z"))
	require.NoError(t, b.Close())

	b, err = NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b.Close()
	v, ok, err := b.Get(ctx, "last_sync")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-04-15T00:00:00Z", v)
}

func TestFileBackend(t *testing.T) {
	t.Parallel()
	b, err := NewFileBackend(afero.NewMemMapFs(), "/data/plans.json")
	require.NoError(t, err)
	exerciseBackend(t, b)
}

func TestFileBackend_ReloadsDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	b, err := NewFileBackend(fs, "/data/plans.json")
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "plans", `[{"id":"1"}]`))

	reopened, err := NewFileBackend(fs, "/data/plans.json")
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, "plans")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"1"}]`, v)

	exists, err := afero.Exists(fs, "/data/plans.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temporary file must be renamed away")
}

func TestFileBackend_CorruptDocument(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/plans.json", []byte("{not json"), 0o600))

	_, err := NewFileBackend(fs, "/data/plans.json")
	assert.Error(t, err)
}

func TestFileBackend_ReadOnlyFsRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/data/plans.json", []byte(`{"a":"1"}`), 0o600))

	b, err := NewFileBackend(afero.NewReadOnlyFs(base), "/data/plans.json")
	require.NoError(t, err)

	assert.Error(t, b.Set(ctx, "b", "2"))
	_, ok, err := b.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok, "failed write must not remain visible")
}

func TestRedisBackend(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	b, err := NewRedisBackend(context.Background(), url, "tripplan-test:")
	require.NoError(t, err)
	defer b.Close()
	exerciseBackend(t, b)
}

func TestPostgresBackend(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	b, err := NewPostgresBackend(context.Background(), url)
	require.NoError(t, err)
	defer b.Close()
	exerciseBackend(t, b)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"memory", "memory://", false},
		{"sqlite", "sqlite://" + filepath.Join(t.TempDir(), "kv.db"), false},
		{"file", "file://" + filepath.Join(t.TempDir(), "kv.json"), false},
		{"missing scheme", "plans.db", true},
		{"unknown scheme", "etcd://localhost", true},
		{"sqlite without path", "sqlite://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := Open(context.Background(), tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer b.Close()
			assert.NoError(t, b.Ping(context.Background()))
		})
	}
}

func TestScheme(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "postgres", Scheme("POSTGRES://user:secret@db/plans"))
	assert.Equal(t, "sqlite", Scheme("sqlite://./plans.db"))
	assert.Equal(t, "", Scheme("plans.db"))
}

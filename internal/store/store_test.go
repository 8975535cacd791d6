package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/echostash/echostash-automation/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://qa-ledger.turso.io",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://qa-ledger.turso.io?authToken=token123", dsn)
	})

	t.Run("URLKeepsExistingToken", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://qa-ledger.turso.io?authToken=mine",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://qa-ledger.turso.io?authToken=mine", dsn)
	})

	t.Run("PlainPathGetsFilePrefix", func(t *testing.T) {
		dir := t.TempDir()
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: dir + "/nested/ledger.db"})
		require.NoError(t, err)
		require.Equal(t, "file:"+dir+"/nested/ledger.db", dsn)
		require.DirExists(t, dir+"/nested")
	})

	t.Run("PathMissing", func(t *testing.T) {
		_, err := buildLibsqlDSN(config.StoreConfig{})
		require.Error(t, err)
	})

	t.Run("MemoryPath", func(t *testing.T) {
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
		require.False(t, isLocalDSN(dsn))
	})
}

func TestPendingQueryValidate(t *testing.T) {
	require.Error(t, PendingQuery{}.Validate())
	require.NoError(t, PendingQuery{All: true}.Validate())
	require.NoError(t, PendingQuery{RunID: "abc"}.Validate())

	where, args, err := PendingQuery{RunID: "abc", Env: "stage"}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE cleaned_at IS NULL AND run_id = ? AND env = ?", where)
	require.Equal(t, []any{"abc", "stage"}, args)

	where, args, err = PendingQuery{All: true, RunID: "ignored"}.whereClause()
	require.NoError(t, err)
	require.Equal(t, "WHERE cleaned_at IS NULL", where)
	require.Empty(t, args)
}

func TestNilStoreGuards(t *testing.T) {
	var s *Store
	require.NoError(t, s.Close())
	require.Equal(t, "", s.Driver())
	require.Error(t, s.Migrate(context.Background()))
	_, err := s.Pending(context.Background(), PendingQuery{All: true})
	require.Error(t, err)
}

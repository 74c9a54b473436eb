// Package sqlitetest opens throwaway entity stores for tests.
package sqlitetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/goran-ethernal/NFTIndexor/internal/logger"
	"github.com/goran-ethernal/NFTIndexor/internal/store/sqlite"
	"github.com/goran-ethernal/NFTIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

// Open creates a migrated entity store in a temp dir.
func Open(t testing.TB) *sqlite.Store {
	t.Helper()

	cfg := config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "entities.sqlite")}
	cfg.ApplyDefaults()

	s, err := sqlite.Open(cfg, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

// Begin opens a store and starts a transaction that is rolled back at cleanup.
func Begin(t testing.TB) (*sqlite.Store, *sqlite.Tx) {
	t.Helper()

	s := Open(t)

	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(tx.Rollback)

	return s, tx
}

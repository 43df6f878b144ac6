package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/contextmeet/contextmeet/internal/database"
)

// TestDBOption customises MustOpenTestDB.
type TestDBOption func(*options)

type options struct {
	autoMigrate bool
}

// WithAutoMigrate applies the full schema after opening.
func WithAutoMigrate() TestDBOption {
	return func(o *options) { o.autoMigrate = true }
}

// MustOpenTestDB opens an in-memory sqlite database for a test and closes
// it via t.Cleanup. Service tests share this so every suite sees the same
// schema the server migrates.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if o.autoMigrate {
		require.NoError(t, database.AutoMigrate(db))
	}

	return db
}

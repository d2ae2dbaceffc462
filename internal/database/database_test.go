//go:build integration

package database_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/cloo-solutions/docqa/internal/database"
	"github.com/cloo-solutions/docqa/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMigrations = "file://../../migrations"

func TestMigrate_UpDownUp(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, database.Migrate(pc.ConnectionString(), testMigrations, database.MigrateUp, logger))
	// second run is a no-op
	require.NoError(t, database.Migrate(pc.ConnectionString(), testMigrations, database.MigrateUp, logger))

	pool, err := database.NewPool(ctx, database.Config{URL: pc.ConnectionString(), MaxConns: 4})
	require.NoError(t, err)
	defer pool.Close()

	var tables int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_name IN ('documents', 'passage_embeddings', 'conversations')`,
	).Scan(&tables))
	assert.Equal(t, 3, tables)

	require.NoError(t, database.Migrate(pc.ConnectionString(), testMigrations, database.MigrateDown, logger))
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'documents'`,
	).Scan(&tables))
	assert.Equal(t, 0, tables)

	require.NoError(t, database.Migrate(pc.ConnectionString(), testMigrations, database.MigrateUp, logger))
}

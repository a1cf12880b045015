package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-hive/hivewatch/internal/database"
	"github.com/go-hive/hivewatch/internal/suppression/model"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T, path string) *database.DB {
	t.Helper()
	db, err := database.Open(path, time.Second)
	require.NoError(t, err)
	return db
}

func TestDB_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hivewatch.db")
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rules := []model.Rule{
		model.NewRule("hive-1", model.KindBounded, time.Hour, now),
		model.NewRule("hive-2", model.KindSession, 0, now),
	}

	db := openDB(t, path)
	require.NoError(t, New(db).Save(ctx, rules))
	require.NoError(t, db.Close(ctx))

	db = openDB(t, path)
	defer db.Close(ctx)
	got, err := New(db).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, rules, got)
}

func TestDB_LoadEmpty(t *testing.T) {
	ctx := context.Background()
	db := openDB(t, filepath.Join(t.TempDir(), "hivewatch.db"))
	defer db.Close(ctx)

	got, err := New(db).Load(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}

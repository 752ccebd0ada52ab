// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "miau.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestMigrationsCreateSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"anime", "episodes", "seasons", "torrents", "migrations"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "miau.db")

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// reopening must not re-apply recorded migrations
	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()

	var applied int
	err = db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM migrations").Scan(&applied)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
}

func TestExecContextRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		"INSERT INTO anime (id, title) VALUES (?, ?)", "a1", `{"romaji":"Test"}`)
	require.NoError(t, err)

	var title string
	err = db.QueryRowContext(ctx, "SELECT title FROM anime WHERE id = ?", "a1").Scan(&title)
	require.NoError(t, err)
	assert.Equal(t, `{"romaji":"Test"}`, title)
}

func TestBeginTxRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	_, err = tx.ExecContext(ctx, "INSERT INTO anime (id, title) VALUES (?, ?)", "a1", "{}")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM anime").Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIsWriteQuery(t *testing.T) {
	tests := []struct {
		query    string
		expected bool
	}{
		{"INSERT INTO anime VALUES (1)", true},
		{"  update anime set year = 2020", true},
		{"DELETE FROM torrents", true},
		{"REPLACE INTO seasons VALUES (1)", true},
		{"SELECT * FROM anime", false},
		{"PRAGMA optimize", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.expected, isWriteQuery(tt.query))
		})
	}
}

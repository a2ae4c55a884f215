package migrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"001_create_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
		"001_create_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
		"002_add_name.up.sql":         {Data: []byte("ALTER TABLE widgets ADD COLUMN name TEXT;")},
		"002_add_name.down.sql":       {Data: []byte("ALTER TABLE widgets DROP COLUMN name;")},
		"README.md":                   {Data: []byte("ignored")},
	}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n))
	return n == 1
}

func TestGetMigrations(t *testing.T) {
	migrations, err := NewFSProvider(testFS(), "").GetMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	byVersion := map[int]Migration{}
	for _, m := range migrations {
		byVersion[m.Version] = m
	}
	assert.Equal(t, "create widgets", byVersion[1].Name)
	assert.Contains(t, byVersion[2].Up, "ADD COLUMN")
	assert.Contains(t, byVersion[2].Down, "DROP COLUMN")
}

func TestGetMigrationsRejectsVersionZero(t *testing.T) {
	fsys := fstest.MapFS{"000_bad.up.sql": {Data: []byte("SELECT 1;")}}
	_, err := NewFSProvider(fsys, "").GetMigrations()
	assert.Error(t, err)
}

func TestMigrateUpAndDown(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testFS(), "test_migrations"), nil)

	pending, err := m.PendingMigrations()
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, m.MigrateUp())
	v, err := m.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.True(t, tableExists(t, db, "widgets"))

	// a second run is a no-op
	require.NoError(t, m.MigrateUp())

	require.NoError(t, m.MigrateDown(0))
	v, err = m.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 0, v)
	assert.False(t, tableExists(t, db, "widgets"))

	require.NoError(t, m.MigrateTo(1))
	v, err = m.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	assert.Error(t, m.MigrateDown(1))
	assert.Error(t, m.MigrateDown(-1))
}

func TestFailedMigrationRollsBack(t *testing.T) {
	fsys := testFS()
	fsys["003_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE nope (;")}

	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(fsys, ""), nil)
	require.Error(t, m.MigrateUp())

	v, err := m.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMissingDownSQL(t *testing.T) {
	fsys := fstest.MapFS{"001_only_up.up.sql": {Data: []byte("CREATE TABLE t (id INTEGER);")}}
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(fsys, ""), nil)
	require.NoError(t, m.MigrateUp())
	assert.Error(t, m.MigrateDown(0))
}

package sqlitemigrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func queryInt64(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var value int64
	if err := db.QueryRow(query).Scan(&value); err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	return value
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var found int
	err := db.QueryRow(
		"SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("lookup table %q: %v", name, err)
	}
	return true
}

func TestApplyRecordsMigrations(t *testing.T) {
	db := openInMemoryDB(t)

	fsys := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE widgets(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE widgets;"),
		},
	}
	if err := Apply(db, fsys); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 1 {
		t.Fatalf("migration rows = %d, want 1", rows)
	}
	if !tableExists(t, db, "widgets") {
		t.Fatal("expected migrated table to exist")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	db := openInMemoryDB(t)

	fsys := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE widgets(id TEXT PRIMARY KEY);"),
		},
	}
	if err := Apply(db, fsys); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := Apply(db, fsys); err != nil {
		t.Fatalf("re-apply should be idempotent: %v", err)
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 1 {
		t.Fatalf("migration rows after replay = %d, want 1", rows)
	}
}

func TestApplyRunsFilesInNameOrder(t *testing.T) {
	db := openInMemoryDB(t)

	fsys := fstest.MapFS{
		"002_alter.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nALTER TABLE widgets ADD COLUMN label TEXT;"),
		},
		"001_create.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE widgets(id TEXT PRIMARY KEY);"),
		},
	}
	if err := Apply(db, fsys); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 2 {
		t.Fatalf("migration rows = %d, want 2", rows)
	}
}

func TestApplyToleratesReplayedDDL(t *testing.T) {
	db := openInMemoryDB(t)

	if _, err := db.Exec("CREATE TABLE widgets(id TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("precreate table: %v", err)
	}
	fsys := fstest.MapFS{
		"001_create.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE widgets(id TEXT PRIMARY KEY);"),
		},
	}
	if err := Apply(db, fsys); err != nil {
		t.Fatalf("apply over existing table: %v", err)
	}
}

func TestApplySkipsEmptyUpSection(t *testing.T) {
	db := openInMemoryDB(t)

	fsys := fstest.MapFS{
		"001_noop.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\n\n-- +migrate Down\nDROP TABLE widgets;"),
		},
	}
	if err := Apply(db, fsys); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rows := queryInt64(t, db, "SELECT COUNT(*) FROM schema_migrations"); rows != 0 {
		t.Fatalf("migration rows = %d, want none for an empty up section", rows)
	}
}

func TestUpSection(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "both markers",
			content: "-- +migrate Up\nCREATE TABLE a(x);\n-- +migrate Down\nDROP TABLE a;",
			want:    "\nCREATE TABLE a(x);\n",
		},
		{
			name:    "no markers",
			content: "CREATE TABLE a(x);",
			want:    "CREATE TABLE a(x);",
		},
		{
			name:    "up only",
			content: "-- +migrate Up\nCREATE TABLE a(x);",
			want:    "\nCREATE TABLE a(x);",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := upSection(tt.content); got != tt.want {
				t.Fatalf("upSection = %q, want %q", got, tt.want)
			}
		})
	}
}

package migrate

import (
	"testing"

	"sprintdeck/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := Migrate(conn); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var version int
	if err := conn.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != 1 {
		t.Fatalf("version = %d", version)
	}
	if _, err := conn.Exec(`INSERT INTO collections(org_id, kind, records_json, updated_at) VALUES ('org-1','tickets','[]','2026-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("schema missing collections table: %v", err)
	}
}

package store_test

import (
	"context"
	"errors"
	"testing"

	"sprintdeck/internal/db"
	"sprintdeck/internal/domain"
	"sprintdeck/internal/migrate"
	"sprintdeck/internal/store"
)

func newSQLite(t *testing.T) *store.SQLite {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.NewSQLite(conn)
}

func TestSQLiteUnknownOrgReadsEmpty(t *testing.T) {
	st := newSQLite(t)
	ctx := context.Background()

	tickets, err := st.Tickets().ReadAll(ctx, "nobody")
	if err != nil {
		t.Fatalf("read tickets: %v", err)
	}
	if tickets == nil || len(tickets) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", tickets)
	}
	tasks, err := st.Tasks().ReadAll(ctx, "nobody")
	if err != nil {
		t.Fatalf("read tasks: %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", tasks)
	}
}

func TestSQLiteWriteAllReplacesAndSorts(t *testing.T) {
	st := newSQLite(t)
	ctx := context.Background()

	in := []domain.Ticket{
		{ID: "a", OrgID: "org-1", Title: "older", Assignee: "x", Status: "backlog", CreatedAt: "2026-01-01T00:00:00Z"},
		{ID: "b", OrgID: "org-1", Title: "newer", Assignee: "x", Status: "backlog", CreatedAt: "2026-02-01T00:00:00Z"},
	}
	out, err := st.Tickets().WriteAll(ctx, "org-1", in)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if out[0].ID != "b" || out[1].ID != "a" {
		t.Fatalf("not sorted newest first: %+v", out)
	}

	// second write replaces the whole collection
	if _, err = st.Tickets().WriteAll(ctx, "org-1", []domain.Ticket{in[0]}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got, err := st.Tickets().ReadAll(ctx, "org-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("write-all did not replace: %+v", got)
	}
}

func TestSQLiteCreatedAtTiebreakByID(t *testing.T) {
	st := newSQLite(t)
	ctx := context.Background()
	ts := "2026-02-01T00:00:00Z"
	out, err := st.Tickets().WriteAll(ctx, "org-1", []domain.Ticket{
		{ID: "aaa", OrgID: "org-1", Title: "t", Assignee: "x", Status: "backlog", CreatedAt: ts},
		{ID: "zzz", OrgID: "org-1", Title: "t", Assignee: "x", Status: "backlog", CreatedAt: ts},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if out[0].ID != "zzz" {
		t.Fatalf("tie broken wrong: %+v", out)
	}
}

func TestSQLiteTaskSortIncompleteFirst(t *testing.T) {
	st := newSQLite(t)
	ctx := context.Background()
	out, err := st.Tasks().WriteAll(ctx, "org-1", []domain.Task{
		{ID: "c", OrgID: "org-1", Text: "done already", Completed: true},
		{ID: "b", OrgID: "org-1", Text: "pending b"},
		{ID: "a", OrgID: "org-1", Text: "pending a"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if out[0].ID != "a" || out[1].ID != "b" || out[2].ID != "c" {
		t.Fatalf("order: %+v", out)
	}
}

func TestSQLiteOrgsDoNotShareRows(t *testing.T) {
	st := newSQLite(t)
	ctx := context.Background()
	if _, err := st.Tickets().WriteAll(ctx, "org-a", []domain.Ticket{
		{ID: "1", OrgID: "org-a", Title: "t", Assignee: "x", Status: "backlog", CreatedAt: "2026-01-01T00:00:00Z"},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	other, err := st.Tickets().ReadAll(ctx, "org-b")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("org-b reads org-a data: %+v", other)
	}
}

func TestMemoryMirrorsSQLiteSemantics(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	empty, err := mem.Tickets().ReadAll(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty read: %v %+v", err, empty)
	}
	out, err := mem.Tickets().WriteAll(ctx, "org-1", []domain.Ticket{
		{ID: "a", CreatedAt: "2026-01-01T00:00:00Z"},
		{ID: "b", CreatedAt: "2026-02-01T00:00:00Z"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if out[0].ID != "b" {
		t.Fatalf("not sorted: %+v", out)
	}
	got, _ := mem.Tickets().ReadAll(ctx, "org-1")
	if len(got) != 2 {
		t.Fatalf("round trip: %+v", got)
	}
}

func TestAPIKeys(t *testing.T) {
	st := newSQLite(t)
	keys := store.Keys{DB: st.DB}
	ctx := context.Background()

	hash := store.HashAPIKey("  secret-key  ")
	if hash != store.HashAPIKey("secret-key") {
		t.Fatal("hash must trim whitespace")
	}

	err := keys.Insert(ctx, domain.APIKey{ID: "k1", OrgID: "org-1", Name: "ci", KeyHash: hash})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := keys.GetByHash(ctx, hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OrgID != "org-1" || got.Name != "ci" {
		t.Fatalf("got %+v", got)
	}
	if _, err := keys.GetByHash(ctx, store.HashAPIKey("wrong")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	list, err := keys.List(ctx, "org-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}
	if err := keys.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := keys.GetByHash(ctx, hash); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAPIKeysLookupWithoutDatabase(t *testing.T) {
	_, err := store.Keys{}.GetByHash(context.Background(), store.HashAPIKey("k"))
	if err == nil {
		t.Fatal("expected error when no database is open")
	}
	if errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want a configuration error, got %v", err)
	}
}

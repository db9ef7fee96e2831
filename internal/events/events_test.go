package events_test

import (
	"context"
	"testing"
	"time"

	"sprintdeck/internal/db"
	"sprintdeck/internal/events"
	"sprintdeck/internal/migrate"
)

func TestNilDBDiscards(t *testing.T) {
	w := events.Writer{}
	if err := w.Append(context.Background(), "ticket.created", "org-1", "ticket", "t-1", nil); err != nil {
		t.Fatalf("nil-db append: %v", err)
	}
}

func TestAppendAndTail(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	w := events.Writer{DB: conn, Now: func() time.Time {
		return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}}

	for i, typ := range []string{"ticket.created", "ticket.status_changed", "ticket.deleted"} {
		if err := w.Append(ctx, typ, "org-1", "ticket", "t-1", events.EventPayload{"i": i}); err != nil {
			t.Fatalf("append %s: %v", typ, err)
		}
	}
	if err := w.Append(ctx, "ticket.created", "org-other", "ticket", "x", nil); err != nil {
		t.Fatalf("append other org: %v", err)
	}

	got, err := events.Tail(ctx, conn, "org-1", 2)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	// newest first
	if got[0].Type != "ticket.deleted" || got[1].Type != "ticket.status_changed" {
		t.Fatalf("order: %+v", got)
	}
	if got[0].OrgID != "org-1" {
		t.Fatalf("org leak: %+v", got[0])
	}

	all, err := events.Tail(ctx, conn, "org-1", 0)
	if err != nil {
		t.Fatalf("tail default: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("default limit should return all 3, got %d", len(all))
	}
}

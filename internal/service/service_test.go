package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sprintdeck/internal/events"
	"sprintdeck/internal/service"
	"sprintdeck/internal/store"
)

func newTicketService(t *testing.T, orgID string) (*service.Tickets, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := service.NewTickets(mem.Tickets(), events.Writer{}, orgID)
	return svc, mem
}

func TestTicketLifecycle(t *testing.T) {
	svc, _ := newTicketService(t, "org-1")
	ctx := context.Background()

	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty collection, got %d", len(items))
	}

	items, err = svc.Create(ctx, service.TicketCreateOptions{Title: "Fix login", Assignee: "alex"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected full collection of 1, got %d", len(items))
	}
	created := items[0]
	if created.Status != "backlog" {
		t.Fatalf("new ticket status = %s, want backlog", created.Status)
	}
	if created.OrgID != "org-1" {
		t.Fatalf("org = %s", created.OrgID)
	}
	if created.CreatedAt == "" || created.CreatedAt != created.UpdatedAt {
		t.Fatalf("timestamps: created=%q updated=%q", created.CreatedAt, created.UpdatedAt)
	}

	items, err = svc.UpdateStatus(ctx, created.ID, "in-progress")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if items[0].Status != "in-progress" {
		t.Fatalf("status = %s", items[0].Status)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "in-progress" {
		t.Fatalf("get status = %s", got.Status)
	}

	items, err = svc.Delete(ctx, created.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty collection after delete, got %d", len(items))
	}
}

func TestTicketCreateValidation(t *testing.T) {
	svc, _ := newTicketService(t, "org-1")
	ctx := context.Background()
	if _, err := svc.Create(ctx, service.TicketCreateOptions{Assignee: "alex"}); err == nil {
		t.Fatal("expected error for missing title")
	}
	if _, err := svc.Create(ctx, service.TicketCreateOptions{Title: "x"}); err == nil {
		t.Fatal("expected error for missing assignee")
	}
	if items, err := svc.List(ctx); err != nil || len(items) != 0 {
		t.Fatalf("rejected create must not persist: %v %d", err, len(items))
	}
}

func TestTicketInvalidStatusRejectedWithoutWrite(t *testing.T) {
	svc, _ := newTicketService(t, "org-1")
	ctx := context.Background()
	items, err := svc.Create(ctx, service.TicketCreateOptions{Title: "a", Assignee: "b"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := items[0].ID

	if _, err := svc.UpdateStatus(ctx, id, "blocked"); err == nil {
		t.Fatal("expected invalid status error")
	}
	got, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "backlog" {
		t.Fatalf("invalid update must not persist, status = %s", got.Status)
	}
}

func TestTicketNotFoundIsSentinel(t *testing.T) {
	svc, _ := newTicketService(t, "org-1")
	ctx := context.Background()

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "missing", "done"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	// Deleting an absent ticket fails the same way every time.
	for i := 0; i < 2; i++ {
		if _, err := svc.Delete(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("delete #%d: expected ErrNotFound, got %v", i+1, err)
		}
	}
}

func TestTicketOrderingNewestFirst(t *testing.T) {
	svc, _ := newTicketService(t, "org-1")
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	i := 0
	svc.Now = func() time.Time {
		i++
		return base.Add(time.Duration(i) * time.Minute)
	}

	for _, title := range []string{"first", "second", "third"} {
		if _, err := svc.Create(ctx, service.TicketCreateOptions{Title: title, Assignee: "alex"}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"third", "second", "first"}
	for idx, w := range want {
		if items[idx].Title != w {
			t.Fatalf("position %d = %s, want %s", idx, items[idx].Title, w)
		}
	}
}

func TestTenantIsolation(t *testing.T) {
	mem := store.NewMemory()
	a := service.NewTickets(mem.Tickets(), events.Writer{}, "org-a")
	b := service.NewTickets(mem.Tickets(), events.Writer{}, "org-b")
	ctx := context.Background()

	items, err := a.Create(ctx, service.TicketCreateOptions{Title: "only in a", Assignee: "alex"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := items[0].ID

	other, err := b.List(ctx)
	if err != nil {
		t.Fatalf("list org-b: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("org-b sees org-a tickets: %d", len(other))
	}
	if _, err := b.Get(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-org get: expected ErrNotFound, got %v", err)
	}
	if _, err := b.Delete(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-org delete: expected ErrNotFound, got %v", err)
	}
	mine, _ := a.List(ctx)
	if len(mine) != 1 {
		t.Fatalf("org-a collection damaged: %d", len(mine))
	}
}

func TestTicketScenarioEndToEnd(t *testing.T) {
	svc, _ := newTicketService(t, "org-1")
	ctx := context.Background()
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	items, err := svc.Create(ctx, service.TicketCreateOptions{Title: "Fix bug", Assignee: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(items) != 1 || items[0].Status != "backlog" || items[0].Title != "Fix bug" || items[0].Assignee != "alice" {
		t.Fatalf("created = %+v", items)
	}
	id := items[0].ID
	createdAt := items[0].CreatedAt

	items, err = svc.UpdateStatus(ctx, id, "done")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(items) != 1 || items[0].Status != "done" {
		t.Fatalf("after update = %+v", items)
	}
	if items[0].UpdatedAt == createdAt {
		t.Fatal("updated_at must change on status update")
	}
	if items[0].CreatedAt != createdAt {
		t.Fatal("created_at must not change")
	}

	items, err = svc.Delete(ctx, id)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("after delete = %+v", items)
	}
	if _, err := svc.Delete(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestTicketSearchFiltersAreANDed(t *testing.T) {
	svc, _ := newTicketService(t, "org-1")
	ctx := context.Background()

	seed := []service.TicketCreateOptions{
		{Title: "Fix login page", Assignee: "Alex"},
		{Title: "Fix logout", Assignee: "blair"},
		{Title: "Write docs", Assignee: "alex"},
	}
	for _, opts := range seed {
		if _, err := svc.Create(ctx, opts); err != nil {
			t.Fatalf("seed %s: %v", opts.Title, err)
		}
	}
	all, _ := svc.List(ctx)
	// move "Write docs" to done
	for _, tk := range all {
		if tk.Title == "Write docs" {
			if _, err := svc.UpdateStatus(ctx, tk.ID, "done"); err != nil {
				t.Fatalf("update: %v", err)
			}
		}
	}

	got, err := svc.Search(ctx, service.TicketFilter{Assignee: "ALEX"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("assignee filter is case-insensitive, want 2, got %d", len(got))
	}

	got, _ = svc.Search(ctx, service.TicketFilter{Title: "fix"})
	if len(got) != 2 {
		t.Fatalf("title substring, want 2, got %d", len(got))
	}

	got, _ = svc.Search(ctx, service.TicketFilter{Assignee: "alex", Status: "done"})
	if len(got) != 1 || got[0].Title != "Write docs" {
		t.Fatalf("ANDed filters, got %+v", got)
	}

	got, _ = svc.Search(ctx, service.TicketFilter{Status: "review"})
	if len(got) != 0 {
		t.Fatalf("no review tickets expected, got %d", len(got))
	}
}

func TestTicketStatistics(t *testing.T) {
	svc, _ := newTicketService(t, "org-1")
	ctx := context.Background()

	for _, opts := range []service.TicketCreateOptions{
		{Title: "t1", Assignee: "alex"},
		{Title: "t2", Assignee: "alex"},
		{Title: "t3", Assignee: "blair"},
	} {
		if _, err := svc.Create(ctx, opts); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	all, _ := svc.List(ctx)
	if _, err := svc.UpdateStatus(ctx, all[0].ID, "done"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, all[1].ID, "done"); err != nil {
		t.Fatalf("update: %v", err)
	}

	stats, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("total = %d", stats.Total)
	}
	if stats.Status["backlog"] != 1 || stats.Status["done"] != 2 {
		t.Fatalf("status counts = %v", stats.Status)
	}
	if stats.Assignees["alex"]+stats.Assignees["blair"] != 3 {
		t.Fatalf("assignee counts = %v", stats.Assignees)
	}
}

func TestTaskLifecycleAndOrdering(t *testing.T) {
	mem := store.NewMemory()
	svc := service.NewTasks(mem.Tasks(), events.Writer{}, "org-1")
	ctx := context.Background()

	if _, err := svc.Create(ctx, ""); err == nil {
		t.Fatal("expected error for empty text")
	}

	for _, text := range []string{"write tests", "review PR", "deploy"} {
		if _, err := svc.Create(ctx, text); err != nil {
			t.Fatalf("create %s: %v", text, err)
		}
	}
	items, _ := svc.List(ctx)
	if len(items) != 3 {
		t.Fatalf("len = %d", len(items))
	}

	// complete the first listed task; it must sink below incomplete ones
	completedID := items[0].ID
	items, err := svc.SetCompleted(ctx, completedID, true)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if items[len(items)-1].ID != completedID {
		t.Fatalf("completed task should list last, got order %+v", items)
	}
	for i := 0; i < len(items)-1; i++ {
		if items[i].Completed {
			t.Fatalf("incomplete tasks must list first: %+v", items)
		}
		if i > 0 && items[i-1].ID > items[i].ID {
			t.Fatalf("incomplete group not id-ascending: %+v", items)
		}
	}

	stats, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Completed != 1 || stats.Remaining != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	if _, err := svc.SetCompleted(ctx, "missing", true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	items, err = svc.Delete(ctx, completedID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len after delete = %d", len(items))
	}
}

func TestTaskGet(t *testing.T) {
	mem := store.NewMemory()
	svc := service.NewTasks(mem.Tasks(), events.Writer{}, "org-1")
	ctx := context.Background()

	items, err := svc.Create(ctx, "write docs")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.Get(ctx, items[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "write docs" || got.OrgID != "org-1" {
		t.Fatalf("got %+v", got)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

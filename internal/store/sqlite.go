package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"sprintdeck/internal/domain"
)

// SQLite keeps each org's collection as a single JSON row keyed by
// (org_id, kind); the row UPSERT is the atomicity unit.
type SQLite struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db, Now: time.Now}
}

func (s *SQLite) readRaw(ctx context.Context, orgID, kind string) ([]byte, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx,
		`SELECT records_json FROM collections WHERE org_id=? AND kind=?`, orgID, kind).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

func (s *SQLite) writeRaw(ctx context.Context, orgID, kind string, payload []byte) error {
	now := s.now().UTC().Format(time.RFC3339)
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO collections(org_id,kind,records_json,updated_at) VALUES (?,?,?,?)
ON CONFLICT(org_id,kind) DO UPDATE SET records_json=excluded.records_json, updated_at=excluded.updated_at`,
		orgID, kind, string(payload), now)
	return err
}

func (s *SQLite) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SQLite) Tickets() TicketStore { return sqliteTickets{s} }
func (s *SQLite) Tasks() TaskStore     { return sqliteTasks{s} }

type sqliteTickets struct{ s *SQLite }

func (t sqliteTickets) ReadAll(ctx context.Context, orgID string) ([]domain.Ticket, error) {
	raw, err := t.s.readRaw(ctx, orgID, KindTickets)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []domain.Ticket{}, nil
	}
	var tickets []domain.Ticket
	if err := json.Unmarshal(raw, &tickets); err != nil {
		return nil, fmt.Errorf("decode tickets for org %s: %w", orgID, err)
	}
	return tickets, nil
}

func (t sqliteTickets) WriteAll(ctx context.Context, orgID string, tickets []domain.Ticket) ([]domain.Ticket, error) {
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	domain.SortTickets(tickets)
	payload, err := json.Marshal(tickets)
	if err != nil {
		return nil, fmt.Errorf("encode tickets for org %s: %w", orgID, err)
	}
	if err := t.s.writeRaw(ctx, orgID, KindTickets, payload); err != nil {
		return nil, err
	}
	return tickets, nil
}

type sqliteTasks struct{ s *SQLite }

func (t sqliteTasks) ReadAll(ctx context.Context, orgID string) ([]domain.Task, error) {
	raw, err := t.s.readRaw(ctx, orgID, KindTasks)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []domain.Task{}, nil
	}
	var tasks []domain.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks for org %s: %w", orgID, err)
	}
	return tasks, nil
}

func (t sqliteTasks) WriteAll(ctx context.Context, orgID string, tasks []domain.Task) ([]domain.Task, error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	domain.SortTasks(tasks)
	payload, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("encode tasks for org %s: %w", orgID, err)
	}
	if err := t.s.writeRaw(ctx, orgID, KindTasks, payload); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Package store persists per-tenant record collections. The only contract a
// backend has to honor is read-all / write-all of the full collection for a
// given org key: every write is a wholesale replacement, and the single
// per-key write is the only unit of atomicity. Concurrent read-modify-write
// sequences against the same org can therefore lose updates; callers accept
// that.
package store

import (
	"context"
	"errors"

	"sprintdeck/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Collection kinds as stored under the (org, kind) key.
const (
	KindTickets = "tickets"
	KindTasks   = "tasks"
)

// TicketStore reads and replaces an org's ticket collection. ReadAll on an
// unknown org returns an empty collection, never an error. WriteAll sorts
// per the listing order before persisting and returns what was stored.
type TicketStore interface {
	ReadAll(ctx context.Context, orgID string) ([]domain.Ticket, error)
	WriteAll(ctx context.Context, orgID string, tickets []domain.Ticket) ([]domain.Ticket, error)
}

// TaskStore is the task-list analogue of TicketStore.
type TaskStore interface {
	ReadAll(ctx context.Context, orgID string) ([]domain.Task, error)
	WriteAll(ctx context.Context, orgID string, tasks []domain.Task) ([]domain.Task, error)
}

// Package service owns the domain rules over a tenant's record collections.
// A service is bound to one org at construction and is stateless between
// calls: every operation re-reads the collection and, when mutating,
// rewrites it wholesale. Mutations return the full refreshed collection so
// REST and tool clients can refresh their view in one round trip; that is a
// documented contract, not an accident.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sprintdeck/internal/domain"
	"sprintdeck/internal/events"
	"sprintdeck/internal/store"
)

type Tickets struct {
	Store  store.TicketStore
	Events events.Writer
	OrgID  string
	Now    func() time.Time
}

func NewTickets(st store.TicketStore, ev events.Writer, orgID string) *Tickets {
	return &Tickets{Store: st, Events: ev, OrgID: orgID, Now: time.Now}
}

func (s *Tickets) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Tickets) List(ctx context.Context) ([]domain.Ticket, error) {
	return s.Store.ReadAll(ctx, s.OrgID)
}

func (s *Tickets) Get(ctx context.Context, id string) (domain.Ticket, error) {
	tickets, err := s.Store.ReadAll(ctx, s.OrgID)
	if err != nil {
		return domain.Ticket{}, err
	}
	for _, t := range tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Ticket{}, store.ErrNotFound
}

// TicketCreateOptions are parameters for creating a ticket.
type TicketCreateOptions struct {
	Title       string
	Assignee    string
	Description string
}

func (s *Tickets) Create(ctx context.Context, opts TicketCreateOptions) ([]domain.Ticket, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return nil, errors.New("title is required")
	}
	if strings.TrimSpace(opts.Assignee) == "" {
		return nil, errors.New("assignee is required")
	}
	tickets, err := s.Store.ReadAll(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Format(time.RFC3339)
	ticket := domain.Ticket{
		ID:          uuid.NewString(),
		OrgID:       s.OrgID,
		Title:       opts.Title,
		Assignee:    opts.Assignee,
		Status:      domain.StatusBacklog,
		Description: opts.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tickets = append(tickets, ticket)
	persisted, err := s.Store.WriteAll(ctx, s.OrgID, tickets)
	if err != nil {
		return nil, err
	}
	if err := s.Events.Append(ctx, "ticket.created", s.OrgID, "ticket", ticket.ID, events.EventPayload{"title": ticket.Title, "assignee": ticket.Assignee}); err != nil {
		return nil, err
	}
	return persisted, nil
}

func (s *Tickets) UpdateStatus(ctx context.Context, id, status string) ([]domain.Ticket, error) {
	if !domain.ValidStatus(status) {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	tickets, err := s.Store.ReadAll(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range tickets {
		if tickets[i].ID == id {
			tickets[i].Status = status
			tickets[i].UpdatedAt = s.now().UTC().Format(time.RFC3339)
			found = true
			break
		}
	}
	if !found {
		return nil, store.ErrNotFound
	}
	persisted, err := s.Store.WriteAll(ctx, s.OrgID, tickets)
	if err != nil {
		return nil, err
	}
	if err := s.Events.Append(ctx, "ticket.status_changed", s.OrgID, "ticket", id, events.EventPayload{"status": status}); err != nil {
		return nil, err
	}
	return persisted, nil
}

func (s *Tickets) Delete(ctx context.Context, id string) ([]domain.Ticket, error) {
	tickets, err := s.Store.ReadAll(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	kept := tickets[:0]
	found := false
	for _, t := range tickets {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return nil, store.ErrNotFound
	}
	persisted, err := s.Store.WriteAll(ctx, s.OrgID, kept)
	if err != nil {
		return nil, err
	}
	if err := s.Events.Append(ctx, "ticket.deleted", s.OrgID, "ticket", id, nil); err != nil {
		return nil, err
	}
	return persisted, nil
}

// TicketFilter predicates are ANDed; zero values impose no constraint.
// Status is an exact match, Assignee a case-insensitive exact match, and
// Title a case-insensitive substring match.
type TicketFilter struct {
	Status   string
	Assignee string
	Title    string
}

func (f TicketFilter) matches(t domain.Ticket) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Assignee != "" && !strings.EqualFold(t.Assignee, f.Assignee) {
		return false
	}
	if f.Title != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.Title)) {
		return false
	}
	return true
}

func (s *Tickets) Search(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.Store.ReadAll(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	res := []domain.Ticket{}
	for _, t := range tickets {
		if filter.matches(t) {
			res = append(res, t)
		}
	}
	return res, nil
}

func (s *Tickets) Statistics(ctx context.Context) (domain.TicketStats, error) {
	tickets, err := s.Store.ReadAll(ctx, s.OrgID)
	if err != nil {
		return domain.TicketStats{}, err
	}
	stats := domain.TicketStats{
		OrgID:     s.OrgID,
		Total:     len(tickets),
		Status:    domain.StatusCounts{},
		Assignees: domain.AssigneeCounts{},
	}
	for _, t := range tickets {
		stats.Status[t.Status]++
		if t.Assignee != "" {
			stats.Assignees[t.Assignee]++
		}
	}
	return stats, nil
}

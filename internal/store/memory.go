package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"sprintdeck/internal/domain"
)

// Memory is a per-process backend used by tests and the memory store mode.
// The mutex only guards the map itself, mirroring the single-key atomicity
// of the SQLite row; it deliberately does not serialize callers'
// read-modify-write sequences.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) readRaw(orgID, kind string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[orgID+"/"+kind]
}

func (m *Memory) writeRaw(orgID, kind string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[orgID+"/"+kind] = payload
}

func (m *Memory) Tickets() TicketStore { return memoryTickets{m} }
func (m *Memory) Tasks() TaskStore     { return memoryTasks{m} }

type memoryTickets struct{ m *Memory }

func (t memoryTickets) ReadAll(_ context.Context, orgID string) ([]domain.Ticket, error) {
	raw := t.m.readRaw(orgID, KindTickets)
	if raw == nil {
		return []domain.Ticket{}, nil
	}
	var tickets []domain.Ticket
	if err := json.Unmarshal(raw, &tickets); err != nil {
		return nil, fmt.Errorf("decode tickets for org %s: %w", orgID, err)
	}
	return tickets, nil
}

func (t memoryTickets) WriteAll(_ context.Context, orgID string, tickets []domain.Ticket) ([]domain.Ticket, error) {
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	domain.SortTickets(tickets)
	payload, err := json.Marshal(tickets)
	if err != nil {
		return nil, fmt.Errorf("encode tickets for org %s: %w", orgID, err)
	}
	t.m.writeRaw(orgID, KindTickets, payload)
	return tickets, nil
}

type memoryTasks struct{ m *Memory }

func (t memoryTasks) ReadAll(_ context.Context, orgID string) ([]domain.Task, error) {
	raw := t.m.readRaw(orgID, KindTasks)
	if raw == nil {
		return []domain.Task{}, nil
	}
	var tasks []domain.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks for org %s: %w", orgID, err)
	}
	return tasks, nil
}

func (t memoryTasks) WriteAll(_ context.Context, orgID string, tasks []domain.Task) ([]domain.Task, error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	domain.SortTasks(tasks)
	payload, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("encode tasks for org %s: %w", orgID, err)
	}
	t.m.writeRaw(orgID, KindTasks, payload)
	return tasks, nil
}

package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"sprintdeck/internal/domain"
	"sprintdeck/internal/events"
	"sprintdeck/internal/store"
)

type Tasks struct {
	Store  store.TaskStore
	Events events.Writer
	OrgID  string
}

func NewTasks(st store.TaskStore, ev events.Writer, orgID string) *Tasks {
	return &Tasks{Store: st, Events: ev, OrgID: orgID}
}

func (s *Tasks) List(ctx context.Context) ([]domain.Task, error) {
	return s.Store.ReadAll(ctx, s.OrgID)
}

func (s *Tasks) Get(ctx context.Context, id string) (domain.Task, error) {
	tasks, err := s.Store.ReadAll(ctx, s.OrgID)
	if err != nil {
		return domain.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Task{}, store.ErrNotFound
}

func (s *Tasks) Create(ctx context.Context, text string) ([]domain.Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required")
	}
	tasks, err := s.Store.ReadAll(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	task := domain.Task{
		ID:    uuid.NewString(),
		OrgID: s.OrgID,
		Text:  text,
	}
	tasks = append(tasks, task)
	persisted, err := s.Store.WriteAll(ctx, s.OrgID, tasks)
	if err != nil {
		return nil, err
	}
	if err := s.Events.Append(ctx, "task.created", s.OrgID, "task", task.ID, events.EventPayload{"text": task.Text}); err != nil {
		return nil, err
	}
	return persisted, nil
}

func (s *Tasks) SetCompleted(ctx context.Context, id string, completed bool) ([]domain.Task, error) {
	tasks, err := s.Store.ReadAll(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range tasks {
		if tasks[i].ID == id {
			tasks[i].Completed = completed
			found = true
			break
		}
	}
	if !found {
		return nil, store.ErrNotFound
	}
	persisted, err := s.Store.WriteAll(ctx, s.OrgID, tasks)
	if err != nil {
		return nil, err
	}
	if err := s.Events.Append(ctx, "task.completed", s.OrgID, "task", id, events.EventPayload{"completed": completed}); err != nil {
		return nil, err
	}
	return persisted, nil
}

func (s *Tasks) Delete(ctx context.Context, id string) ([]domain.Task, error) {
	tasks, err := s.Store.ReadAll(ctx, s.OrgID)
	if err != nil {
		return nil, err
	}
	kept := tasks[:0]
	found := false
	for _, t := range tasks {
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
	if err := s.Events.Append(ctx, "task.deleted", s.OrgID, "task", id, nil); err != nil {
		return nil, err
	}
	return persisted, nil
}

func (s *Tasks) Statistics(ctx context.Context) (domain.TaskStats, error) {
	tasks, err := s.Store.ReadAll(ctx, s.OrgID)
	if err != nil {
		return domain.TaskStats{}, err
	}
	stats := domain.TaskStats{OrgID: s.OrgID, Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			stats.Completed++
		}
	}
	stats.Remaining = stats.Total - stats.Completed
	return stats, nil
}

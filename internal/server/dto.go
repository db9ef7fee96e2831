package server

import (
	"sprintdeck/internal/domain"
)

// Request payloads

type CreateTicketRequest struct {
	Title       string `json:"title"`
	Assignee    string `json:"assignee"`
	Description string `json:"description,omitempty"`
}

type UpdateTicketStatusRequest struct {
	Status string `json:"status" enum:"backlog,in-progress,review,done"`
}

type CreateTaskRequest struct {
	Text string `json:"text"`
}

type CompleteTaskRequest struct {
	Completed *bool `json:"completed,omitempty"`
}

// Response payloads

type TicketResponse struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Title       string `json:"title"`
	Assignee    string `json:"assignee"`
	Status      string `json:"status" enum:"backlog,in-progress,review,done"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type TaskResponse struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type TicketStatsResponse struct {
	OrgID     string         `json:"org_id"`
	Total     int            `json:"total"`
	Status    map[string]int `json:"status"`
	Assignees map[string]int `json:"assignees"`
}

type TaskStatsResponse struct {
	OrgID     string `json:"org_id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Remaining int    `json:"remaining"`
}

// Conversion helpers

func ticketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse(t)
}

func mapTickets(in []domain.Ticket) []TicketResponse {
	res := make([]TicketResponse, 0, len(in))
	for _, t := range in {
		res = append(res, ticketResponse(t))
	}
	return res
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse(t)
}

func mapTasks(in []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(in))
	for _, t := range in {
		res = append(res, taskResponse(t))
	}
	return res
}

func ticketStatsResponse(s domain.TicketStats) TicketStatsResponse {
	return TicketStatsResponse{
		OrgID:     s.OrgID,
		Total:     s.Total,
		Status:    s.Status,
		Assignees: s.Assignees,
	}
}

func taskStatsResponse(s domain.TaskStats) TaskStatsResponse {
	return TaskStatsResponse(s)
}

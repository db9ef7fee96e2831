package domain

import "sort"

// Ticket statuses form a fixed four-value enum; anything else is rejected
// at the adapter boundary.
const (
	StatusBacklog    = "backlog"
	StatusInProgress = "in-progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// TicketStatuses lists the valid statuses in workflow order.
var TicketStatuses = []string{StatusBacklog, StatusInProgress, StatusReview, StatusDone}

// ValidStatus reports whether s is one of the four ticket statuses.
func ValidStatus(s string) bool {
	for _, v := range TicketStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type Ticket struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Title       string `json:"title"`
	Assignee    string `json:"assignee"`
	Status      string `json:"status" enum:"backlog,in-progress,review,done"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// StatusCounts maps ticket status to the number of tickets in it. Keys are
// restricted to the status enum.
type StatusCounts map[string]int

// AssigneeCounts maps assignee name to the number of tickets assigned.
type AssigneeCounts map[string]int

type TicketStats struct {
	OrgID     string         `json:"org_id"`
	Total     int            `json:"total"`
	Status    StatusCounts   `json:"status"`
	Assignees AssigneeCounts `json:"assignees"`
}

type TaskStats struct {
	OrgID     string `json:"org_id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Remaining int    `json:"remaining"`
}

type APIKey struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OrgID      string `json:"org_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}

// SortTickets orders a tenant's tickets newest first, ticket id as a
// deterministic tiebreak.
func SortTickets(tickets []Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt != tickets[j].CreatedAt {
			return tickets[i].CreatedAt > tickets[j].CreatedAt
		}
		return tickets[i].ID > tickets[j].ID
	})
}

// SortTasks orders incomplete tasks before completed ones, each group by id
// ascending.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Completed != tasks[j].Completed {
			return !tasks[i].Completed
		}
		return tasks[i].ID < tasks[j].ID
	})
}

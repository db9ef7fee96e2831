// Package mcpserver exposes the ticket and task services to MCP clients as
// tools and resources. A server instance is bound to a single org: stdio
// resolves the org once at startup, while the HTTP front door resolves it
// per request from the same credentials the REST API accepts.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sprintdeck/internal/domain"
	"sprintdeck/internal/events"
	"sprintdeck/internal/service"
	"sprintdeck/internal/store"
)

const serverVersion = "0.1.0"

// Config carries the stores every org-bound server shares.
type Config struct {
	Tickets store.TicketStore
	Tasks   store.TaskStore
	Events  events.Writer
}

// New builds an MCP server whose tools and resources operate on orgID's
// collections.
func New(cfg Config, orgID string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "sprintdeck",
		Version: serverVersion,
	}, nil)

	tickets := service.NewTickets(cfg.Tickets, cfg.Events, orgID)
	tasks := service.NewTasks(cfg.Tasks, cfg.Events, orgID)

	registerTicketTools(server, tickets)
	registerTaskTools(server, tasks)
	registerResources(server, tickets)
	return server
}

func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func textResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	res := textResult(format, args...)
	res.IsError = true
	return res
}

// jsonResult renders v as indented JSON under a one-line header so both
// humans and models can read the state back.
func jsonResult(header string, v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("encode result: %v", err)
	}
	return textResult("%s\n%s", header, data)
}

func decodeArgs(req *mcp.CallToolRequest, v any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, v)
}

func registerTicketTools(server *mcp.Server, svc *service.Tickets) {
	server.AddTool(&mcp.Tool{
		Name:        "ticket_list",
		Description: "List all tickets for the organization, newest first.",
		InputSchema: objectSchema(nil, map[string]any{}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		items, err := svc.List(ctx)
		if err != nil {
			return errorResult("list tickets: %v", err), nil
		}
		return jsonResult(fmt.Sprintf("%d ticket(s):", len(items)), items), nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "ticket_create",
		Description: "Create a ticket in the backlog. Returns the full ticket collection.",
		InputSchema: objectSchema([]string{"title", "assignee"}, map[string]any{
			"title":       map[string]any{"type": "string", "description": "Short summary of the work."},
			"assignee":    map[string]any{"type": "string", "description": "Who the ticket is assigned to."},
			"description": map[string]any{"type": "string", "description": "Optional longer description."},
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in struct {
			Title       string `json:"title"`
			Assignee    string `json:"assignee"`
			Description string `json:"description"`
		}
		if err := decodeArgs(req, &in); err != nil {
			return errorResult("invalid arguments: %v", err), nil
		}
		items, err := svc.Create(ctx, service.TicketCreateOptions{
			Title:       in.Title,
			Assignee:    in.Assignee,
			Description: in.Description,
		})
		if err != nil {
			return errorResult("create ticket: %v", err), nil
		}
		return jsonResult("Ticket created. Current collection:", items), nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "ticket_update_status",
		Description: "Move a ticket to a new status. Returns the full ticket collection.",
		InputSchema: objectSchema([]string{"ticket_id", "status"}, map[string]any{
			"ticket_id": map[string]any{"type": "string"},
			"status": map[string]any{
				"type": "string",
				"enum": []string{"backlog", "in-progress", "review", "done"},
			},
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in struct {
			TicketID string `json:"ticket_id"`
			Status   string `json:"status"`
		}
		if err := decodeArgs(req, &in); err != nil {
			return errorResult("invalid arguments: %v", err), nil
		}
		items, err := svc.UpdateStatus(ctx, in.TicketID, in.Status)
		if err != nil {
			if isNotFound(err) {
				return textResult("ticket %s not found", in.TicketID), nil
			}
			return errorResult("update status: %v", err), nil
		}
		return jsonResult(fmt.Sprintf("Ticket %s moved to %s. Current collection:", in.TicketID, in.Status), items), nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "ticket_delete",
		Description: "Delete a ticket. Returns the remaining ticket collection.",
		InputSchema: objectSchema([]string{"ticket_id"}, map[string]any{
			"ticket_id": map[string]any{"type": "string"},
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in struct {
			TicketID string `json:"ticket_id"`
		}
		if err := decodeArgs(req, &in); err != nil {
			return errorResult("invalid arguments: %v", err), nil
		}
		items, err := svc.Delete(ctx, in.TicketID)
		if err != nil {
			if isNotFound(err) {
				return textResult("ticket %s not found", in.TicketID), nil
			}
			return errorResult("delete ticket: %v", err), nil
		}
		return jsonResult("Ticket deleted. Remaining collection:", items), nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "ticket_search",
		Description: "Search tickets by status, assignee and/or title substring. Filters are ANDed.",
		InputSchema: objectSchema(nil, map[string]any{
			"status": map[string]any{
				"type": "string",
				"enum": []string{"backlog", "in-progress", "review", "done"},
			},
			"assignee": map[string]any{"type": "string"},
			"title":    map[string]any{"type": "string", "description": "Case-insensitive substring."},
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in struct {
			Status   string `json:"status"`
			Assignee string `json:"assignee"`
			Title    string `json:"title"`
		}
		if err := decodeArgs(req, &in); err != nil {
			return errorResult("invalid arguments: %v", err), nil
		}
		if in.Status != "" && !domain.ValidStatus(in.Status) {
			return errorResult("invalid status %q, want one of %s", in.Status, strings.Join(domain.TicketStatuses, ", ")), nil
		}
		items, err := svc.Search(ctx, service.TicketFilter{
			Status:   in.Status,
			Assignee: in.Assignee,
			Title:    in.Title,
		})
		if err != nil {
			return errorResult("search tickets: %v", err), nil
		}
		return jsonResult(fmt.Sprintf("%d matching ticket(s):", len(items)), items), nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "ticket_stats",
		Description: "Ticket counts by status and assignee.",
		InputSchema: objectSchema(nil, map[string]any{}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := svc.Statistics(ctx)
		if err != nil {
			return errorResult("ticket stats: %v", err), nil
		}
		return jsonResult("Ticket statistics:", stats), nil
	})
}

func registerTaskTools(server *mcp.Server, svc *service.Tasks) {
	server.AddTool(&mcp.Tool{
		Name:        "task_list",
		Description: "List all tasks for the organization, incomplete first.",
		InputSchema: objectSchema(nil, map[string]any{}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		items, err := svc.List(ctx)
		if err != nil {
			return errorResult("list tasks: %v", err), nil
		}
		return jsonResult(fmt.Sprintf("%d task(s):", len(items)), items), nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "task_create",
		Description: "Create a task. Returns the full task collection.",
		InputSchema: objectSchema([]string{"text"}, map[string]any{
			"text": map[string]any{"type": "string"},
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in struct {
			Text string `json:"text"`
		}
		if err := decodeArgs(req, &in); err != nil {
			return errorResult("invalid arguments: %v", err), nil
		}
		items, err := svc.Create(ctx, in.Text)
		if err != nil {
			return errorResult("create task: %v", err), nil
		}
		return jsonResult("Task created. Current collection:", items), nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "task_complete",
		Description: "Mark a task completed (or not). Returns the full task collection.",
		InputSchema: objectSchema([]string{"task_id"}, map[string]any{
			"task_id":   map[string]any{"type": "string"},
			"completed": map[string]any{"type": "boolean", "description": "Defaults to true."},
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in struct {
			TaskID    string `json:"task_id"`
			Completed *bool  `json:"completed"`
		}
		if err := decodeArgs(req, &in); err != nil {
			return errorResult("invalid arguments: %v", err), nil
		}
		completed := true
		if in.Completed != nil {
			completed = *in.Completed
		}
		items, err := svc.SetCompleted(ctx, in.TaskID, completed)
		if err != nil {
			if isNotFound(err) {
				return textResult("task %s not found", in.TaskID), nil
			}
			return errorResult("complete task: %v", err), nil
		}
		return jsonResult("Task updated. Current collection:", items), nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "task_delete",
		Description: "Delete a task. Returns the remaining task collection.",
		InputSchema: objectSchema([]string{"task_id"}, map[string]any{
			"task_id": map[string]any{"type": "string"},
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in struct {
			TaskID string `json:"task_id"`
		}
		if err := decodeArgs(req, &in); err != nil {
			return errorResult("invalid arguments: %v", err), nil
		}
		items, err := svc.Delete(ctx, in.TaskID)
		if err != nil {
			if isNotFound(err) {
				return textResult("task %s not found", in.TaskID), nil
			}
			return errorResult("delete task: %v", err), nil
		}
		return jsonResult("Task deleted. Remaining collection:", items), nil
	})

	server.AddTool(&mcp.Tool{
		Name:        "task_stats",
		Description: "Task counts: total, completed, remaining.",
		InputSchema: objectSchema(nil, map[string]any{}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := svc.Statistics(ctx)
		if err != nil {
			return errorResult("task stats: %v", err), nil
		}
		return jsonResult("Task statistics:", stats), nil
	})
}

const (
	ticketsResourceURI  = "sprintdeck://tickets"
	ticketResourcePfx   = "sprintdeck://tickets/"
	ticketsResourceTmpl = "sprintdeck://tickets/{id}"
)

func registerResources(server *mcp.Server, svc *service.Tickets) {
	server.AddResource(&mcp.Resource{
		URI:         ticketsResourceURI,
		Name:        "tickets",
		Description: "All tickets for the organization, newest first.",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		items, err := svc.List(ctx)
		if err != nil {
			return nil, err
		}
		return jsonResource(ticketsResourceURI, items)
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: ticketsResourceTmpl,
		Name:        "ticket",
		Description: "A single ticket by id.",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		id := strings.TrimPrefix(req.Params.URI, ticketResourcePfx)
		t, err := svc.Get(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return &mcp.ReadResourceResult{
					Contents: []*mcp.ResourceContents{{
						URI:      req.Params.URI,
						MIMEType: "text/plain",
						Text:     fmt.Sprintf("ticket %s not found", id),
					}},
				}, nil
			}
			return nil, err
		}
		return jsonResource(req.Params.URI, t)
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

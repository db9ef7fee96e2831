package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"sprintdeck/internal/events"
	"sprintdeck/internal/service"
	"sprintdeck/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Tickets  store.TicketStore
	Tasks    store.TaskStore
	Events   events.Writer
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"status must be one of backlog, in-progress, review, done"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Sprintdeck API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Sprintdeck API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerTickets(group, cfg)
	registerTasks(group, cfg)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// ticketService binds a tenant-scoped service for the authenticated org.
func ticketService(ctx context.Context, cfg Config) (*service.Tickets, huma.StatusError) {
	orgID, authErr := orgFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	return service.NewTickets(cfg.Tickets, cfg.Events, orgID), nil
}

func taskService(ctx context.Context, cfg Config) (*service.Tasks, huma.StatusError) {
	orgID, authErr := orgFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	return service.NewTasks(cfg.Tasks, cfg.Events, orgID), nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerTickets(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tickets",
		Method:      http.MethodGet,
		Path:        "/tickets",
		Summary:     "List tickets",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []TicketResponse `json:"body"`
	}, error) {
		svc, authErr := ticketService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := svc.List(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TicketResponse `json:"body"`
		}{Body: mapTickets(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-ticket",
		Method:      http.MethodPost,
		Path:        "/tickets",
		Summary:     "Create ticket",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateTicketRequest `json:"body"`
	}) (*struct {
		Body []TicketResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Title) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		if strings.TrimSpace(input.Body.Assignee) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "assignee is required", nil)
		}
		svc, authErr := ticketService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := svc.Create(ctx, service.TicketCreateOptions{
			Title:       input.Body.Title,
			Assignee:    input.Body.Assignee,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TicketResponse `json:"body"`
		}{Body: mapTickets(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "search-tickets",
		Method:      http.MethodGet,
		Path:        "/tickets/search",
		Summary:     "Search tickets",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		Assignee string `query:"assignee"`
		Title    string `query:"title"`
	}) (*struct {
		Body []TicketResponse `json:"body"`
	}, error) {
		if input.Status != "" && !validStatusParam(input.Status) {
			return nil, invalidStatusError(input.Status)
		}
		svc, authErr := ticketService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := svc.Search(ctx, service.TicketFilter{
			Status:   input.Status,
			Assignee: input.Assignee,
			Title:    input.Title,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TicketResponse `json:"body"`
		}{Body: mapTickets(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ticket-statistics",
		Method:      http.MethodGet,
		Path:        "/tickets/statistics",
		Summary:     "Ticket statistics",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body TicketStatsResponse `json:"body"`
	}, error) {
		svc, authErr := ticketService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		stats, err := svc.Statistics(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TicketStatsResponse `json:"body"`
		}{Body: ticketStatsResponse(stats)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ticket",
		Method:      http.MethodGet,
		Path:        "/tickets/{ticket_id}",
		Summary:     "Get ticket",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TicketID string `path:"ticket_id"`
	}) (*struct {
		Body TicketResponse `json:"body"`
	}, error) {
		svc, authErr := ticketService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		t, err := svc.Get(ctx, input.TicketID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TicketResponse `json:"body"`
		}{Body: ticketResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-ticket-status",
		Method:      http.MethodPost,
		Path:        "/tickets/{ticket_id}/status",
		Summary:     "Update ticket status",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TicketID string                    `path:"ticket_id"`
		Body     UpdateTicketStatusRequest `json:"body"`
	}) (*struct {
		Body []TicketResponse `json:"body"`
	}, error) {
		if !validStatusParam(input.Body.Status) {
			return nil, invalidStatusError(input.Body.Status)
		}
		svc, authErr := ticketService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := svc.UpdateStatus(ctx, input.TicketID, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TicketResponse `json:"body"`
		}{Body: mapTickets(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-ticket",
		Method:      http.MethodDelete,
		Path:        "/tickets/{ticket_id}",
		Summary:     "Delete ticket",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TicketID string `path:"ticket_id"`
	}) (*struct {
		Body []TicketResponse `json:"body"`
	}, error) {
		svc, authErr := ticketService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := svc.Delete(ctx, input.TicketID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TicketResponse `json:"body"`
		}{Body: mapTickets(items)}, nil
	})
}

func registerTasks(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		svc, authErr := taskService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := svc.List(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-task",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create task",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Text) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "text is required", nil)
		}
		svc, authErr := taskService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := svc.Create(ctx, input.Body.Text)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-statistics",
		Method:      http.MethodGet,
		Path:        "/tasks/statistics",
		Summary:     "Task statistics",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body TaskStatsResponse `json:"body"`
	}, error) {
		svc, authErr := taskService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		stats, err := svc.Statistics(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskStatsResponse `json:"body"`
		}{Body: taskStatsResponse(stats)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/complete",
		Summary:     "Complete task",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string              `path:"task_id"`
		Body   CompleteTaskRequest `json:"body,omitempty"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		svc, authErr := taskService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		completed := true
		if input.Body.Completed != nil {
			completed = *input.Body.Completed
		}
		items, err := svc.SetCompleted(ctx, input.TaskID, completed)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		svc, authErr := taskService(ctx, cfg)
		if authErr != nil {
			return nil, authErr
		}
		items, err := svc.Delete(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})
}

func validStatusParam(s string) bool {
	switch s {
	case "backlog", "in-progress", "review", "done":
		return true
	}
	return false
}

func invalidStatusError(s string) huma.StatusError {
	return newAPIError(http.StatusBadRequest, "bad_request",
		fmt.Sprintf("status %q must be one of backlog, in-progress, review, done", s), map[string]any{"status": s})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Sprintdeck API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

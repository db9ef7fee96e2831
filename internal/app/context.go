package app

import (
	"database/sql"
	"fmt"
	"strings"

	"sprintdeck/internal/config"
	"sprintdeck/internal/db"
	"sprintdeck/internal/events"
	"sprintdeck/internal/migrate"
	"sprintdeck/internal/store"
)

// Context wires the workspace config, storage backend and event log for one
// invocation. DB is nil on the memory backend; the events Writer handles
// that by discarding appends.
type Context struct {
	Config  *config.Config
	OrgID   string
	DB      *sql.DB
	Tickets store.TicketStore
	Tasks   store.TaskStore
	Events  events.Writer
	Keys    store.Keys
}

// Resolve loads config from the workspace and opens the configured backend.
// orgOverride wins over the config's org id; an empty resolved org is an
// error because every record is tenant-keyed.
func Resolve(workspace, orgOverride string) (*Context, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	orgID := strings.TrimSpace(orgOverride)
	if orgID == "" {
		orgID = cfg.Org.ID
	}
	if orgID == "" {
		return nil, fmt.Errorf("org not specified; use --org or set org.id in %s", config.Path(workspace))
	}

	ac := &Context{Config: cfg, OrgID: orgID}
	if cfg.Store.Backend == "memory" {
		mem := store.NewMemory()
		ac.Tickets = mem.Tickets()
		ac.Tasks = mem.Tasks()
		return ac, nil
	}

	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	st := store.NewSQLite(conn)
	ac.DB = conn
	ac.Tickets = st.Tickets()
	ac.Tasks = st.Tasks()
	ac.Events = events.Writer{DB: conn}
	ac.Keys = store.Keys{DB: conn}
	return ac, nil
}

// Close releases the database connection if one was opened.
func (c *Context) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

package mcpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sprintdeck/internal/server"
)

// RunStdio serves a single org-bound server over stdin/stdout. It blocks
// until the client disconnects or ctx is cancelled.
func RunStdio(ctx context.Context, cfg Config, orgID string) error {
	return New(cfg, orgID).Run(ctx, &mcp.StdioTransport{})
}

// HTTPOptions configures ServeHTTP.
type HTTPOptions struct {
	Addr string
	// Path defaults to /mcp.
	Path string
	Auth server.AuthConfig
}

// Handler returns the streamable HTTP handler with per-request tenant
// resolution: the same credentials the REST API accepts select the org a
// session's server is bound to. Unauthenticated requests get a nil server,
// which the transport rejects.
func Handler(cfg Config, auth server.AuthConfig) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		principal, err := auth.Authenticate(r)
		if err != nil {
			return nil
		}
		return New(cfg, principal.OrgID)
	}, nil)
}

// ServeHTTP mounts the handler and blocks until ctx is cancelled.
func ServeHTTP(ctx context.Context, cfg Config, opts HTTPOptions) error {
	if opts.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	path := opts.Path
	if path == "" {
		path = "/mcp"
	}

	listener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", opts.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, Handler(cfg, opts.Auth))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(listener); err != http.ErrServerClosed {
		return err
	}
	return nil
}

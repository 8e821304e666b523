package cli

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"goals-cli/internal/goals"
	"goals-cli/internal/store"
	"goals-cli/internal/telemetry"
	"goals-cli/internal/web"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var readOnly bool
	var ephemeral bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the goal list over a JSON HTTP API",
		Example: strings.TrimSpace(`
  goals serve --addr 127.0.0.1:8787
  goals serve --ephemeral
  curl -s localhost:8787/api/goals
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dir string
			if !ephemeral {
				d, err := resolveDir(app)
				if err != nil {
					return writeErr(cmd, err)
				}
				dir = d
			}
			if !cmd.Flags().Changed("addr") && app.cfg != nil && app.cfg.Serve.Addr != "" {
				addr = app.cfg.Serve.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			backend, err := openServeBackend(ctx, dir, ephemeral)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer backend.close()

			repo := goals.NewRepository(telemetry.WrapStore(backend.records),
				goals.WithLogger(app.logger),
				goals.WithTracer(telemetry.Tracer("goals-cli/internal/goals")),
			)
			srv, err := web.NewServer(web.ServerConfig{
				Addr:     addr,
				Repo:     repo,
				Events:   backend.events,
				Logger:   app.logger,
				ReadOnly: readOnly,
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			_ = writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"addr":      srv.Addr(),
					"dir":       dir,
					"readOnly":  readOnly,
					"ephemeral": ephemeral,
				},
				"_hints": []string{"curl -s http://" + srv.Addr() + "/api/goals"},
			})
			if err := srv.Run(ctx); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", store.DefaultServeAddr, "Listen address")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Reject writes")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Serve an in-memory list that is discarded on exit")
	cmd.MarkFlagsMutuallyExclusive("ephemeral", "read-only")
	return cmd
}

// serveBackend is the goal store and event log behind serve.
type serveBackend struct {
	records telemetry.TxStore
	events  web.EventLog
	close   func() error
}

// openServeBackend opens the SQLite store in dir, or an empty in-memory store when ephemeral is
// set. The ephemeral backend never touches dir.
func openServeBackend(ctx context.Context, dir string, ephemeral bool) (serveBackend, error) {
	if ephemeral {
		mem := store.NewMemoryStore()
		return serveBackend{records: mem, events: mem, close: func() error { return nil }}, nil
	}
	db, err := store.Store{Dir: dir}.Open(ctx)
	if err != nil {
		return serveBackend{}, err
	}
	return serveBackend{records: db, events: db, close: db.Close}, nil
}

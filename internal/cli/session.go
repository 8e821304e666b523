package cli

import (
	"context"

	"goals-cli/internal/goals"
	"goals-cli/internal/model"
	"goals-cli/internal/store"
	"goals-cli/internal/telemetry"

	"github.com/spf13/cobra"
)

// session is one command's handle on the workspace: the open database, the repository over it,
// and for mutating commands the writer lock.
type session struct {
	app   *App
	dir   string
	db    *store.SQLiteStore
	repo  *goals.Repository
	lock  *store.WriteLock
	write bool
}

func openSession(cmd *cobra.Command, app *App, write bool) (*session, error) {
	dir, err := resolveDir(app)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	st := store.Store{Dir: dir}

	var lock *store.WriteLock
	if write {
		lock, err = st.LockWriter(ctx, lockTimeout(app))
		if err != nil {
			return nil, err
		}
	}
	db, err := st.Open(ctx)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	app.logger.Debug("store opened", "path", db.Path(), "write", write)

	repo := goals.NewRepository(telemetry.WrapStore(db),
		goals.WithLogger(app.logger),
		goals.WithTracer(telemetry.Tracer("goals-cli/internal/goals")),
	)
	return &session{app: app, dir: dir, db: db, repo: repo, lock: lock, write: write}, nil
}

func (s *session) Close() {
	_ = s.db.Close()
	if err := s.lock.Release(); err != nil {
		s.app.logger.Warn("release writer lock", "error", err)
	}
}

// record appends to the event log. The mutation already committed, so a failure is only logged.
func (s *session) record(ctx context.Context, typ model.EventType, priority int, payload any) {
	if _, err := s.db.AppendEvent(ctx, typ, priority, payload); err != nil {
		s.app.logger.Warn("append event failed", "type", typ, "error", err)
	}
}

func (s *session) listOut(cmd *cobra.Command) error {
	list, err := s.repo.List(cmd.Context())
	if err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, s.app, map[string]any{"data": list})
}

package cli

import (
	"errors"
	"os"

	"goals-cli/internal/store"

	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the store and, if missing, a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := resolveDir(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			db, err := store.Store{Dir: dir}.Open(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			sqlitePath := db.Path()
			_ = db.Close()

			cfgPath := app.ConfigPath
			if cfgPath == "" {
				if cfgPath, err = store.ConfigPath(); err != nil {
					return writeErr(cmd, err)
				}
			}
			created := false
			if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
				// Seed with the effective settings so the file documents itself.
				seed := *app.cfg
				seed.Dir = ""
				seed.Workspace = app.Workspace
				if err := store.SaveConfig(cfgPath, &seed); err != nil {
					return writeErr(cmd, err)
				}
				created = true
			}

			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"dir":           dir,
					"sqlitePath":    sqlitePath,
					"configPath":    cfgPath,
					"configCreated": created,
				},
			})
		},
	}
	return cmd
}

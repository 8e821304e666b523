package cli

import (
	"goals-cli/internal/store"

	"github.com/spf13/cobra"
)

func newWorkspaceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage named workspaces under ~/.goals/workspaces",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List workspaces that hold a goal database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := store.ListWorkspaces()
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": names})
		},
	}

	useCmd := &cobra.Command{
		Use:   "use <name>",
		Short: "Make a workspace the default in the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := store.NormalizeWorkspaceName(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			cfg, err := store.LoadConfig(app.ConfigPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			cfg.Workspace = name
			if err := store.SaveConfig(app.ConfigPath, cfg); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"workspace": name}})
		},
	}

	cmd.AddCommand(listCmd, useCmd)
	return cmd
}

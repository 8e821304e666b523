package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"goals-cli/internal/format"
	"goals-cli/internal/store"
	"goals-cli/internal/telemetry"

	"github.com/spf13/cobra"
)

// Version is stamped at build time.
var Version = "dev"

type App struct {
	Dir        string
	Workspace  string
	ConfigPath string
	PrettyJSON bool
	Format     string
	Verbose    bool

	cfg    *store.Config
	logger *slog.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "goals",
		Short:        "A priority-ordered goal list",
		SilenceUsage: true,
		Version:      Version,
		Example: strings.TrimSpace(`
  # Add goals; an occupied priority pushes the others back
  goals add 1 "Ship the beta"
  goals add 1 "Call mom"

  # Reorder
  goals edit 2 --priority 1
  goals move 3 1

  # Show the list as a table
  goals list --format text

  # Direct lookup (shortcut for: goals show 2)
  goals 2
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => list.
			if len(args) == 0 {
				return runList(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", "", "Path to store dir (overrides workspace resolution)")
	cmd.PersistentFlags().StringVar(&app.Workspace, "workspace", "", "Workspace name under ~/.goals/workspaces (default: 'default')")
	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Config file (default: ~/.goals/config.yaml)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", "", "Output format (json|yaml|text)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Log at debug level to stderr")

	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newMoveCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newClearCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newNormalizeCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newWorkspaceCmd(app))

	return cmd
}

// setup merges config under flags, then installs the logger and telemetry.
func (app *App) setup(cmd *cobra.Command) error {
	cfg, err := store.LoadConfig(app.ConfigPath)
	if err != nil {
		return writeErr(cmd, err)
	}
	app.cfg = cfg

	flags := cmd.Flags()
	if !flags.Changed("dir") && app.Dir == "" {
		app.Dir = cfg.Dir
	}
	if !flags.Changed("workspace") && app.Workspace == "" {
		app.Workspace = cfg.Workspace
	}
	if !flags.Changed("format") && app.Format == "" {
		app.Format = cfg.Format
	}
	if !flags.Changed("pretty") {
		app.PrettyJSON = app.PrettyJSON || cfg.Pretty
	}

	level := parseLevel(cfg.LogLevel)
	if app.Verbose {
		level = slog.LevelDebug
	}
	app.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if err := telemetry.Init(cmd.Context(), telemetry.Options{
		Enabled:     cfg.Telemetry.Enabled,
		Stdout:      cfg.Telemetry.Stdout,
		ServiceName: "goals",
		Version:     Version,
		Writer:      cmd.ErrOrStderr(),
	}); err != nil {
		app.logger.Warn("telemetry disabled", "error", err)
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// resolveDir picks the store directory:
// 1) --dir
// 2) --workspace
// 3) a .goals directory found walking up from the working directory
// 4) the default workspace
func resolveDir(app *App) (string, error) {
	if app.Dir != "" {
		return app.Dir, nil
	}
	if app.Workspace != "" {
		return store.WorkspaceDir(app.Workspace)
	}
	if wd, err := os.Getwd(); err == nil {
		if dir, ok := store.DiscoverDir(wd); ok {
			return dir, nil
		}
	}
	app.Workspace = "default"
	return store.WorkspaceDir(app.Workspace)
}

func lockTimeout(app *App) time.Duration {
	if app.cfg == nil || app.cfg.LockTimeout <= 0 {
		return store.DefaultLockTimeout
	}
	return app.cfg.LockTimeout
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

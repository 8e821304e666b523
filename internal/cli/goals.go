package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"goals-cli/internal/goals"
	"goals-cli/internal/model"
	"goals-cli/internal/store"

	"github.com/spf13/cobra"
)

func parseIntArg(field, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, goals.ValidationError{Field: field, Reason: fmt.Sprintf("not a number: %q", raw)}
	}
	return n, nil
}

func newAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <priority> <text...>",
		Short: "Add a goal; an occupied priority shifts the goals behind it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseIntArg("priority", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			g := model.Goal{Priority: p, Text: strings.Join(args[1:], " ")}

			s, err := openSession(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			ctx := cmd.Context()
			if err := s.repo.Add(ctx, g); err != nil {
				return writeErr(cmd, err)
			}
			s.record(ctx, model.EventGoalAdd, g.Priority, g)
			return s.listOut(cmd)
		},
	}
}

func newEditCmd(app *App) *cobra.Command {
	var priority int
	var text string

	cmd := &cobra.Command{
		Use:   "edit <priority>",
		Short: "Change a goal's priority and/or text",
		Example: strings.TrimSpace(`
  goals edit 3 --priority 1
  goals edit 2 --text "Run a half marathon"
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := parseIntArg("priority", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if !cmd.Flags().Changed("priority") && !cmd.Flags().Changed("text") {
				return writeErr(cmd, errors.New("nothing to change (use --priority and/or --text)"))
			}

			s, err := openSession(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			ctx := cmd.Context()
			cur, err := s.repo.Get(ctx, old)
			if err != nil {
				return writeErr(cmd, err)
			}
			g := cur
			if cmd.Flags().Changed("priority") {
				g.Priority = priority
			}
			if cmd.Flags().Changed("text") {
				g.Text = text
			}
			if err := s.repo.Edit(ctx, old, g); err != nil {
				return writeErr(cmd, err)
			}
			s.record(ctx, model.EventGoalEdit, g.Priority, map[string]any{"oldPriority": old, "goal": g})
			return s.listOut(cmd)
		},
	}
	cmd.Flags().IntVar(&priority, "priority", 0, "New priority")
	cmd.Flags().StringVar(&text, "text", "", "New text")
	return cmd
}

func newMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move <from-position> <to-position>",
		Short: "Move a goal by list position (1-based); it takes its new neighbor's priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseIntArg("from", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			to, err := parseIntArg("to", args[1])
			if err != nil {
				return writeErr(cmd, err)
			}

			s, err := openSession(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			ctx := cmd.Context()
			moved, changed, err := s.repo.Move(ctx, from-1, to-1)
			if err != nil {
				return writeErr(cmd, err)
			}
			if changed {
				s.record(ctx, model.EventGoalMove, moved.Priority, map[string]any{"from": from, "to": to, "goal": moved})
			}
			list, err := s.repo.List(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"goal": moved, "changed": changed, "goals": list},
			})
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <priority>",
		Aliases: []string{"rm"},
		Short:   "Delete the goal at a priority",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseIntArg("priority", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := openSession(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			ctx := cmd.Context()
			deleted, err := s.repo.Delete(ctx, p)
			if err != nil {
				return writeErr(cmd, err)
			}
			if deleted {
				s.record(ctx, model.EventGoalDelete, p, nil)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"priority": p, "deleted": deleted}})
		},
	}
}

func newClearCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return writeErr(cmd, errors.New("refusing to delete every goal without --yes"))
			}
			s, err := openSession(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			ctx := cmd.Context()
			deleted := s.repo.DeleteAll(ctx)
			if deleted {
				s.record(ctx, model.EventGoalClear, 0, nil)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"deleted": deleted}})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm")
	return cmd
}

func newListCmd(app *App) *cobra.Command {
	var watch bool
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List goals in priority order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !watch {
				return runList(cmd, app)
			}
			return runWatch(cmd, app, debounce)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Print the list again whenever it changes (Ctrl-C to stop)")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "Quiet period before reprinting in --watch mode")
	return cmd
}

func runList(cmd *cobra.Command, app *App) error {
	s, err := openSession(cmd, app, false)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.Close()
	return s.listOut(cmd)
}

func runWatch(cmd *cobra.Command, app *App, debounce time.Duration) error {
	s, err := openSession(cmd, app, false)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.Close()

	if err := s.listOut(cmd); err != nil {
		return err
	}
	err = store.Store{Dir: s.dir}.Watch(cmd.Context(), debounce, func() {
		if err := s.listOut(cmd); err != nil {
			app.logger.Warn("watch: list goals", "error", err)
		}
	})
	if err != nil {
		return writeErr(cmd, err)
	}
	return nil
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <priority>",
		Short: "Show the goal at a priority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseIntArg("priority", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := openSession(cmd, app, false)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			g, err := s.repo.Get(cmd.Context(), p)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": g})
		},
	}
}

func newNormalizeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Renumber priorities to 1..N keeping the current order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, app, true)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			ctx := cmd.Context()
			list, err := s.repo.Normalize(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			s.record(ctx, model.EventGoalNormalize, 0, map[string]any{"count": len(list)})
			return writeOut(cmd, app, map[string]any{"data": list})
		},
	}
}

package goals

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"goals-cli/internal/model"
)

// Reorganizer inserts or moves a goal into an occupied priority, shifting neighbors so that
// priorities stay unique.
//
// Each call fetches a fresh snapshot, builds a Plan, checks it, and then applies every delete
// followed by every insert. It holds no state between calls; atomicity comes from the store the
// caller hands in (see Repository, which runs it inside a transaction when it can).
type Reorganizer struct {
	store  RecordStore
	logger *slog.Logger
}

func NewReorganizer(store RecordStore, logger *slog.Logger) *Reorganizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reorganizer{store: store, logger: logger}
}

// StartAdd stores goal at goal.Priority, pushing the current holder (and any run behind it) back.
// It is a contract violation to call it when goal.Priority is free.
func (r *Reorganizer) StartAdd(ctx context.Context, goal model.Goal) (Plan, error) {
	snapshot, err := r.store.GetAll(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("reorganize add: load goals: %w", err)
	}
	plan, err := PlanAdd(snapshot, goal)
	if err != nil {
		return Plan{}, err
	}
	if err := r.apply(ctx, snapshot, plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// StartEdit moves the goal at oldPriority to goal.Priority, which another goal currently holds.
// It is a contract violation to call it with oldPriority == goal.Priority.
func (r *Reorganizer) StartEdit(ctx context.Context, oldPriority int, goal model.Goal) (Plan, error) {
	if oldPriority == goal.Priority {
		return Plan{}, contractViolation("edit", "old priority %d equals new priority, nothing to reorganize", oldPriority)
	}
	snapshot, err := r.store.GetAll(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("reorganize edit: load goals: %w", err)
	}
	plan, err := PlanEdit(snapshot, oldPriority, goal)
	if err != nil {
		return Plan{}, err
	}
	if err := r.apply(ctx, snapshot, plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (r *Reorganizer) apply(ctx context.Context, snapshot []model.Goal, plan Plan) error {
	if err := plan.check(snapshot); err != nil {
		return err
	}
	r.logger.Debug("applying reorganization",
		"case", plan.Case,
		"deletes", len(plan.Deletes),
		"inserts", len(plan.Inserts),
	)
	for _, g := range plan.Deletes {
		if err := r.store.DeleteByMatch(ctx, g); err != nil {
			return fmt.Errorf("reorganize %s: delete priority %d: %w", plan.Case, g.Priority, err)
		}
	}
	for _, g := range plan.Inserts {
		if err := r.store.Insert(ctx, g); err != nil {
			return fmt.Errorf("reorganize %s: insert priority %d: %w", plan.Case, g.Priority, err)
		}
	}
	return nil
}

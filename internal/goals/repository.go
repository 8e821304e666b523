// Package goals holds the priority-ordered goal list: the Repository facade callers use and the
// Reorganizer that keeps priorities unique when a goal lands on an occupied slot.
package goals

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"goals-cli/internal/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "goals-cli/internal/goals"

// Repository is the public surface over a RecordStore. It routes each write to a direct store
// call when no other goal is affected, and to the Reorganizer otherwise.
//
// Repository does not lock. Callers must serialize writes against one store.
type Repository struct {
	store  RecordStore
	logger *slog.Logger
	tracer trace.Tracer
}

type Option func(*Repository)

func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Repository) {
		if t != nil {
			r.tracer = t
		}
	}
}

func NewRepository(store RecordStore, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) inTx(ctx context.Context, fn func(RecordStore) error) error {
	if tx, ok := r.store.(Transactor); ok {
		return tx.InTx(ctx, fn)
	}
	return fn(r.store)
}

func (r *Repository) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "goals."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func validateGoal(g model.Goal) error {
	if g.Priority < 1 {
		return ValidationError{Field: "priority", Reason: fmt.Sprintf("must be >= 1, got %d", g.Priority)}
	}
	if strings.TrimSpace(g.Text) == "" {
		return ValidationError{Field: "text", Reason: "must not be empty"}
	}
	return nil
}

// Add stores goal. If its priority is taken, the current holder and the run of consecutive
// priorities behind it shift back by one.
func (r *Repository) Add(ctx context.Context, goal model.Goal) (err error) {
	ctx, span := r.startSpan(ctx, "Add", attribute.Int("goal.priority", goal.Priority))
	defer func() { endSpan(span, err) }()

	if err := validateGoal(goal); err != nil {
		return err
	}

	var plan *Plan
	err = r.inTx(ctx, func(s RecordStore) error {
		existing, err := s.FindByPriority(ctx, goal.Priority)
		if err != nil {
			return fmt.Errorf("add: find priority %d: %w", goal.Priority, err)
		}
		if len(existing) == 0 {
			if err := s.Insert(ctx, goal); err != nil {
				return fmt.Errorf("add: %w", err)
			}
			return nil
		}
		p, err := NewReorganizer(s, r.logger).StartAdd(ctx, goal)
		if err != nil {
			return err
		}
		plan = &p
		return nil
	})
	if err != nil {
		return err
	}

	if plan == nil {
		r.logger.Info("goal added", "priority", goal.Priority)
	} else {
		span.SetAttributes(attribute.String("goals.case", string(plan.Case)))
		r.logger.Info("goal added, neighbors shifted", "priority", goal.Priority, "case", plan.Case, "shifted", plan.Shifted())
	}
	return nil
}

// Edit replaces the goal stored at oldPriority with goal. When goal.Priority is free (or
// unchanged) the record is updated in place; otherwise the Reorganizer moves it.
func (r *Repository) Edit(ctx context.Context, oldPriority int, goal model.Goal) (err error) {
	ctx, span := r.startSpan(ctx, "Edit",
		attribute.Int("goal.old_priority", oldPriority),
		attribute.Int("goal.priority", goal.Priority),
	)
	defer func() { endSpan(span, err) }()

	if err := validateGoal(goal); err != nil {
		return err
	}

	var plan *Plan
	err = r.inTx(ctx, func(s RecordStore) error {
		p, err := r.edit(ctx, s, oldPriority, goal)
		plan = p
		return err
	})
	if err != nil {
		return err
	}
	r.logEdit(oldPriority, goal, plan)
	return nil
}

func (r *Repository) edit(ctx context.Context, s RecordStore, oldPriority int, goal model.Goal) (*Plan, error) {
	current, err := s.FindByPriority(ctx, oldPriority)
	if err != nil {
		return nil, fmt.Errorf("edit: find priority %d: %w", oldPriority, err)
	}
	if len(current) == 0 {
		return nil, NotFoundError{Priority: oldPriority}
	}
	existing, err := s.FindByPriority(ctx, goal.Priority)
	if err != nil {
		return nil, fmt.Errorf("edit: find priority %d: %w", goal.Priority, err)
	}
	if len(existing) == 0 || oldPriority == goal.Priority {
		if err := s.UpdateTextAndPriority(ctx, oldPriority, goal.Text, goal.Priority); err != nil {
			return nil, fmt.Errorf("edit: %w", err)
		}
		return nil, nil
	}
	p, err := NewReorganizer(s, r.logger).StartEdit(ctx, oldPriority, goal)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) logEdit(oldPriority int, goal model.Goal, plan *Plan) {
	if plan == nil {
		r.logger.Info("goal edited", "old_priority", oldPriority, "priority", goal.Priority)
		return
	}
	r.logger.Info("goal edited, neighbors shifted",
		"old_priority", oldPriority,
		"priority", goal.Priority,
		"case", plan.Case,
		"shifted", plan.Shifted(),
	)
}

// Delete removes the goal at priority. It reports false when no goal holds it.
func (r *Repository) Delete(ctx context.Context, priority int) (deleted bool, err error) {
	ctx, span := r.startSpan(ctx, "Delete", attribute.Int("goal.priority", priority))
	defer func() { endSpan(span, err) }()

	found, err := r.store.FindByPriority(ctx, priority)
	if err != nil {
		return false, fmt.Errorf("delete: find priority %d: %w", priority, err)
	}
	if len(found) == 0 {
		r.logger.Info("goal not deleted, priority is free", "priority", priority)
		return false, nil
	}
	if err := r.store.DeleteByMatch(ctx, found[0]); err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	r.logger.Info("goal deleted", "priority", priority)
	return true, nil
}

// DeleteAll clears the store. It reports false when the store was already empty or when the
// store refused; the failure is logged, not returned.
func (r *Repository) DeleteAll(ctx context.Context) bool {
	ctx, span := r.startSpan(ctx, "DeleteAll")
	defer span.End()

	all, err := r.store.GetAll(ctx)
	if err != nil {
		r.logger.Error("delete all: load goals", "error", err)
		span.RecordError(err)
		return false
	}
	if len(all) == 0 {
		return false
	}
	if err := r.store.DeleteAll(ctx); err != nil {
		r.logger.Error("delete all failed", "error", err)
		span.RecordError(err)
		return false
	}
	r.logger.Info("all goals deleted", "count", len(all))
	return true
}

// List returns every goal sorted by ascending priority.
func (r *Repository) List(ctx context.Context) ([]model.Goal, error) {
	all, err := r.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	out := sortedCopy(all)
	return out, nil
}

// Get returns the goal at priority.
func (r *Repository) Get(ctx context.Context, priority int) (model.Goal, error) {
	found, err := r.store.FindByPriority(ctx, priority)
	if err != nil {
		return model.Goal{}, fmt.Errorf("get: %w", err)
	}
	if len(found) == 0 {
		return model.Goal{}, NotFoundError{Priority: priority}
	}
	return found[0], nil
}

// IsContiguous reports whether each priority is exactly one more than the one before it.
// The starting value is not checked.
func IsContiguous(sorted []model.Goal) bool {
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Priority != sorted[i-1].Priority+1 {
			return false
		}
	}
	return true
}

// Normalize renumbers the list to 1..N in its current order. A list that is already contiguous is
// returned as is without touching the store.
func (r *Repository) Normalize(ctx context.Context) (out []model.Goal, err error) {
	ctx, span := r.startSpan(ctx, "Normalize")
	defer func() { endSpan(span, err) }()

	rewritten := false
	err = r.inTx(ctx, func(s RecordStore) error {
		all, err := s.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("normalize: load goals: %w", err)
		}
		cur := sortedCopy(all)
		if IsContiguous(cur) {
			out = cur
			return nil
		}
		renumbered := make([]model.Goal, 0, len(cur))
		for i, g := range cur {
			renumbered = append(renumbered, model.Goal{Priority: i + 1, Text: g.Text})
		}
		if err := s.DeleteAll(ctx); err != nil {
			return fmt.Errorf("normalize: clear: %w", err)
		}
		for _, g := range renumbered {
			if err := s.Insert(ctx, g); err != nil {
				return fmt.Errorf("normalize: insert priority %d: %w", g.Priority, err)
			}
		}
		out = renumbered
		rewritten = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rewritten {
		r.logger.Info("priorities normalized", "count", len(out))
	}
	return out, nil
}

// Replace swaps the whole list for goals in one transaction.
func (r *Repository) Replace(ctx context.Context, goals []model.Goal) (out []model.Goal, err error) {
	ctx, span := r.startSpan(ctx, "Replace", attribute.Int("goals.count", len(goals)))
	defer func() { endSpan(span, err) }()

	seen := make(map[int]bool, len(goals))
	for _, g := range goals {
		if err := validateGoal(g); err != nil {
			return nil, err
		}
		if seen[g.Priority] {
			return nil, ValidationError{Field: "priority", Reason: fmt.Sprintf("duplicate priority %d", g.Priority)}
		}
		seen[g.Priority] = true
	}
	out = sortedCopy(goals)

	err = r.inTx(ctx, func(s RecordStore) error {
		if err := s.DeleteAll(ctx); err != nil {
			return fmt.Errorf("replace: clear: %w", err)
		}
		for _, g := range out {
			if err := s.Insert(ctx, g); err != nil {
				return fmt.Errorf("replace: insert priority %d: %w", g.Priority, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("goals replaced", "count", len(out))
	return out, nil
}

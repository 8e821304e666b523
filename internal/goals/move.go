package goals

import (
	"context"
	"fmt"

	"goals-cli/internal/model"

	"go.opentelemetry.io/otel/attribute"
)

// MoveTarget computes the priority a goal should take when it is dragged from position from to
// position to in the sorted list (both 0-based). It returns ok=false when the move does not
// translate into a priority change.
//
// The moved goal borrows the priority of a neighbor in the final order:
//
//	1, {2}, 3, 4, 5 => 1, 3, |4|, {2}, 5   takes 4 (the goal above it, moved down)
//	1, 2, 3, {4}, 5 => 1, {4}, |2|, 3, 5   takes 2 (the goal below it, moved up)
//	{1}, 2 => |2|, {1}                      two goals: takes the other one
func MoveTarget(sorted []model.Goal, from, to int) (priority int, ok bool, err error) {
	n := len(sorted)
	if from < 0 || from >= n {
		return 0, false, ValidationError{Field: "from", Reason: fmt.Sprintf("position %d out of range [0, %d)", from, n)}
	}
	if to < 0 || to >= n {
		return 0, false, ValidationError{Field: "to", Reason: fmt.Sprintf("position %d out of range [0, %d)", to, n)}
	}
	if from == to {
		return 0, false, nil
	}

	moved := sorted[from]
	final := make([]model.Goal, 0, n)
	final = append(final, sorted[:from]...)
	final = append(final, sorted[from+1:]...)
	final = append(final[:to], append([]model.Goal{moved}, final[to:]...)...)

	old := moved.Priority
	switch {
	case to > 0 && final[to-1].Priority > old:
		return final[to-1].Priority, true, nil
	case n > 2 && to+1 < n && final[to+1].Priority < old:
		return final[to+1].Priority, true, nil
	case n == 2:
		return final[to^1].Priority, true, nil
	}
	return 0, false, nil
}

// Move drags the goal at position from to position to and applies the resulting edit. It returns
// the goal as stored afterwards and whether anything changed.
func (r *Repository) Move(ctx context.Context, from, to int) (moved model.Goal, changed bool, err error) {
	ctx, span := r.startSpan(ctx, "Move", attribute.Int("move.from", from), attribute.Int("move.to", to))
	defer func() { endSpan(span, err) }()

	var plan *Plan
	var oldPriority int
	err = r.inTx(ctx, func(s RecordStore) error {
		all, err := s.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("move: load goals: %w", err)
		}
		cur := sortedCopy(all)
		target, ok, err := MoveTarget(cur, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		oldPriority = cur[from].Priority
		moved = model.Goal{Priority: target, Text: cur[from].Text}
		changed = true
		plan, err = r.edit(ctx, s, oldPriority, moved)
		return err
	})
	if err != nil {
		return model.Goal{}, false, err
	}
	if changed {
		r.logEdit(oldPriority, moved, plan)
	}
	return moved, changed, nil
}

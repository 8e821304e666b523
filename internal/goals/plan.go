package goals

import (
	"sort"

	"goals-cli/internal/model"
)

// Case names the reorganization branch a Plan was built from.
type Case string

const (
	CaseAddTail      Case = "add-tail"
	CaseAddGap       Case = "add-gap"
	CaseAddRun       Case = "add-run"
	CaseEditRaise    Case = "edit-raise"
	CaseEditTailSwap Case = "edit-tail-swap"
	CaseEditSwap     Case = "edit-swap"
	CaseEditLowerRun Case = "edit-lower-run"
)

// Plan is the set of store mutations that realizes one reorganization.
//
// Deletes are applied first, then Inserts in order. Inserts[0] is always the new or edited goal;
// the remaining inserts are the shifted neighbors.
type Plan struct {
	Case    Case         `json:"case"`
	Deletes []model.Goal `json:"deletes"`
	Inserts []model.Goal `json:"inserts"`
}

// Shifted returns how many existing goals the plan moves to make room.
func (p Plan) Shifted() int {
	if len(p.Inserts) == 0 {
		return 0
	}
	return len(p.Inserts) - 1
}

// SortGoals sorts goals in place by ascending priority.
func SortGoals(goals []model.Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Priority < goals[j].Priority
	})
}

func sortedCopy(goals []model.Goal) []model.Goal {
	out := append([]model.Goal{}, goals...)
	SortGoals(out)
	return out
}

func indexOfPriority(goals []model.Goal, priority int) int {
	for i := range goals {
		if goals[i].Priority == priority {
			return i
		}
	}
	return -1
}

// consecutiveRun returns the longest prefix of goals whose priorities are start, start+step,
// start+2*step, ...
func consecutiveRun(goals []model.Goal, start, step int) []model.Goal {
	want := start
	n := 0
	for n < len(goals) && goals[n].Priority == want {
		n++
		want += step
	}
	return append([]model.Goal{}, goals[:n]...)
}

func shiftedBy(goals []model.Goal, delta int) []model.Goal {
	out := make([]model.Goal, 0, len(goals))
	for _, g := range goals {
		out = append(out, model.Goal{Priority: g.Priority + delta, Text: g.Text})
	}
	return out
}

// PlanAdd plans inserting goal into a snapshot where goal.Priority is already taken.
func PlanAdd(snapshot []model.Goal, goal model.Goal) (Plan, error) {
	cur := sortedCopy(snapshot)
	idx := indexOfPriority(cur, goal.Priority)
	if idx < 0 {
		return Plan{}, contractViolation("add", "no goal holds priority %d, nothing to reorganize", goal.Priority)
	}
	conflict := cur[idx]
	bumped := model.Goal{Priority: goal.Priority + 1, Text: conflict.Text}

	// 1, 2, |3| + 3 => 1, 2, 3, 4
	if idx == len(cur)-1 {
		return Plan{
			Case:    CaseAddTail,
			Deletes: []model.Goal{conflict},
			Inserts: []model.Goal{goal, bumped},
		}, nil
	}

	// 1, |2|, 7 + 2 => 1, 2, 3, 7
	if cur[idx+1].Priority-1 > goal.Priority {
		return Plan{
			Case:    CaseAddGap,
			Deletes: []model.Goal{conflict},
			Inserts: []model.Goal{goal, bumped},
		}, nil
	}

	// 1, |2, 3, 4|, 9 + 2 => 1, 2, 3, 4, 5, 9
	run := consecutiveRun(cur[idx:], goal.Priority, 1)
	return Plan{
		Case:    CaseAddRun,
		Deletes: run,
		Inserts: append([]model.Goal{goal}, shiftedBy(run, 1)...),
	}, nil
}

// PlanEdit plans moving the goal stored at oldPriority to goal.Priority (with goal.Text), where
// goal.Priority is already taken by another goal.
func PlanEdit(snapshot []model.Goal, oldPriority int, goal model.Goal) (Plan, error) {
	if oldPriority == goal.Priority {
		return Plan{}, contractViolation("edit", "old priority %d equals new priority, nothing to reorganize", oldPriority)
	}
	cur := sortedCopy(snapshot)
	oldIdx := indexOfPriority(cur, oldPriority)
	if oldIdx < 0 {
		return Plan{}, contractViolation("edit", "no goal holds old priority %d", oldPriority)
	}
	if oldPriority > goal.Priority {
		return planRaise(cur, oldIdx, goal)
	}
	return planLower(cur, oldIdx, goal)
}

// planRaise handles a goal moving toward the front of the list.
func planRaise(cur []model.Goal, oldIdx int, goal model.Goal) (Plan, error) {
	targetIdx := indexOfPriority(cur, goal.Priority)
	if targetIdx < 0 {
		return Plan{}, contractViolation("edit", "no goal holds target priority %d", goal.Priority)
	}
	span := append([]model.Goal{}, cur[targetIdx:oldIdx+1]...)

	plan := Plan{
		Case:    CaseEditRaise,
		Deletes: span,
		Inserts: []model.Goal{goal},
	}
	// The last span element is the edited goal itself. Everyone else keeps their priority unless
	// it collides with the one just placed, in which case it moves down by one.
	last := goal
	for _, g := range span[:len(span)-1] {
		p := g.Priority
		if p == last.Priority {
			p++
		}
		last = model.Goal{Priority: p, Text: g.Text}
		plan.Inserts = append(plan.Inserts, last)
	}
	return plan, nil
}

// planLower handles a goal moving toward the back of the list.
func planLower(cur []model.Goal, oldIdx int, goal model.Goal) (Plan, error) {
	original := cur[oldIdx]
	rest := make([]model.Goal, 0, len(cur)-1)
	rest = append(rest, cur[:oldIdx]...)
	rest = append(rest, cur[oldIdx+1:]...)

	confIdx := indexOfPriority(rest, goal.Priority)
	if confIdx < 0 {
		return Plan{}, contractViolation("edit", "no goal holds target priority %d", goal.Priority)
	}
	conflict := rest[confIdx]

	switch {
	// 1, 2, {3}, |4| => 1, 2, 3', 4'
	case confIdx == len(rest)-1 && abs(original.Priority-goal.Priority) == 1:
		return Plan{
			Case:    CaseEditTailSwap,
			Deletes: []model.Goal{original, conflict},
			Inserts: []model.Goal{goal, {Priority: goal.Priority - 1, Text: conflict.Text}},
		}, nil

	// 1, {2}, |5|, 6 => 1, 2', 5', 6
	case confIdx == oldIdx:
		return Plan{
			Case:    CaseEditSwap,
			Deletes: []model.Goal{original, conflict},
			Inserts: []model.Goal{goal, {Priority: original.Priority, Text: conflict.Text}},
		}, nil
	}

	// 1, {2}, 3, |4|, 5 => 1, 2', 3', 4', 5
	down := make([]model.Goal, 0, confIdx+1)
	for i := confIdx; i >= 0; i-- {
		down = append(down, rest[i])
	}
	run := consecutiveRun(down, goal.Priority, -1)
	return Plan{
		Case:    CaseEditLowerRun,
		Deletes: append([]model.Goal{original}, run...),
		Inserts: append([]model.Goal{goal}, shiftedBy(run, -1)...),
	}, nil
}

// check simulates the plan against snapshot and fails if any delete misses or any insert would
// collide. A plan that passes leaves priorities unique.
func (p Plan) check(snapshot []model.Goal) error {
	held := make(map[int]string, len(snapshot))
	for _, g := range snapshot {
		held[g.Priority] = g.Text
	}
	for _, d := range p.Deletes {
		text, ok := held[d.Priority]
		if !ok || text != d.Text {
			return contractViolation(string(p.Case), "planned delete of priority %d does not match the stored goal", d.Priority)
		}
		delete(held, d.Priority)
	}
	for _, in := range p.Inserts {
		if _, ok := held[in.Priority]; ok {
			return contractViolation(string(p.Case), "planned insert collides at priority %d", in.Priority)
		}
		held[in.Priority] = in.Text
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

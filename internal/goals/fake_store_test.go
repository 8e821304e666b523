package goals

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"goals-cli/internal/model"
)

// mapStore is an in-package RecordStore keyed by priority.
type mapStore struct {
	goals map[int]string

	failInsertAt  int // Insert of this priority fails when > 0
	failDeleteAll bool
	writes        int
}

func newMapStore(seed ...model.Goal) *mapStore {
	s := &mapStore{goals: map[int]string{}}
	for _, g := range seed {
		s.goals[g.Priority] = g.Text
	}
	return s
}

func goalsOf(pairs ...any) []model.Goal {
	out := []model.Goal{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Goal{Priority: pairs[i].(int), Text: pairs[i+1].(string)})
	}
	return out
}

func (s *mapStore) snapshot() []model.Goal {
	out := []model.Goal{}
	for p, t := range s.goals {
		out = append(out, model.Goal{Priority: p, Text: t})
	}
	SortGoals(out)
	return out
}

func (s *mapStore) GetAll(ctx context.Context) ([]model.Goal, error) {
	return s.snapshot(), nil
}

func (s *mapStore) FindByPriority(ctx context.Context, priority int) ([]model.Goal, error) {
	if t, ok := s.goals[priority]; ok {
		return []model.Goal{{Priority: priority, Text: t}}, nil
	}
	return nil, nil
}

func (s *mapStore) Insert(ctx context.Context, g model.Goal) error {
	if s.failInsertAt > 0 && g.Priority == s.failInsertAt {
		return fmt.Errorf("insert priority %d: disk full", g.Priority)
	}
	if _, ok := s.goals[g.Priority]; ok {
		return ErrDuplicateKey
	}
	s.goals[g.Priority] = g.Text
	s.writes++
	return nil
}

func (s *mapStore) DeleteByMatch(ctx context.Context, g model.Goal) error {
	if t, ok := s.goals[g.Priority]; ok && t == g.Text {
		delete(s.goals, g.Priority)
		s.writes++
	}
	return nil
}

func (s *mapStore) DeleteAll(ctx context.Context) error {
	if s.failDeleteAll {
		return errors.New("delete all: read-only")
	}
	clear(s.goals)
	s.writes++
	return nil
}

func (s *mapStore) UpdateTextAndPriority(ctx context.Context, oldPriority int, text string, newPriority int) error {
	if _, ok := s.goals[oldPriority]; !ok {
		return nil
	}
	if _, ok := s.goals[newPriority]; ok && newPriority != oldPriority {
		return ErrDuplicateKey
	}
	delete(s.goals, oldPriority)
	s.goals[newPriority] = text
	s.writes++
	return nil
}

// txMapStore adds snapshot-and-restore transactions to mapStore.
type txMapStore struct {
	*mapStore
}

func (s txMapStore) InTx(ctx context.Context, fn func(RecordStore) error) error {
	saved := maps.Clone(s.goals)
	if err := fn(s.mapStore); err != nil {
		s.goals = saved
		return err
	}
	return nil
}

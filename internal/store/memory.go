package store

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"goals-cli/internal/goals"
	"goals-cli/internal/model"
)

// MemoryStore is an in-process goals.RecordStore and event log. It backs `serve --ephemeral` and
// the package tests. InTx restores the previous contents when fn fails, so writes are
// all-or-nothing as they are on SQLite.
type MemoryStore struct {
	mu     sync.Mutex
	goals  map[int]model.Goal
	events []model.Event
}

func NewMemoryStore(seed ...model.Goal) *MemoryStore {
	m := &MemoryStore{goals: map[int]model.Goal{}}
	for _, g := range seed {
		m.goals[g.Priority] = g
	}
	return m
}

func (m *MemoryStore) GetAll(ctx context.Context) ([]model.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTable{m}.GetAll(ctx)
}

func (m *MemoryStore) FindByPriority(ctx context.Context, priority int) ([]model.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTable{m}.FindByPriority(ctx, priority)
}

func (m *MemoryStore) Insert(ctx context.Context, goal model.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTable{m}.Insert(ctx, goal)
}

func (m *MemoryStore) DeleteByMatch(ctx context.Context, goal model.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTable{m}.DeleteByMatch(ctx, goal)
}

func (m *MemoryStore) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTable{m}.DeleteAll(ctx)
}

func (m *MemoryStore) UpdateTextAndPriority(ctx context.Context, oldPriority int, text string, newPriority int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memTable{m}.UpdateTextAndPriority(ctx, oldPriority, text, newPriority)
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(goals.RecordStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := maps.Clone(m.goals)
	if err := fn(memTable{m}); err != nil {
		m.goals = snapshot
		return err
	}
	return nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, typ model.EventType, priority int, payload any) (model.Event, error) {
	ev, err := newEvent(typ, priority, payload)
	if err != nil {
		return model.Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *MemoryStore) ReadEvents(_ context.Context, limit int) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.events
	if limit > 0 && len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	return append([]model.Event{}, evs...), nil
}

// memTable operates on the map with the lock already held.
type memTable struct {
	m *MemoryStore
}

func (t memTable) GetAll(context.Context) ([]model.Goal, error) {
	out := make([]model.Goal, 0, len(t.m.goals))
	for _, g := range t.m.goals {
		out = append(out, g)
	}
	return out, nil
}

func (t memTable) FindByPriority(_ context.Context, priority int) ([]model.Goal, error) {
	if g, ok := t.m.goals[priority]; ok {
		return []model.Goal{g}, nil
	}
	return []model.Goal{}, nil
}

func (t memTable) Insert(_ context.Context, goal model.Goal) error {
	if _, ok := t.m.goals[goal.Priority]; ok {
		return fmt.Errorf("insert priority %d: %w", goal.Priority, goals.ErrDuplicateKey)
	}
	t.m.goals[goal.Priority] = goal
	return nil
}

func (t memTable) DeleteByMatch(_ context.Context, goal model.Goal) error {
	if cur, ok := t.m.goals[goal.Priority]; ok && cur.Text == goal.Text {
		delete(t.m.goals, goal.Priority)
	}
	return nil
}

func (t memTable) DeleteAll(context.Context) error {
	clear(t.m.goals)
	return nil
}

func (t memTable) UpdateTextAndPriority(_ context.Context, oldPriority int, text string, newPriority int) error {
	if _, ok := t.m.goals[oldPriority]; !ok {
		return nil
	}
	if _, taken := t.m.goals[newPriority]; taken && newPriority != oldPriority {
		return fmt.Errorf("update priority %d to %d: %w", oldPriority, newPriority, goals.ErrDuplicateKey)
	}
	delete(t.m.goals, oldPriority)
	t.m.goals[newPriority] = model.Goal{Priority: newPriority, Text: text}
	return nil
}

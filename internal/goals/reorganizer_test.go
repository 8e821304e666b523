package goals

import (
	"context"
	"testing"

	"goals-cli/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReorganizer_StartAddOnFreePriorityFailsFast(t *testing.T) {
	st := newMapStore(goalsOf(1, "a", 2, "b")...)

	_, err := NewReorganizer(st, nil).StartAdd(context.Background(), model.Goal{Priority: 3, Text: "z"})
	require.ErrorIs(t, err, ErrContractViolation)
	assert.Zero(t, st.writes)
	assert.Equal(t, goalsOf(1, "a", 2, "b"), st.snapshot())
}

func TestReorganizer_StartEditSamePriorityFailsFast(t *testing.T) {
	st := newMapStore(goalsOf(1, "a")...)

	_, err := NewReorganizer(st, nil).StartEdit(context.Background(), 1, model.Goal{Priority: 1, Text: "b"})
	require.ErrorIs(t, err, ErrContractViolation)
	assert.Zero(t, st.writes)
}

func TestReorganizer_AppliesDeletesBeforeInserts(t *testing.T) {
	st := newMapStore(goalsOf(1, "a", 2, "b", 3, "c")...)

	plan, err := NewReorganizer(st, nil).StartAdd(context.Background(), model.Goal{Priority: 2, Text: "z"})
	require.NoError(t, err)
	assert.Equal(t, CaseAddRun, plan.Case)
	assert.Equal(t, goalsOf(1, "a", 2, "z", 3, "b", 4, "c"), st.snapshot())
	assert.Equal(t, len(plan.Deletes)+len(plan.Inserts), st.writes)
}

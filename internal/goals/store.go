package goals

import (
	"context"
	"errors"

	"goals-cli/internal/model"
)

// ErrDuplicateKey is returned (possibly wrapped) by a RecordStore when Insert would store a
// second goal under an existing priority.
var ErrDuplicateKey = errors.New("duplicate priority")

// RecordStore is the keyed goal storage the repository and reorganizer operate on.
//
// GetAll makes no ordering promise; callers sort. FindByPriority returns zero or one goal.
type RecordStore interface {
	GetAll(ctx context.Context) ([]model.Goal, error)
	FindByPriority(ctx context.Context, priority int) ([]model.Goal, error)
	Insert(ctx context.Context, goal model.Goal) error
	DeleteByMatch(ctx context.Context, goal model.Goal) error
	DeleteAll(ctx context.Context) error
	UpdateTextAndPriority(ctx context.Context, oldPriority int, text string, newPriority int) error
}

// Transactor is implemented by stores that can run a group of mutations atomically.
// fn receives a store bound to the transaction; returning an error rolls everything back.
type Transactor interface {
	InTx(ctx context.Context, fn func(RecordStore) error) error
}

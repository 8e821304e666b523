package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"goals-cli/internal/goals"
	"goals-cli/internal/model"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Store{Dir: t.TempDir()}.Open(context.Background())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_InsertFindDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	for _, g := range []model.Goal{{Priority: 2, Text: "b"}, {Priority: 1, Text: "a"}} {
		if err := s.Insert(ctx, g); err != nil {
			t.Fatalf("insert %+v: %v", g, err)
		}
	}
	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 || all[0].Priority != 1 || all[1].Text != "b" {
		t.Fatalf("unexpected goals: %+v", all)
	}

	found, err := s.FindByPriority(ctx, 2)
	if err != nil || len(found) != 1 || found[0].Text != "b" {
		t.Fatalf("find 2: got %+v err=%v", found, err)
	}
	found, err = s.FindByPriority(ctx, 9)
	if err != nil || len(found) != 0 {
		t.Fatalf("find 9: got %+v err=%v", found, err)
	}

	// A delete whose text does not match leaves the row alone.
	if err := s.DeleteByMatch(ctx, model.Goal{Priority: 2, Text: "other"}); err != nil {
		t.Fatalf("delete mismatch: %v", err)
	}
	if found, _ := s.FindByPriority(ctx, 2); len(found) != 1 {
		t.Fatalf("expected priority 2 to survive mismatched delete")
	}
	if err := s.DeleteByMatch(ctx, model.Goal{Priority: 2, Text: "b"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if found, _ := s.FindByPriority(ctx, 2); len(found) != 0 {
		t.Fatalf("expected priority 2 deleted, got %+v", found)
	}
}

func TestSQLiteStore_DuplicatePriorityMapsToErrDuplicateKey(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	if err := s.Insert(ctx, model.Goal{Priority: 1, Text: "a"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := s.Insert(ctx, model.Goal{Priority: 1, Text: "b"})
	if !errors.Is(err, goals.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	if err := s.Insert(ctx, model.Goal{Priority: 2, Text: "b"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err = s.UpdateTextAndPriority(ctx, 2, "b", 1)
	if !errors.Is(err, goals.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey on update, got %v", err)
	}
}

func TestSQLiteStore_InTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	if err := s.Insert(ctx, model.Goal{Priority: 1, Text: "a"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx goals.RecordStore) error {
		if err := tx.DeleteAll(ctx); err != nil {
			return err
		}
		if err := tx.Insert(ctx, model.Goal{Priority: 5, Text: "z"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 || all[0] != (model.Goal{Priority: 1, Text: "a"}) {
		t.Fatalf("expected rollback to original contents, got %+v", all)
	}
}

func TestSQLiteStore_RepositoryReorganizesInOneTransaction(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	repo := goals.NewRepository(s)

	for _, g := range []model.Goal{{Priority: 1, Text: "a"}, {Priority: 2, Text: "b"}, {Priority: 3, Text: "c"}} {
		if err := repo.Add(ctx, g); err != nil {
			t.Fatalf("add %+v: %v", g, err)
		}
	}
	if err := repo.Add(ctx, model.Goal{Priority: 2, Text: "x"}); err != nil {
		t.Fatalf("add conflicting: %v", err)
	}
	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []model.Goal{{Priority: 1, Text: "a"}, {Priority: 2, Text: "x"}, {Priority: 3, Text: "b"}, {Priority: 4, Text: "c"}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	st := Store{Dir: t.TempDir()}

	s, err := st.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Insert(ctx, model.Goal{Priority: 3, Text: "keep"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := st.Open(ctx)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	found, err := s2.FindByPriority(ctx, 3)
	if err != nil || len(found) != 1 || found[0].Text != "keep" {
		t.Fatalf("expected goal to persist, got %+v err=%v", found, err)
	}
}

func TestSQLiteStore_Events_AppendAndReadLatest(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	for i, typ := range []model.EventType{model.EventGoalAdd, model.EventGoalEdit, model.EventGoalDelete} {
		ev, err := s.AppendEvent(ctx, typ, i+1, map[string]any{"n": i})
		if err != nil {
			t.Fatalf("append %s: %v", typ, err)
		}
		if ev.ID == "" {
			t.Fatalf("expected event id")
		}
	}

	all, err := s.ReadEvents(ctx, 0)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(all) != 3 || all[0].Type != model.EventGoalAdd || all[2].Type != model.EventGoalDelete {
		t.Fatalf("unexpected events: %+v", all)
	}

	last, err := s.ReadEvents(ctx, 2)
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	if len(last) != 2 || last[0].Type != model.EventGoalEdit || last[1].Priority != 3 {
		t.Fatalf("expected the two latest events oldest first, got %+v", last)
	}
	if string(last[1].Payload) != `{"n":2}` {
		t.Fatalf("unexpected payload: %s", last[1].Payload)
	}
}

// openSharedSQLite opens two stores on one database file with a short busy timeout, the way two
// goals processes would.
func openSharedSQLite(t *testing.T) (*SQLiteStore, *SQLiteStore) {
	t.Helper()
	saved := busyTimeout
	busyTimeout = 20 * time.Millisecond
	t.Cleanup(func() { busyTimeout = saved })

	dir := t.TempDir()
	open := func() *SQLiteStore {
		s, err := Store{Dir: dir}.Open(context.Background())
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
	return open(), open()
}

// holdWriteTx keeps a write transaction open on s until release is closed.
func holdWriteTx(t *testing.T, s *SQLiteStore, release <-chan struct{}) <-chan error {
	t.Helper()
	held := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.InTx(context.Background(), func(rs goals.RecordStore) error {
			if err := rs.Insert(context.Background(), model.Goal{Priority: 1, Text: "a"}); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	select {
	case <-held:
	case err := <-done:
		t.Fatalf("holding tx failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("holding tx never started")
	}
	return done
}

func TestSQLiteStore_InTx_RetriesWhileBusy(t *testing.T) {
	ctx := context.Background()
	a, b := openSharedSQLite(t)
	b.retryWindow = 10 * time.Second

	release := make(chan struct{})
	holdDone := holdWriteTx(t, a, release)

	const hold = 300 * time.Millisecond
	time.AfterFunc(hold, func() { close(release) })

	start := time.Now()
	err := b.InTx(ctx, func(rs goals.RecordStore) error {
		return rs.Insert(ctx, model.Goal{Priority: 2, Text: "b"})
	})
	if err != nil {
		t.Fatalf("InTx while busy: %v", err)
	}
	// The lock outlived busy_timeout many times over, so only retries can explain success.
	if elapsed := time.Since(start); elapsed < hold-50*time.Millisecond {
		t.Fatalf("InTx returned after %s, before the other writer released", elapsed)
	}
	if err := <-holdDone; err != nil {
		t.Fatalf("holding tx: %v", err)
	}

	all, err := b.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 || all[0].Text != "a" || all[1].Text != "b" {
		t.Fatalf("expected both writes committed, got %+v", all)
	}
}

func TestSQLiteStore_InTx_GivesUpAfterRetryWindow(t *testing.T) {
	ctx := context.Background()
	a, b := openSharedSQLite(t)
	b.retryWindow = 150 * time.Millisecond

	release := make(chan struct{})
	holdDone := holdWriteTx(t, a, release)
	defer func() {
		close(release)
		<-holdDone
	}()

	calls := 0
	err := b.InTx(ctx, func(rs goals.RecordStore) error {
		calls++
		return nil
	})
	if err == nil {
		t.Fatalf("expected a busy error while another writer holds the lock")
	}
	if !isBusy(err) {
		t.Fatalf("expected SQLITE_BUSY to be recognized, got %T: %v", err, err)
	}
	if calls != 0 {
		t.Fatalf("fn ran %d times without a transaction", calls)
	}
}

func TestSQLiteStore_InTx_DoesNotRetryOtherErrors(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	s.retryWindow = 10 * time.Second

	calls := 0
	start := time.Now()
	err := s.InTx(ctx, func(rs goals.RecordStore) error {
		calls++
		return goals.ContractViolationError{Op: "add", Reason: "no conflict"}
	})
	if !errors.Is(err, goals.ErrContractViolation) {
		t.Fatalf("expected the contract violation back, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("fn ran %d times, want 1", calls)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("non-busy error took %s to return", elapsed)
	}
	if isBusy(err) || isBusy(errors.New("database is locked")) || isBusy(nil) {
		t.Fatalf("only sqlite busy errors count as busy")
	}
}

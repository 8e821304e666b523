package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"goals-cli/internal/model"

	"github.com/google/uuid"
)

func newEvent(typ model.EventType, priority int, payload any) (model.Event, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return model.Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return model.Event{
		ID:       uuid.NewString(),
		Type:     typ,
		Priority: priority,
		Payload:  b,
		IssuedAt: time.Now().UTC(),
	}, nil
}

// AppendEvent records a completed mutation.
func (s *SQLiteStore) AppendEvent(ctx context.Context, typ model.EventType, priority int, payload any) (model.Event, error) {
	ev, err := newEvent(typ, priority, payload)
	if err != nil {
		return model.Event{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events(event_id, type, priority, payload_json, issued_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Type), ev.Priority, string(ev.Payload), ev.IssuedAt.UnixMilli(),
	)
	if err != nil {
		return model.Event{}, fmt.Errorf("append event %s: %w", typ, err)
	}
	return ev, nil
}

// ReadEvents returns the most recent limit events, oldest first. limit <= 0 returns all of them.
func (s *SQLiteStore) ReadEvents(ctx context.Context, limit int) ([]model.Event, error) {
	q := `SELECT event_id, type, priority, payload_json, issued_at_unixms
	      FROM events
	      ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var ev model.Event
		var typ, payloadJSON string
		var tsMs int64
		if err := rows.Scan(&ev.ID, &typ, &ev.Priority, &payloadJSON, &tsMs); err != nil {
			return nil, err
		}
		ev.Type = model.EventType(typ)
		ev.Payload = json.RawMessage(payloadJSON)
		ev.IssuedAt = time.UnixMilli(tsMs).UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

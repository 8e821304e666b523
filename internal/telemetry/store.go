package telemetry

import (
	"context"
	"time"

	"goals-cli/internal/goals"
	"goals-cli/internal/model"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const storeScopeName = "goals-cli/store"

// TxStore is a record store that can also run a transaction.
type TxStore interface {
	goals.RecordStore
	goals.Transactor
}

// InstrumentedStore wraps a TxStore with a span and goals.store.* metrics per call.
// Records handed to InTx callbacks are wrapped the same way.
type InstrumentedStore struct {
	inner  goals.RecordStore
	tx     goals.Transactor
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapStore returns s decorated with OTel instrumentation, or s itself when telemetry is off.
func WrapStore(s TxStore) TxStore {
	if !Enabled() {
		return s
	}
	return newInstrumented(s, s)
}

func newInstrumented(inner goals.RecordStore, tx goals.Transactor) *InstrumentedStore {
	m := Meter(storeScopeName)
	ops, _ := m.Int64Counter("goals.store.operations",
		metric.WithDescription("Total store operations executed"),
	)
	dur, _ := m.Float64Histogram("goals.store.operation.duration",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("goals.store.errors",
		metric.WithDescription("Total store operation errors"),
	)
	return &InstrumentedStore{
		inner:  inner,
		tx:     tx,
		tracer: Tracer(storeScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

func (s *InstrumentedStore) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "store."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Microseconds()) / 1000
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (s *InstrumentedStore) GetAll(ctx context.Context) ([]model.Goal, error) {
	ctx, span, t := s.op(ctx, "GetAll")
	v, err := s.inner.GetAll(ctx)
	span.SetAttributes(attribute.Int("goals.count", len(v)))
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStore) FindByPriority(ctx context.Context, priority int) ([]model.Goal, error) {
	attrs := []attribute.KeyValue{attribute.Int("goal.priority", priority)}
	ctx, span, t := s.op(ctx, "FindByPriority", attrs...)
	v, err := s.inner.FindByPriority(ctx, priority)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) Insert(ctx context.Context, goal model.Goal) error {
	attrs := []attribute.KeyValue{attribute.Int("goal.priority", goal.Priority)}
	ctx, span, t := s.op(ctx, "Insert", attrs...)
	err := s.inner.Insert(ctx, goal)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) DeleteByMatch(ctx context.Context, goal model.Goal) error {
	attrs := []attribute.KeyValue{attribute.Int("goal.priority", goal.Priority)}
	ctx, span, t := s.op(ctx, "DeleteByMatch", attrs...)
	err := s.inner.DeleteByMatch(ctx, goal)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) DeleteAll(ctx context.Context) error {
	ctx, span, t := s.op(ctx, "DeleteAll")
	err := s.inner.DeleteAll(ctx)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStore) UpdateTextAndPriority(ctx context.Context, oldPriority int, text string, newPriority int) error {
	attrs := []attribute.KeyValue{
		attribute.Int("goal.old_priority", oldPriority),
		attribute.Int("goal.priority", newPriority),
	}
	ctx, span, t := s.op(ctx, "UpdateTextAndPriority", attrs...)
	err := s.inner.UpdateTextAndPriority(ctx, oldPriority, text, newPriority)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) InTx(ctx context.Context, fn func(goals.RecordStore) error) error {
	ctx, span, t := s.op(ctx, "InTx")
	err := s.tx.InTx(ctx, func(inner goals.RecordStore) error {
		return fn(&InstrumentedStore{
			inner:  inner,
			tx:     s.tx,
			tracer: s.tracer,
			ops:    s.ops,
			dur:    s.dur,
			errs:   s.errs,
		})
	})
	s.done(ctx, span, t, err)
	return err
}

// Package occ implements the optimistic read-validate-write loop shared by
// every mutation of a list document.
//
// A loop loads the current list, hands it to a mutation, and saves the
// result conditioned on the version it loaded. When the save reports
// docstore.ErrVersionConflict the mutation's output is discarded and the
// whole cycle starts again from a fresh read. Any error from the mutation
// is a terminal outcome and is returned unchanged; any other load or save
// error is fatal and is returned unchanged as well.
//
// By default there is no attempt limit and no backoff: under sustained
// contention a loop keeps retrying until it wins or its context is
// cancelled. MaxAttempts opts into a bounded policy.
package occ

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/order-desk/internal/docstore"
)

// ErrRetriesExhausted is returned when a bounded policy gives up.
var ErrRetriesExhausted = errors.New("occ: retries exhausted")

type (
	// LoadFunc reads the current list and its version.
	LoadFunc[T any] func(ctx context.Context) (docstore.VersionedList[T], error)

	// SaveFunc writes items conditioned on expected.
	SaveFunc[T any] func(ctx context.Context, items []T, expected docstore.Version) error

	// MutateFunc derives the list to write from the one just loaded. items is
	// freshly decoded on every attempt, so it may be modified in place.
	MutateFunc[T, R any] func(items []T) ([]T, R, error)
)

// Retrier carries the retry policy. The zero value is not usable; call New.
type Retrier struct {
	maxAttempts int
	tracer      trace.Tracer
}

// Option configures a Retrier built by New.
type Option func(*Retrier)

// WithMaxAttempts bounds the number of attempts. n <= 0 means unbounded.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n < 0 {
			n = 0
		}
		r.maxAttempts = n
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(r *Retrier) { r.tracer = t }
}

// New returns a Retrier that retries until a save wins, traced through the
// global tracer provider. Options adjust both.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		tracer: otel.Tracer("github.com/jcmexdev/order-desk/internal/occ"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxAttempts returns the configured bound, 0 when unbounded.
func (r *Retrier) MaxAttempts() int {
	return r.maxAttempts
}

// Update runs one optimistic loop. op names the operation in logs and spans.
func Update[T, R any](ctx context.Context, r *Retrier, op string, load LoadFunc[T], mutate MutateFunc[T, R], save SaveFunc[T]) (R, error) {
	ctx, span := r.tracer.Start(ctx, "occ.Update", trace.WithAttributes(attribute.String("occ.op", op)))
	defer span.End()

	var zero R
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fail(span, attempt-1, err)
		}
		if r.maxAttempts > 0 && attempt > r.maxAttempts {
			return zero, fail(span, attempt-1, fmt.Errorf("%w: %s gave up after %d attempts", ErrRetriesExhausted, op, r.maxAttempts))
		}

		list, err := load(ctx)
		if err != nil {
			return zero, fail(span, attempt, err)
		}

		items, result, err := mutate(list.Items)
		if err != nil {
			// Terminal outcome decided on the state just read, no retry.
			span.SetAttributes(attribute.Int("occ.attempts", attempt))
			return zero, err
		}

		err = save(ctx, items, list.Version)
		if err == nil {
			span.SetAttributes(attribute.Int("occ.attempts", attempt))
			return result, nil
		}
		if !errors.Is(err, docstore.ErrVersionConflict) {
			return zero, fail(span, attempt, err)
		}

		slog.DebugContext(ctx, "version conflict, retrying", "op", op, "attempt", attempt)
	}
}

func fail(span trace.Span, attempts int, err error) error {
	span.SetAttributes(attribute.Int("occ.attempts", attempts))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

package occ_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jcmexdev/order-desk/internal/docstore"
	"github.com/jcmexdev/order-desk/internal/docstore/memory"
	"github.com/jcmexdev/order-desk/internal/occ"
	"github.com/jcmexdev/order-desk/internal/pkg/apperr"
)

// interferingList wraps a memory store and lets a competing writer sneak in
// a write between load and save for the first n attempts.
type interferingList struct {
	store     *memory.Store
	interfere int
	loads     int
}

func (l *interferingList) load(ctx context.Context) (docstore.VersionedList[string], error) {
	l.loads++
	list, err := docstore.Load[string](ctx, l.store, "data", "things")
	if err != nil {
		return list, err
	}
	if l.loads <= l.interfere {
		competing := append([]string{}, list.Items...)
		competing = append(competing, "rival-"+strconv.Itoa(l.loads))
		if _, err := docstore.Save(ctx, l.store, "data", "things", competing, list.Version); err != nil {
			return list, err
		}
	}
	return list, nil
}

func (l *interferingList) save(ctx context.Context, items []string, v docstore.Version) error {
	_, err := docstore.SaveIfUnchanged(ctx, l.store, "data", "things", items, v)
	return err
}

func appendItem(name string) occ.MutateFunc[string, int] {
	return func(items []string) ([]string, int, error) {
		items = append(items, name)
		return items, len(items), nil
	}
}

func TestUpdate_RetriesUntilSaveWins(t *testing.T) {
	ctx := context.Background()
	l := &interferingList{store: memory.New(), interfere: 2}

	n, err := occ.Update(ctx, occ.New(), "things.add", l.load, appendItem("mine"), l.save)
	require.NoError(t, err)

	assert.Equal(t, 3, l.loads)
	assert.Equal(t, 3, n)

	final, err := docstore.Load[string](ctx, l.store, "data", "things")
	require.NoError(t, err)
	assert.Equal(t, []string{"rival-1", "rival-2", "mine"}, final.Items)
}

func recordingRetrier(opts ...occ.Option) (*occ.Retrier, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return occ.New(append(opts, occ.WithTracer(tp.Tracer("occ-test")))...), sr
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestUpdate_SpanRecordsAttempts(t *testing.T) {
	r, sr := recordingRetrier()
	l := &interferingList{store: memory.New(), interfere: 2}

	_, err := occ.Update(context.Background(), r, "things.add", l.load, appendItem("mine"), l.save)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "occ.Update", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "things.add", attrs["occ.op"].AsString())
	assert.Equal(t, int64(3), attrs["occ.attempts"].AsInt64())
}

func TestUpdate_SpanMarksExhaustedRetriesAsError(t *testing.T) {
	r, sr := recordingRetrier(occ.WithMaxAttempts(2))
	l := &interferingList{store: memory.New(), interfere: 10}

	_, err := occ.Update(context.Background(), r, "things.add", l.load, appendItem("mine"), l.save)
	require.ErrorIs(t, err, occ.ErrRetriesExhausted)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, int64(2), spanAttrs(spans[0])["occ.attempts"].AsInt64())
}

func TestUpdate_TerminalMutationErrorIsNotRetried(t *testing.T) {
	l := &interferingList{store: memory.New()}
	saved := false

	_, err := occ.Update(context.Background(), occ.New(), "things.remove", l.load,
		func(items []string) ([]string, struct{}, error) {
			return nil, struct{}{}, apperr.ErrNotFound
		},
		func(context.Context, []string, docstore.Version) error {
			saved = true
			return nil
		})

	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 1, l.loads)
	assert.False(t, saved)
}

func TestUpdate_FatalSaveErrorPropagates(t *testing.T) {
	boom := errors.New("backend down")
	l := &interferingList{store: memory.New()}
	saves := 0

	_, err := occ.Update(context.Background(), occ.New(), "things.add", l.load, appendItem("x"),
		func(context.Context, []string, docstore.Version) error {
			saves++
			return boom
		})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, saves)
}

func TestUpdate_BoundedPolicyGivesUp(t *testing.T) {
	l := &interferingList{store: memory.New(), interfere: 10}
	r := occ.New(occ.WithMaxAttempts(3))

	_, err := occ.Update(context.Background(), r, "things.add", l.load, appendItem("x"), l.save)
	require.ErrorIs(t, err, occ.ErrRetriesExhausted)
	assert.Equal(t, 3, l.loads)
	assert.Equal(t, 3, r.MaxAttempts())
}

func TestUpdate_UnboundedByDefault(t *testing.T) {
	l := &interferingList{store: memory.New(), interfere: 50}

	_, err := occ.Update(context.Background(), occ.New(), "things.add", l.load, appendItem("x"), l.save)
	require.NoError(t, err)
	assert.Equal(t, 51, l.loads)
	assert.Zero(t, occ.New(occ.WithMaxAttempts(-1)).MaxAttempts())
}

func TestUpdate_CancelledContextStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := &interferingList{store: memory.New()}

	_, err := occ.Update(ctx, occ.New(), "things.add", l.load, appendItem("x"), l.save)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, l.loads)
}

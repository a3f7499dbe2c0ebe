// Package storetest holds the behaviour every docstore.Store backend must
// share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-desk/internal/docstore"
)

// Run exercises s against the docstore contract. newStore must return an
// empty store each time it is called.
func Run(t *testing.T, newStore func(t *testing.T) docstore.Store) {
	t.Run("missing document loads empty with no version", func(t *testing.T) {
		s := newStore(t)

		doc, err := s.Get(context.Background(), "data", "products")
		require.NoError(t, err)
		assert.False(t, doc.Exists())
		assert.Empty(t, doc.Data)
		assert.Equal(t, docstore.NoVersion, doc.Version)
	})

	t.Run("unconditional write creates the document", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v, err := s.Put(ctx, "data", "products", []byte(`[1]`), docstore.NoVersion)
		require.NoError(t, err)
		assert.NotEqual(t, docstore.NoVersion, v)

		doc, err := s.Get(ctx, "data", "products")
		require.NoError(t, err)
		assert.Equal(t, `[1]`, string(doc.Data))
		assert.Equal(t, v, doc.Version)
		assert.False(t, doc.UpdatedAt.IsZero())
	})

	t.Run("read version can be used exactly once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := docstore.Save(ctx, s, "data", "orders", []string{"a"}, docstore.NoVersion)
		require.NoError(t, err)

		list, err := docstore.Load[string](ctx, s, "data", "orders")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, list.Items)

		_, err = docstore.Save(ctx, s, "data", "orders", []string{"a", "b"}, list.Version)
		require.NoError(t, err)

		_, err = docstore.Save(ctx, s, "data", "orders", []string{"stale"}, list.Version)
		require.ErrorIs(t, err, docstore.ErrVersionConflict)

		after, err := docstore.Load[string](ctx, s, "data", "orders")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, after.Items)
	})

	t.Run("conditional write to a missing document conflicts", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Put(context.Background(), "data", "users", []byte(`[]`), docstore.Version("made-up"))
		require.ErrorIs(t, err, docstore.ErrVersionConflict)

		doc, err := s.Get(context.Background(), "data", "users")
		require.NoError(t, err)
		assert.False(t, doc.Exists())
	})

	t.Run("create refuses to overwrite an existing document", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v, err := s.Create(ctx, "data", "orders", []byte(`["first"]`))
		require.NoError(t, err)
		assert.NotEqual(t, docstore.NoVersion, v)

		_, err = s.Create(ctx, "data", "orders", []byte(`["second"]`))
		require.ErrorIs(t, err, docstore.ErrVersionConflict)

		doc, err := s.Get(ctx, "data", "orders")
		require.NoError(t, err)
		assert.Equal(t, `["first"]`, string(doc.Data))
		assert.Equal(t, v, doc.Version)
	})

	t.Run("documents are addressed independently", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.Put(ctx, "data", "products", []byte(`["p"]`), docstore.NoVersion)
		require.NoError(t, err)
		_, err = s.Put(ctx, "other", "products", []byte(`["q"]`), docstore.NoVersion)
		require.NoError(t, err)

		doc, err := s.Get(ctx, "data", "products")
		require.NoError(t, err)
		assert.Equal(t, `["p"]`, string(doc.Data))

		doc, err = s.Get(ctx, "data", "orders")
		require.NoError(t, err)
		assert.False(t, doc.Exists())
	})

	t.Run("exactly one concurrent writer wins per version", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v, err := s.Put(ctx, "data", "products", []byte(`[]`), docstore.NoVersion)
		require.NoError(t, err)

		const writers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			wins      int
			conflicts int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Put(ctx, "data", "products", []byte(`["w"]`), v)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case assert.ErrorIs(t, err, docstore.ErrVersionConflict):
					conflicts++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
		assert.Equal(t, writers-1, conflicts)
	})
}

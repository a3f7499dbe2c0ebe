package ordering

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-desk/internal/catalog"
	catalogdomain "github.com/jcmexdev/order-desk/internal/catalog/domain"
	"github.com/jcmexdev/order-desk/internal/docstore"
	"github.com/jcmexdev/order-desk/internal/docstore/memory"
	"github.com/jcmexdev/order-desk/internal/occ"
	"github.com/jcmexdev/order-desk/internal/ordering/domain"
	"github.com/jcmexdev/order-desk/internal/pkg/apperr"
)

type fixture struct {
	svc      *Service
	catalog  *catalog.Service
	products *catalog.Repository
	orders   *Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	products := catalog.NewRepository(store, "data")
	orders := NewRepository(store, "data")
	retrier := occ.New()

	return &fixture{
		svc:      NewService(products, orders, retrier),
		catalog:  catalog.NewService(products, retrier),
		products: products,
		orders:   orders,
	}
}

func (f *fixture) addProduct(t *testing.T, name string, quantity int) catalogdomain.Product {
	t.Helper()
	p, err := f.catalog.Add(context.Background(), name, quantity)
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	all, err := f.catalog.List(context.Background())
	require.NoError(t, err)
	for _, p := range all {
		if p.ID == id {
			return p.Quantity
		}
	}
	t.Fatalf("product %s not in catalog", id)
	return 0
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	all, err := f.svc.ListAll(context.Background())
	require.NoError(t, err)
	return len(all)
}

func requireInvalid(t *testing.T, err error) {
	t.Helper()
	_, ok := apperr.IsInvalid(err)
	require.True(t, ok, "want InvalidRequestError, got %v", err)
}

func TestPlace_DecrementsStockAndSnapshotsNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.addProduct(t, "Bolt", 10)
	p2 := f.addProduct(t, "Nut", 10)

	order, err := f.svc.Place(ctx, "user-1", []domain.ItemRequest{
		{ProductID: p1.ID, Quantity: 3},
		{ProductID: p2.ID, Quantity: 3},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.False(t, order.CreatedAt.IsZero())
	assert.Equal(t, []domain.OrderItem{
		{ProductID: p1.ID, Name: "Bolt", Quantity: 3},
		{ProductID: p2.ID, Name: "Nut", Quantity: 3},
	}, order.Items)

	assert.Equal(t, 7, f.stock(t, p1.ID))
	assert.Equal(t, 7, f.stock(t, p2.ID))

	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
	assert.Equal(t, order.Items, stored.Items)
}

func TestPlace_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		stock int
		items func(productID string) []domain.ItemRequest
	}{
		{
			name:  "total not a multiple of six even with enough stock",
			stock: 10,
			items: func(id string) []domain.ItemRequest { return []domain.ItemRequest{{ProductID: id, Quantity: 5}} },
		},
		{
			name:  "insufficient stock even though total is a multiple of six",
			stock: 3,
			items: func(id string) []domain.ItemRequest { return []domain.ItemRequest{{ProductID: id, Quantity: 6}} },
		},
		{
			name:  "unknown product",
			stock: 12,
			items: func(string) []domain.ItemRequest { return []domain.ItemRequest{{ProductID: "ghost", Quantity: 6}} },
		},
		{
			name:  "zero quantity",
			stock: 12,
			items: func(id string) []domain.ItemRequest {
				return []domain.ItemRequest{{ProductID: id, Quantity: 6}, {ProductID: id, Quantity: 0}}
			},
		},
		{
			name:  "negative quantity",
			stock: 12,
			items: func(id string) []domain.ItemRequest {
				return []domain.ItemRequest{{ProductID: id, Quantity: 12}, {ProductID: id, Quantity: -6}}
			},
		},
		{
			name:  "same product twice beyond stock",
			stock: 6,
			items: func(id string) []domain.ItemRequest {
				return []domain.ItemRequest{{ProductID: id, Quantity: 6}, {ProductID: id, Quantity: 6}}
			},
		},
		{
			name:  "empty order",
			stock: 6,
			items: func(string) []domain.ItemRequest { return nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.addProduct(t, "Bolt", tt.stock)

			_, err := f.svc.Place(context.Background(), "user-1", tt.items(p.ID))
			requireInvalid(t, err)

			assert.Equal(t, tt.stock, f.stock(t, p.ID))
			assert.Zero(t, f.orderCount(t))
		})
	}
}

func TestPlace_OneBadLineAbortsWholeOrder(t *testing.T) {
	f := newFixture(t)
	plenty := f.addProduct(t, "Bolt", 10)
	scarce := f.addProduct(t, "Nut", 2)

	_, err := f.svc.Place(context.Background(), "user-1", []domain.ItemRequest{
		{ProductID: plenty.ID, Quantity: 3},
		{ProductID: scarce.ID, Quantity: 3},
	})
	requireInvalid(t, err)

	assert.Equal(t, 10, f.stock(t, plenty.ID))
	assert.Equal(t, 2, f.stock(t, scarce.ID))
}

func TestPlace_ConcurrentOrdersForLastBatch(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "Bolt", 6)

	const buyers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		placed  int
		refused int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Place(context.Background(), "user-1", []domain.ItemRequest{{ProductID: p.ID, Quantity: 6}})

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				placed++
				return
			}
			if _, ok := apperr.IsInvalid(err); ok {
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, placed)
	assert.Equal(t, buyers-1, refused)
	assert.Equal(t, 0, f.stock(t, p.ID))
	assert.Equal(t, 1, f.orderCount(t))
}

func TestPlace_RenameAfterOrderKeepsSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Bolt", 12)

	order, err := f.svc.Place(ctx, "user-1", []domain.ItemRequest{{ProductID: p.ID, Quantity: 6}})
	require.NoError(t, err)

	_, err = f.catalog.Update(ctx, p.ID, "Hex Bolt", 6)
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bolt", stored.Items[0].Name)
}

// brokenOrders fails every save with a non-conflict error.
type brokenOrders struct {
	*Repository
	err error
}

func (b brokenOrders) Save(context.Context, []domain.Order, docstore.Version) error {
	return b.err
}

func TestPlace_AppendFailureDoesNotRestoreStock(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("orders backend down")
	svc := NewService(f.products, brokenOrders{Repository: f.orders, err: boom}, occ.New())
	p := f.addProduct(t, "Bolt", 6)

	_, err := svc.Place(context.Background(), "user-1", []domain.ItemRequest{{ProductID: p.ID, Quantity: 6}})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, f.stock(t, p.ID))
	assert.Zero(t, f.orderCount(t))
}

// cancelAfterSave cancels the request right after stock has been saved.
type cancelAfterSave struct {
	*catalog.Repository
	cancel context.CancelFunc
}

func (c cancelAfterSave) Save(ctx context.Context, products []catalogdomain.Product, read docstore.Version) error {
	err := c.Repository.Save(ctx, products, read)
	if err == nil {
		c.cancel()
	}
	return err
}

func TestPlace_CancelAfterStockTakenStillRecordsOrder(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "Bolt", 6)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewService(cancelAfterSave{Repository: f.products, cancel: cancel}, f.orders, occ.New())

	order, err := svc.Place(ctx, "user-1", []domain.ItemRequest{{ProductID: p.ID, Quantity: 6}})
	require.NoError(t, err)
	require.ErrorIs(t, ctx.Err(), context.Canceled)

	assert.Equal(t, 0, f.stock(t, p.ID))
	stored, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.UserID)
}

func TestPlace_CancelledBeforeStockTakenChangesNothing(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "Bolt", 6)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Place(ctx, "user-1", []domain.ItemRequest{{ProductID: p.ID, Quantity: 6}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 6, f.stock(t, p.ID))
	assert.Zero(t, f.orderCount(t))
}

func TestPlace_TotalOverflowIsRejected(t *testing.T) {
	f := newFixture(t)
	// 2^62 + (2^62 + 2) wraps around to a multiple of six.
	a := f.addProduct(t, "A", math.MaxInt/2+1)
	b := f.addProduct(t, "B", math.MaxInt/2+3)

	_, err := f.svc.Place(context.Background(), "user-1", []domain.ItemRequest{
		{ProductID: a.ID, Quantity: math.MaxInt/2 + 1},
		{ProductID: b.ID, Quantity: math.MaxInt/2 + 3},
	})
	requireInvalid(t, err)

	assert.Equal(t, math.MaxInt/2+1, f.stock(t, a.ID))
	assert.Equal(t, math.MaxInt/2+3, f.stock(t, b.ID))
	assert.Zero(t, f.orderCount(t))
}

func TestListForUser_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Bolt", 100)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	place := func(user string) domain.Order {
		o, err := f.svc.Place(ctx, user, []domain.ItemRequest{{ProductID: p.ID, Quantity: 6}})
		require.NoError(t, err)
		return o
	}
	first := place("alice")
	other := place("bob")
	second := place("alice")

	mine, err := f.svc.ListForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)

	none, err := f.svc.ListForUser(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := f.svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{first.ID, other.ID, second.ID}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Bolt", 6)
	order, err := f.svc.Place(ctx, "user-1", []domain.ItemRequest{{ProductID: p.ID, Quantity: 6}})
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateStatus(ctx, order.ID, domain.StatusReadyToShip))
	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReadyToShip, stored.Status)

	requireInvalid(t, f.svc.UpdateStatus(ctx, order.ID, domain.Status("Lost")))
}

func TestUpdateStatus_MissingLeavesCollectionUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Bolt", 6)
	_, err := f.svc.Place(ctx, "user-1", []domain.ItemRequest{{ProductID: p.ID, Quantity: 6}})
	require.NoError(t, err)

	before, err := f.orders.Load(ctx)
	require.NoError(t, err)

	err = f.svc.UpdateStatus(ctx, "missing", domain.StatusShipped)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	after, err := f.orders.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDelete_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Bolt", 6)
	order, err := f.svc.Place(ctx, "user-1", []domain.ItemRequest{{ProductID: p.ID, Quantity: 6}})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, order.ID))
	require.ErrorIs(t, f.svc.Delete(ctx, order.ID), apperr.ErrNotFound)

	_, err = f.svc.Get(ctx, order.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Zero(t, f.orderCount(t))
}

package ordering

import (
	"context"

	"github.com/jcmexdev/order-desk/internal/docstore"
	"github.com/jcmexdev/order-desk/internal/ordering/domain"
)

// OrdersKey is the document holding every order.
const OrdersKey = "orders"

// Repository binds the document store to the order list. No caching.
type Repository struct {
	store      docstore.Store
	collection string
}

func NewRepository(store docstore.Store, collection string) *Repository {
	return &Repository{store: store, collection: collection}
}

func (r *Repository) Load(ctx context.Context) (docstore.VersionedList[domain.Order], error) {
	return docstore.Load[domain.Order](ctx, r.store, r.collection, OrdersKey)
}

func (r *Repository) Save(ctx context.Context, orders []domain.Order, read docstore.Version) error {
	_, err := docstore.SaveIfUnchanged(ctx, r.store, r.collection, OrdersKey, orders, read)
	return err
}

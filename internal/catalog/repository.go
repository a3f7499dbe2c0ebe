package catalog

import (
	"context"

	"github.com/jcmexdev/order-desk/internal/catalog/domain"
	"github.com/jcmexdev/order-desk/internal/docstore"
)

// ProductsKey is the document holding the whole catalog.
const ProductsKey = "products"

// Repository binds the document store to the product list. It never caches:
// every Load goes back to the store so a retry sees fresh state.
type Repository struct {
	store      docstore.Store
	collection string
}

func NewRepository(store docstore.Store, collection string) *Repository {
	return &Repository{store: store, collection: collection}
}

func (r *Repository) Load(ctx context.Context) (docstore.VersionedList[domain.Product], error) {
	return docstore.Load[domain.Product](ctx, r.store, r.collection, ProductsKey)
}

// Save writes products if the catalog is still at read.
func (r *Repository) Save(ctx context.Context, products []domain.Product, read docstore.Version) error {
	_, err := docstore.SaveIfUnchanged(ctx, r.store, r.collection, ProductsKey, products, read)
	return err
}

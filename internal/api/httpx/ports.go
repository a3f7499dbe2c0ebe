package httpx

import (
	"context"

	catalogdomain "github.com/jcmexdev/order-desk/internal/catalog/domain"
	identitydomain "github.com/jcmexdev/order-desk/internal/identity/domain"
	orderdomain "github.com/jcmexdev/order-desk/internal/ordering/domain"
)

// The handler depends on these ports rather than on the concrete services.

type Authenticator interface {
	Login(ctx context.Context, login, password string) (string, error)
}

type CatalogService interface {
	List(ctx context.Context) ([]catalogdomain.Product, error)
	Add(ctx context.Context, name string, quantity int) (catalogdomain.Product, error)
	Update(ctx context.Context, id, name string, quantity int) (catalogdomain.Product, error)
	Delete(ctx context.Context, id string) error
}

type OrderService interface {
	Place(ctx context.Context, userID string, items []orderdomain.ItemRequest) (orderdomain.Order, error)
	ListForUser(ctx context.Context, userID string) ([]orderdomain.Order, error)
	ListAll(ctx context.Context) ([]orderdomain.Order, error)
	Get(ctx context.Context, id string) (orderdomain.Order, error)
	UpdateStatus(ctx context.Context, id string, status orderdomain.Status) error
	Delete(ctx context.Context, id string) error
}

type UserDirectory interface {
	ListAll(ctx context.Context) ([]identitydomain.User, error)
}

// HealthCheck reports whether the storage backend is reachable.
type HealthCheck func(ctx context.Context) error

package catalog

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/jcmexdev/order-desk/internal/catalog/domain"
	"github.com/jcmexdev/order-desk/internal/docstore"
	"github.com/jcmexdev/order-desk/internal/occ"
	"github.com/jcmexdev/order-desk/internal/pkg/apperr"
)

// ProductRepository is the storage port the catalog and ordering services
// share. *Repository satisfies it.
type ProductRepository interface {
	Load(ctx context.Context) (docstore.VersionedList[domain.Product], error)
	Save(ctx context.Context, products []domain.Product, read docstore.Version) error
}

// Service administers the catalog. Each mutation is one optimistic loop.
type Service struct {
	products ProductRepository
	retrier  *occ.Retrier
	newID    func() string
}

// NewService builds a Service that persists through products and retries
// conflicting writes with retrier.
func NewService(products ProductRepository, retrier *occ.Retrier) *Service {
	return &Service{
		products: products,
		retrier:  retrier,
		newID:    uuid.NewString,
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	list, err := s.products.Load(ctx)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// Add appends a product with a fresh identity.
func (s *Service) Add(ctx context.Context, name string, quantity int) (domain.Product, error) {
	name, err := validate(name, quantity)
	if err != nil {
		return domain.Product{}, err
	}

	p, err := occ.Update(ctx, s.retrier, "catalog.add", s.products.Load,
		func(items []domain.Product) ([]domain.Product, domain.Product, error) {
			p := domain.Product{ID: s.newID(), Name: name, Quantity: quantity}
			return append(items, p), p, nil
		},
		s.products.Save,
	)
	if err != nil {
		return domain.Product{}, err
	}

	slog.InfoContext(ctx, "product added", "product_id", p.ID, "quantity", p.Quantity)
	return p, nil
}

// Update replaces name and quantity of an existing product.
func (s *Service) Update(ctx context.Context, id, name string, quantity int) (domain.Product, error) {
	name, err := validate(name, quantity)
	if err != nil {
		return domain.Product{}, err
	}

	p, err := occ.Update(ctx, s.retrier, "catalog.update", s.products.Load,
		func(items []domain.Product) ([]domain.Product, domain.Product, error) {
			i := indexOf(items, id)
			if i < 0 {
				return nil, domain.Product{}, apperr.ErrNotFound
			}
			items[i].Name = name
			items[i].Quantity = quantity
			return items, items[i], nil
		},
		s.products.Save,
	)
	if err != nil {
		return domain.Product{}, err
	}

	slog.InfoContext(ctx, "product updated", "product_id", id, "quantity", quantity)
	return p, nil
}

// Delete removes a product. Orders that reference it keep their snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := occ.Update(ctx, s.retrier, "catalog.delete", s.products.Load,
		func(items []domain.Product) ([]domain.Product, struct{}, error) {
			i := indexOf(items, id)
			if i < 0 {
				return nil, struct{}{}, apperr.ErrNotFound
			}
			return slices.Delete(items, i, i+1), struct{}{}, nil
		},
		s.products.Save,
	)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "product deleted", "product_id", id)
	return nil
}

func validate(name string, quantity int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Invalid("product name is required")
	}
	if quantity < 0 {
		return "", apperr.Invalid("quantity must not be negative")
	}
	return name, nil
}

func indexOf(items []domain.Product, id string) int {
	return slices.IndexFunc(items, func(p domain.Product) bool { return p.ID == id })
}

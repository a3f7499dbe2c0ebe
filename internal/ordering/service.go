// Package ordering places orders against the catalog and manages their
// lifecycle.
//
// Placing an order is two independent optimistic loops: one takes stock
// out of the products document, the other appends the order to the orders
// document. They are not atomic together. If the second loop hits a fatal
// store error, or the process dies between them, the stock stays
// decremented with no order recorded. Cancelling the caller's context does
// not stop the second loop once stock has been taken.
package ordering

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/order-desk/internal/catalog"
	catalogdomain "github.com/jcmexdev/order-desk/internal/catalog/domain"
	"github.com/jcmexdev/order-desk/internal/docstore"
	"github.com/jcmexdev/order-desk/internal/occ"
	"github.com/jcmexdev/order-desk/internal/ordering/domain"
	"github.com/jcmexdev/order-desk/internal/pkg/apperr"
)

// OrderRepository is the storage port for the orders document.
// *Repository satisfies it.
type OrderRepository interface {
	Load(ctx context.Context) (docstore.VersionedList[domain.Order], error)
	Save(ctx context.Context, orders []domain.Order, read docstore.Version) error
}

// Service places orders and manages their lifecycle. Each mutation is one
// optimistic loop; Place runs two.
type Service struct {
	products catalog.ProductRepository
	orders   OrderRepository
	retrier  *occ.Retrier
	newID    func() string
	now      func() time.Time
}

// NewService builds a Service. products is shared with the catalog service
// so both see the same stock.
func NewService(products catalog.ProductRepository, orders OrderRepository, retrier *occ.Retrier) *Service {
	return &Service{
		products: products,
		orders:   orders,
		retrier:  retrier,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Place takes stock for every requested line and records a Pending order
// for userID.
func (s *Service) Place(ctx context.Context, userID string, items []domain.ItemRequest) (domain.Order, error) {
	if len(items) == 0 {
		return domain.Order{}, apperr.Invalid("order must contain at least one item")
	}

	lines, err := occ.Update(ctx, s.retrier, "ordering.take_stock", s.products.Load,
		func(products []catalogdomain.Product) ([]catalogdomain.Product, []domain.OrderItem, error) {
			lines, err := takeStock(products, items)
			return products, lines, err
		},
		s.products.Save,
	)
	if err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:        s.newID(),
		UserID:    userID,
		CreatedAt: s.now().UTC(),
		Status:    domain.StatusPending,
		Items:     lines,
	}

	// Stock is already gone; a cancelled request must not drop the order.
	appendCtx := context.WithoutCancel(ctx)
	_, err = occ.Update(appendCtx, s.retrier, "ordering.append", s.orders.Load,
		func(orders []domain.Order) ([]domain.Order, struct{}, error) {
			return append(orders, order), struct{}{}, nil
		},
		s.orders.Save,
	)
	if err != nil {
		slog.ErrorContext(appendCtx, "stock taken but order not recorded",
			"order_id", order.ID,
			"user_id", userID,
			"error", err,
		)
		return domain.Order{}, err
	}

	slog.InfoContext(ctx, "order placed", "order_id", order.ID, "user_id", userID, "quantity", order.TotalQuantity())
	return order, nil
}

// takeStock validates every requested line against products and, if all of
// them pass, decrements products in place. A line asking for the same
// product twice is checked against what the earlier lines left over.
func takeStock(products []catalogdomain.Product, items []domain.ItemRequest) ([]domain.OrderItem, error) {
	indexes := make([]int, len(items))
	demand := make(map[int]int, len(items))
	total := 0

	for n, it := range items {
		i := slices.IndexFunc(products, func(p catalogdomain.Product) bool { return p.ID == it.ProductID })
		if i < 0 {
			return nil, apperr.Invalid("product %q does not exist", it.ProductID)
		}
		if it.Quantity <= 0 {
			return nil, apperr.Invalid("quantity for %q must be positive", products[i].Name)
		}
		if available := products[i].Quantity - demand[i]; it.Quantity > available {
			return nil, apperr.Invalid("insufficient stock for %q: requested %d, available %d",
				products[i].Name, it.Quantity, available)
		}
		if total > math.MaxInt-it.Quantity {
			return nil, apperr.Invalid("total quantity is too large")
		}
		demand[i] += it.Quantity
		indexes[n] = i
		total += it.Quantity
	}

	if total%domain.BatchSize != 0 {
		return nil, apperr.Invalid("total quantity %d is not a multiple of %d", total, domain.BatchSize)
	}

	lines := make([]domain.OrderItem, len(items))
	for n, it := range items {
		p := &products[indexes[n]]
		p.Quantity -= it.Quantity
		lines[n] = domain.OrderItem{ProductID: p.ID, Name: p.Name, Quantity: it.Quantity}
	}
	return lines, nil
}

// ListForUser returns the orders of userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	list, err := s.orders.Load(ctx)
	if err != nil {
		return nil, err
	}

	mine := make([]domain.Order, 0)
	for _, o := range list.Items {
		if o.UserID == userID {
			mine = append(mine, o)
		}
	}
	slices.SortStableFunc(mine, func(a, b domain.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return mine, nil
}

// ListAll returns every order in storage order.
func (s *Service) ListAll(ctx context.Context) ([]domain.Order, error) {
	list, err := s.orders.Load(ctx)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	list, err := s.orders.Load(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	i := indexOf(list.Items, id)
	if i < 0 {
		return domain.Order{}, apperr.ErrNotFound
	}
	return list.Items[i], nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	if !status.Valid() {
		return apperr.Invalid("unknown order status %q", status)
	}

	_, err := occ.Update(ctx, s.retrier, "ordering.update_status", s.orders.Load,
		func(orders []domain.Order) ([]domain.Order, struct{}, error) {
			i := indexOf(orders, id)
			if i < 0 {
				return nil, struct{}{}, apperr.ErrNotFound
			}
			orders[i].Status = status
			return orders, struct{}{}, nil
		},
		s.orders.Save,
	)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "order status updated", "order_id", id, "status", status)
	return nil
}

// Delete removes the order for good. Its stock is not returned.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := occ.Update(ctx, s.retrier, "ordering.delete", s.orders.Load,
		func(orders []domain.Order) ([]domain.Order, struct{}, error) {
			i := indexOf(orders, id)
			if i < 0 {
				return nil, struct{}{}, apperr.ErrNotFound
			}
			return slices.Delete(orders, i, i+1), struct{}{}, nil
		},
		s.orders.Save,
	)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "order deleted", "order_id", id)
	return nil
}

func indexOf(orders []domain.Order, id string) int {
	return slices.IndexFunc(orders, func(o domain.Order) bool { return o.ID == id })
}

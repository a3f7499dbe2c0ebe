package httpx

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	catalogdomain "github.com/jcmexdev/order-desk/internal/catalog/domain"
	orderdomain "github.com/jcmexdev/order-desk/internal/ordering/domain"
)

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type ProductRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type ProductResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type PlaceOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

type OrderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderResponse is the wire form of an order. Status is the name
// ("Pending", "ReadyToShip", "Shipped"), not the numeric code clients may
// have stored; the status endpoint still accepts either.
type OrderResponse struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	CreatedAt string              `json:"createdAt"`
	Status    string              `json:"status"`
	Items     []OrderItemResponse `json:"items"`
}

type OrderItemResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

// UpdateStatusRequest accepts the status either as a name ("Shipped") or
// as its numeric code (2).
type UpdateStatusRequest struct {
	Status StatusValue `json:"status"`
}

// StatusValue is the raw textual form of a status code or name.
type StatusValue string

func (s *StatusValue) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*s = StatusValue(name)
		return nil
	}
	var code int
	if err := json.Unmarshal(b, &code); err != nil {
		return errors.New("status must be a name or a number")
	}
	*s = StatusValue(strconv.Itoa(code))
	return nil
}

type UserResponse struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapProduct(p catalogdomain.Product) ProductResponse {
	return ProductResponse{ID: p.ID, Name: p.Name, Quantity: p.Quantity}
}

func mapProducts(products []catalogdomain.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = mapProduct(p)
	}
	return out
}

func mapOrder(o orderdomain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity}
	}
	return OrderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339Nano),
		Status:    string(o.Status),
		Items:     items,
	}
}

func mapOrders(orders []orderdomain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = mapOrder(o)
	}
	return out
}

func mapItemRequests(items []OrderItemRequest) []orderdomain.ItemRequest {
	out := make([]orderdomain.ItemRequest, len(items))
	for i, it := range items {
		out[i] = orderdomain.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

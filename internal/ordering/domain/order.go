package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BatchSize is the shipping unit: the item quantities of one order must
// add up to a multiple of it.
const BatchSize = 6

type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	CreatedAt time.Time   `json:"createdAt"`
	Status    Status      `json:"status"`
	Items     []OrderItem `json:"items"`
}

// OrderItem is one order line. Name is copied from the product when the
// order is placed so later renames do not rewrite history.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

// ItemRequest is one requested line of a new order.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// TotalQuantity sums the item quantities.
func (o Order) TotalQuantity() int {
	total := 0
	for _, it := range o.Items {
		total += it.Quantity
	}
	return total
}

type Status string

const (
	StatusPending     Status = "Pending"
	StatusReadyToShip Status = "ReadyToShip"
	StatusShipped     Status = "Shipped"
)

// Statuses lists every status in lifecycle order. The position of a status
// is its numeric code on the wire.
var Statuses = []Status{StatusPending, StatusReadyToShip, StatusShipped}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts a status name (case-insensitive) or its numeric code.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 || n >= len(Statuses) {
			return "", fmt.Errorf("unknown order status code %d", n)
		}
		return Statuses[n], nil
	}
	for _, known := range Statuses {
		if strings.EqualFold(v, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", v)
}

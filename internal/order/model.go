package order

import (
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusPending  OrderStatus = "PENDING"
	StatusPaid     OrderStatus = "PAID"
	StatusCanceled OrderStatus = "CANCELED"
)

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusPaid, StatusCanceled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown order status %q (want PENDING, PAID or CANCELED)", s)
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusCanceled
}

type Order struct {
	ID                    uint
	UserID                *uint
	Status                OrderStatus
	TotalAmountINR        int
	StripeSessionID       *string
	StripePaymentIntentID *string
	CreatedAt             time.Time
	Items                 []OrderItem
}

// OrderItem snapshots the unit price at checkout time.
type OrderItem struct {
	ID           uint
	OrderID      uint
	ProductID    uint
	ProductName  string
	Quantity     int
	UnitPriceINR int
}

// Subtotal is quantity times the snapshotted unit price.
func (i OrderItem) Subtotal() int {
	return i.Quantity * i.UnitPriceINR
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pedidos

type Order struct {
	ID            string
	Customer      string
	Status        string
	PaymentMethod string
	Total         decimal.Decimal
	CreatedAt     time.Time
}

const (
	OrderStatusPorConfirmar = "PorConfirmar"
	OrderStatusConfirmado   = "Confirmado"
	OrderStatusCancelado    = "Cancelado"
)

// OrderLine is one (product, quantity, price) row of an order.
// Unit price is captured when the line is created and is not
// refreshed from the catalog afterwards.
type OrderLine struct {
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Catálogo (referenced, not owned; only the stock counter is mutated here)

type Product struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Stock     int
	Active    bool
}

type Customer struct {
	ID   string
	Name string
}

// StockDeficit reports a shortfall between what an order line needs
// and what the counter currently holds. Never persisted.
type StockDeficit struct {
	ProductID string
	Required  int
	Available int
	Deficit   int
}

// StockRelease is a pending stock give-back, used when cancelling
// an order returns every line's quantity to the counter.
type StockRelease struct {
	ProductID string
	Quantity  int
}

package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/tiendita/pedidos/internal/model"
)

// Store owns the orders, their lines and the per-product stock counter.
// The composite operations (OrderApplyLine, OrderConfirm, OrderCancel)
// are atomic: header check, line mutation and stock adjustment commit
// together or not at all. Customers and the product catalog belong to
// the back-office; the store only reads them, except for the stock
// counter and the seeding helpers.
type Store interface {
	CustomerGet(ctx context.Context, id string) (model.Customer, error)
	CustomerPut(ctx context.Context, customer model.Customer) error
	ProductGet(ctx context.Context, id string) (model.Product, error)
	ProductPut(ctx context.Context, product model.Product) error

	// StockAdjust applies delta to the product's counter and returns the
	// new value. A result below zero fails with ErrInsufficientStock and
	// leaves the counter untouched.
	StockAdjust(ctx context.Context, productID string, delta int) (int, error)

	OrderPost(ctx context.Context, order model.Order) error
	OrderGet(ctx context.Context, id string) (model.Order, error)
	OrderGetByCustomer(ctx context.Context, customer string) ([]model.Order, error)
	OrderGetByStatus(ctx context.Context, status string) ([]model.Order, error)
	LinesGet(ctx context.Context, orderID string) ([]model.OrderLine, error)

	// OrderApplyLine upserts (or removes) one line, applies stockDelta to
	// the product counter and persists the new order total, atomically.
	// Fails ErrNotEditable unless the order is still PorConfirmar.
	OrderApplyLine(ctx context.Context, orderID string, line model.OrderLine, remove bool, stockDelta int, total decimal.Decimal) error

	// OrderConfirm flips PorConfirmar -> Confirmado after re-checking,
	// inside the same transaction, that the order has lines, a positive
	// total and no stock deficit.
	OrderConfirm(ctx context.Context, orderID string) error

	// OrderCancel flips PorConfirmar -> Cancelado and releases every
	// line's quantity back to stock, atomically.
	OrderCancel(ctx context.Context, orderID string) error
}

var (
	ErrNoRows            = errors.New("no rows")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotEditable       = errors.New("order is not editable")
	ErrEmptyOrder        = errors.New("order has no lines")
	ErrTotalNotPositive  = errors.New("order total is not positive")
	ErrStockShort        = errors.New("stock deficit on confirm")
)

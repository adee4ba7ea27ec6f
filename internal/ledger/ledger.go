package ledger

import (
	"context"

	"github.com/tiendita/pedidos/internal/store"
)

// Ledger is the per-product stock counter. Reserve takes stock for a
// pending order line, Release gives it back. The counter never goes
// below zero.
type Ledger interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
	Available(ctx context.Context, productID string) (int, error)
}

type ledger struct {
	store store.Store
}

func NewLedger(store store.Store) Ledger {
	return &ledger{store: store}
}

func (l *ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	_, err := l.store.StockAdjust(ctx, productID, -quantity)
	return err
}

func (l *ledger) Release(ctx context.Context, productID string, quantity int) error {
	_, err := l.store.StockAdjust(ctx, productID, quantity)
	return err
}

func (l *ledger) Available(ctx context.Context, productID string) (int, error) {
	product, err := l.store.ProductGet(ctx, productID)
	if err != nil {
		return 0, err
	}
	return product.Stock, nil
}

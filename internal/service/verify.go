package service

import (
	"context"

	"github.com/tiendita/pedidos/internal/model"
	"github.com/tiendita/pedidos/internal/store"
)

// VerifyStock reconciles the order's lines against the current stock
// counters. Point-in-time and lock-free: the result can be stale by
// the time the order is confirmed, which is why the confirm transition
// runs the same check again inside its transaction. An empty result
// means the order is confirmable as-is.
func (s *service) VerifyStock(ctx context.Context, orderID string) ([]model.StockDeficit, error) {
	_, err := s.store.OrderGet(ctx, orderID)
	if err != nil {
		if err == store.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	lines, err := s.store.LinesGet(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var deficits []model.StockDeficit
	for _, line := range lines {
		available, err := s.ledger.Available(ctx, line.ProductID)
		if err != nil {
			if err != store.ErrNoRows {
				return nil, err
			}
			// product dropped from the catalog counts as zero stock
			available = 0
		}
		if line.Quantity > available {
			deficits = append(deficits, model.StockDeficit{
				ProductID: line.ProductID,
				Required:  line.Quantity,
				Available: available,
				Deficit:   line.Quantity - available,
			})
		}
	}
	return deficits, nil
}

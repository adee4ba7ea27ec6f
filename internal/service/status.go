package service

import (
	"context"

	"github.com/tiendita/pedidos/internal/model"
	"github.com/tiendita/pedidos/internal/store"
)

// SetEstado moves the order to a terminal status.
//
// PorConfirmar -> Confirmado re-checks, inside the store transaction,
// that the order has lines, a positive total and no stock deficit; no
// stock moves, reservation already happened when the lines were added.
// PorConfirmar -> Cancelado releases every line's reservation back to
// the counters. Confirmado and Cancelado accept no further transition.
func (s *service) SetEstado(ctx context.Context, orderID string, target string) (model.Order, []model.OrderLine, error) {
	switch target {
	case model.OrderStatusConfirmado, model.OrderStatusCancelado:
	default:
		return model.Order{}, nil, ErrInvalidStatus
	}

	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.store.OrderGet(ctx, orderID)
	if err != nil {
		if err == store.ErrNoRows {
			return model.Order{}, nil, ErrOrderNotFound
		}
		return model.Order{}, nil, err
	}
	if order.Status != model.OrderStatusPorConfirmar {
		return model.Order{}, nil, ErrOrderNotEditable
	}

	switch target {
	case model.OrderStatusConfirmado:
		err = s.store.OrderConfirm(ctx, orderID)
	case model.OrderStatusCancelado:
		err = s.store.OrderCancel(ctx, orderID)
	}
	if err != nil {
		switch err {
		case store.ErrNoRows:
			return model.Order{}, nil, ErrOrderNotFound
		case store.ErrNotEditable:
			return model.Order{}, nil, ErrOrderNotEditable
		case store.ErrEmptyOrder:
			return model.Order{}, nil, ErrOrderHasNoItems
		case store.ErrTotalNotPositive:
			return model.Order{}, nil, ErrOrderTotalNotPositive
		case store.ErrStockShort:
			return model.Order{}, nil, ErrStockInconsistent
		default:
			return model.Order{}, nil, err
		}
	}

	return s.GetOrder(ctx, orderID)
}

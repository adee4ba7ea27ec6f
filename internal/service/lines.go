package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tiendita/pedidos/internal/model"
	"github.com/tiendita/pedidos/internal/store"
)

// AddItem puts quantity of a product on the order. An existing line
// for the same product is merged by increasing its quantity; the unit
// price captured when the line was first created stays. A new line
// takes unitPrice when given, else the current catalog price.
func (s *service) AddItem(ctx context.Context, orderID string, productID string, quantity int, unitPrice *decimal.Decimal) ([]model.OrderLine, error) {
	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.store.OrderGet(ctx, orderID)
	if err != nil {
		if err == store.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.Status != model.OrderStatusPorConfirmar {
		return nil, ErrOrderNotEditable
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.store.ProductGet(ctx, productID)
	if err != nil {
		if err == store.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if !product.Active {
		return nil, ErrProductNotFound
	}

	lines, err := s.store.LinesGet(ctx, orderID)
	if err != nil {
		return nil, err
	}

	line := model.OrderLine{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
	}
	if unitPrice != nil {
		line.UnitPrice = *unitPrice
	} else {
		line.UnitPrice = product.UnitPrice
	}

	rest := decimal.Zero
	for _, existing := range lines {
		if existing.ProductID == productID {
			line.Quantity = existing.Quantity + quantity
			line.UnitPrice = existing.UnitPrice
			continue
		}
		rest = rest.Add(existing.Subtotal())
	}
	total := rest.Add(line.Subtotal())

	// Line, reservation and total commit together; on insufficient
	// stock nothing changes.
	err = s.store.OrderApplyLine(ctx, orderID, line, false, -quantity, total)
	if err != nil {
		switch err {
		case store.ErrNoRows:
			return nil, ErrOrderNotFound
		case store.ErrNotEditable:
			return nil, ErrOrderNotEditable
		case store.ErrInsufficientStock:
			return nil, ErrInsufficientStock
		default:
			return nil, err
		}
	}

	return s.store.LinesGet(ctx, orderID)
}

// RemoveItem takes quantity of a product off the order. A nil quantity
// drops the whole line. Removing more than the line holds clamps: the
// line goes away and only what it actually reserved is released.
func (s *service) RemoveItem(ctx context.Context, orderID string, productID string, quantity *int) ([]model.OrderLine, error) {
	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.store.OrderGet(ctx, orderID)
	if err != nil {
		if err == store.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.Status != model.OrderStatusPorConfirmar {
		return nil, ErrOrderNotEditable
	}

	lines, err := s.store.LinesGet(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var current *model.OrderLine
	rest := decimal.Zero
	for i, existing := range lines {
		if existing.ProductID == productID {
			current = &lines[i]
			continue
		}
		rest = rest.Add(existing.Subtotal())
	}
	if current == nil {
		return nil, ErrLineNotFound
	}

	remove := quantity == nil
	release := current.Quantity
	line := *current
	if quantity != nil {
		if *quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if *quantity >= current.Quantity {
			// clamp: release only what the line owns
			remove = true
			release = current.Quantity
		} else {
			release = *quantity
			line.Quantity = current.Quantity - *quantity
		}
	}

	total := rest
	if !remove {
		total = rest.Add(line.Subtotal())
	}

	err = s.store.OrderApplyLine(ctx, orderID, line, remove, release, total)
	if err != nil {
		switch err {
		case store.ErrNoRows:
			return nil, ErrOrderNotFound
		case store.ErrNotEditable:
			return nil, ErrOrderNotEditable
		default:
			return nil, err
		}
	}

	return s.store.LinesGet(ctx, orderID)
}

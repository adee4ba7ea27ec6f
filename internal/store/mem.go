package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tiendita/pedidos/internal/model"
)

// memStore keeps everything in maps behind a single lock. It backs the
// service when no database DSN is configured and carries the hermetic
// tests. Composite operations hold the write lock for their whole
// duration, which gives them the same all-or-nothing behavior as the
// SQL transactions in pgStore.
type memStore struct {
	mu        sync.RWMutex
	customers map[string]model.Customer
	products  map[string]model.Product
	orders    map[string]model.Order
	lines     map[string]map[string]model.OrderLine
	sequence  []string // order ids in creation order
}

func NewMemStore() Store {
	return &memStore{
		customers: make(map[string]model.Customer),
		products:  make(map[string]model.Product),
		orders:    make(map[string]model.Order),
		lines:     make(map[string]map[string]model.OrderLine),
	}
}

func (s *memStore) CustomerGet(_ context.Context, id string) (model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return model.Customer{}, ErrNoRows
	}
	return customer, nil
}

func (s *memStore) CustomerPut(_ context.Context, customer model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers[customer.ID] = customer
	return nil
}

func (s *memStore) ProductGet(_ context.Context, id string) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return model.Product{}, ErrNoRows
	}
	return product, nil
}

func (s *memStore) ProductPut(_ context.Context, product model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[product.ID] = product
	return nil
}

func (s *memStore) StockAdjust(_ context.Context, productID string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stockAdjustLocked(productID, delta)
}

func (s *memStore) stockAdjustLocked(productID string, delta int) (int, error) {
	product, ok := s.products[productID]
	if !ok {
		return 0, ErrNoRows
	}
	if product.Stock+delta < 0 {
		return product.Stock, ErrInsufficientStock
	}
	product.Stock += delta
	s.products[productID] = product
	return product.Stock, nil
}

func (s *memStore) OrderPost(_ context.Context, order model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return ErrAlreadyExists
	}
	s.orders[order.ID] = order
	s.lines[order.ID] = make(map[string]model.OrderLine)
	s.sequence = append(s.sequence, order.ID)
	return nil
}

func (s *memStore) OrderGet(_ context.Context, id string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return model.Order{}, ErrNoRows
	}
	return order, nil
}

func (s *memStore) OrderGetByCustomer(_ context.Context, customer string) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []model.Order
	for _, id := range s.sequence {
		if order := s.orders[id]; order.Customer == customer {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (s *memStore) OrderGetByStatus(_ context.Context, status string) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []model.Order
	for _, id := range s.sequence {
		if order := s.orders[id]; order.Status == status {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (s *memStore) LinesGet(_ context.Context, orderID string) ([]model.OrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.linesGetLocked(orderID), nil
}

func (s *memStore) linesGetLocked(orderID string) []model.OrderLine {
	var lines []model.OrderLine
	for _, line := range s.lines[orderID] {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID < lines[j].ProductID
	})
	return lines
}

func (s *memStore) OrderApplyLine(_ context.Context, orderID string, line model.OrderLine, remove bool, stockDelta int, total decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return ErrNoRows
	}
	if order.Status != model.OrderStatusPorConfirmar {
		return ErrNotEditable
	}

	if stockDelta != 0 {
		if _, err := s.stockAdjustLocked(line.ProductID, stockDelta); err != nil {
			return err
		}
	}

	if remove {
		delete(s.lines[orderID], line.ProductID)
	} else {
		s.lines[orderID][line.ProductID] = line
	}

	order.Total = total
	s.orders[orderID] = order
	return nil
}

func (s *memStore) OrderConfirm(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return ErrNoRows
	}
	if order.Status != model.OrderStatusPorConfirmar {
		return ErrNotEditable
	}
	if len(s.lines[orderID]) == 0 {
		return ErrEmptyOrder
	}
	if order.Total.Sign() <= 0 {
		return ErrTotalNotPositive
	}
	for _, line := range s.lines[orderID] {
		if product, ok := s.products[line.ProductID]; !ok || product.Stock < line.Quantity {
			return ErrStockShort
		}
	}

	order.Status = model.OrderStatusConfirmado
	s.orders[orderID] = order
	return nil
}

func (s *memStore) OrderCancel(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return ErrNoRows
	}
	if order.Status != model.OrderStatusPorConfirmar {
		return ErrNotEditable
	}

	for _, line := range s.lines[orderID] {
		if product, ok := s.products[line.ProductID]; ok {
			product.Stock += line.Quantity
			s.products[line.ProductID] = product
		}
	}

	order.Status = model.OrderStatusCancelado
	s.orders[orderID] = order
	return nil
}

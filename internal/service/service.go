package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tiendita/pedidos/internal/ledger"
	"github.com/tiendita/pedidos/internal/model"
	"github.com/tiendita/pedidos/internal/service/config"
	"github.com/tiendita/pedidos/internal/service/customerclient"
	"github.com/tiendita/pedidos/internal/store"
)

// Service is the single entry point for order lifecycle operations.
// Every mutating call re-reads the order header and checks editability
// before touching anything, and commits its line, stock and total
// effects in one store transaction.
type Service interface {
	CreateOrder(ctx context.Context, customerID string, paymentMethod string) (model.Order, error)
	AddItem(ctx context.Context, orderID string, productID string, quantity int, unitPrice *decimal.Decimal) ([]model.OrderLine, error)
	RemoveItem(ctx context.Context, orderID string, productID string, quantity *int) ([]model.OrderLine, error)
	SetEstado(ctx context.Context, orderID string, target string) (model.Order, []model.OrderLine, error)
	VerifyStock(ctx context.Context, orderID string) ([]model.StockDeficit, error)
	GetOrder(ctx context.Context, orderID string) (model.Order, []model.OrderLine, error)
	GetLines(ctx context.Context, orderID string) ([]model.OrderLine, error)
	ListByCustomer(ctx context.Context, customerID string) ([]model.Order, error)
	ListByStatus(ctx context.Context, status string) ([]model.Order, error)
	AdjustStock(ctx context.Context, productID string, delta int) (int, error)
}

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrLineNotFound          = errors.New("order line not found")
	ErrOrderNotEditable      = errors.New("order is not editable")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrOrderHasNoItems       = errors.New("order has no items")
	ErrOrderTotalNotPositive = errors.New("order total is not positive")
	ErrStockInconsistent     = errors.New("stock inconsistent with order lines")
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrInvalidStatus         = errors.New("invalid status")
)

type service struct {
	cfg       config.Config
	store     store.Store
	ledger    ledger.Ledger
	customers customerclient.CustomerClient

	// serializes in-process mutations of the same order
	locksMu    sync.Mutex
	orderLocks map[string]*sync.Mutex
}

func NewService(cfg config.Config, store store.Store) Service {
	ledger := ledger.NewLedger(store)

	var customers customerclient.CustomerClient
	if cfg.CustomersAddr != "" {
		customers = customerclient.NewCustomerClient(cfg.CustomersAddr)
	}

	return &service{
		cfg:        cfg,
		store:      store,
		ledger:     ledger,
		customers:  customers,
		orderLocks: make(map[string]*sync.Mutex),
	}
}

func (s *service) lockOrder(orderID string) func() {
	s.locksMu.Lock()
	mutex, ok := s.orderLocks[orderID]
	if !ok {
		mutex = &sync.Mutex{}
		s.orderLocks[orderID] = mutex
	}
	s.locksMu.Unlock()

	mutex.Lock()
	return mutex.Unlock
}

func (s *service) CreateOrder(ctx context.Context, customerID string, paymentMethod string) (model.Order, error) {
	if customerID == "" {
		return model.Order{}, ErrCustomerNotFound
	}

	// Customer directory lookup: over HTTP when configured, else the
	// shared customers table.
	if s.customers != nil {
		exists, err := s.customers.Exists(ctx, customerID)
		if err != nil {
			return model.Order{}, fmt.Errorf("customer lookup: %w", err)
		}
		if !exists {
			return model.Order{}, ErrCustomerNotFound
		}
	} else {
		_, err := s.store.CustomerGet(ctx, customerID)
		if err != nil {
			if err == store.ErrNoRows {
				return model.Order{}, ErrCustomerNotFound
			}
			return model.Order{}, err
		}
	}

	order := model.Order{
		ID:            "ped-" + uuid.NewString(),
		Customer:      customerID,
		Status:        model.OrderStatusPorConfirmar,
		PaymentMethod: paymentMethod,
		Total:         decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.OrderPost(ctx, order); err != nil {
		return model.Order{}, err
	}
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, orderID string) (model.Order, []model.OrderLine, error) {
	order, err := s.store.OrderGet(ctx, orderID)
	if err != nil {
		if err == store.ErrNoRows {
			return model.Order{}, nil, ErrOrderNotFound
		}
		return model.Order{}, nil, err
	}
	lines, err := s.store.LinesGet(ctx, orderID)
	if err != nil {
		return model.Order{}, nil, err
	}
	return order, lines, nil
}

func (s *service) GetLines(ctx context.Context, orderID string) ([]model.OrderLine, error) {
	_, err := s.store.OrderGet(ctx, orderID)
	if err != nil {
		if err == store.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return s.store.LinesGet(ctx, orderID)
}

func (s *service) ListByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	return s.store.OrderGetByCustomer(ctx, customerID)
}

func (s *service) ListByStatus(ctx context.Context, status string) ([]model.Order, error) {
	return s.store.OrderGetByStatus(ctx, status)
}

// AdjustStock is the back-office stock correction: positive delta
// restocks, negative writes stock off. Goes through the ledger so the
// zero floor holds.
func (s *service) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	if delta == 0 {
		return 0, ErrInvalidQuantity
	}

	var err error
	if delta < 0 {
		err = s.ledger.Reserve(ctx, productID, -delta)
	} else {
		err = s.ledger.Release(ctx, productID, delta)
	}
	if err != nil {
		switch err {
		case store.ErrNoRows:
			return 0, ErrProductNotFound
		case store.ErrInsufficientStock:
			return 0, ErrInsufficientStock
		default:
			return 0, err
		}
	}

	return s.ledger.Available(ctx, productID)
}

package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/tiendita/pedidos/internal/model"
	"github.com/tiendita/pedidos/internal/store/config"
)

type pgStore struct {
	database *sql.DB
}

func NewStore(cfg config.Config) (Store, error) {
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Customer directory. Owned by the back-office, read here.
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS customers (" +
			" id VARCHAR (64) PRIMARY KEY," +
			" name TEXT NOT NULL DEFAULT ''" +
			" );")
	if err != nil {
		return nil, err
	}

	// Product catalog. Only the stock counter is mutated by this service.
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS products (" +
			" id VARCHAR (64) PRIMARY KEY," +
			" name TEXT NOT NULL DEFAULT ''," +
			" unit_price NUMERIC (12,2) NOT NULL," +
			" stock INTEGER NOT NULL CHECK (stock >= 0)," +
			" active BOOLEAN NOT NULL DEFAULT TRUE" +
			" );")
	if err != nil {
		return nil, err
	}

	// Order headers. One row per order, the status column changes in place.
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS orders (" +
			" id VARCHAR (64) PRIMARY KEY," +
			" customer VARCHAR (64) NOT NULL," +
			" status VARCHAR (16) NOT NULL," +
			" payment_method VARCHAR (32) NOT NULL DEFAULT ''," +
			" total NUMERIC (12,2) NOT NULL DEFAULT 0," +
			" created_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Order lines. One row per (order, product), quantity is never zero.
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS order_lines (" +
			" order_id VARCHAR (64) NOT NULL," +
			" product_id VARCHAR (64) NOT NULL," +
			" quantity INTEGER NOT NULL CHECK (quantity > 0)," +
			" unit_price NUMERIC (12,2) NOT NULL," +
			" PRIMARY KEY (order_id, product_id)" +
			" );")
	if err != nil {
		return nil, err
	}

	return &pgStore{database: db}, nil
}

func (s *pgStore) CustomerGet(ctx context.Context, id string) (model.Customer, error) {
	row := s.database.QueryRowContext(ctx,
		"SELECT id, name FROM customers"+
			" WHERE id = $1",
		id)
	var customer model.Customer
	err := row.Scan(&customer.ID, &customer.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Customer{}, ErrNoRows
		}
		return model.Customer{}, err
	}
	return customer, nil
}

func (s *pgStore) CustomerPut(ctx context.Context, customer model.Customer) error {
	_, err := s.database.ExecContext(ctx,
		"INSERT INTO customers (id, name)"+
			" VALUES ($1, $2)"+
			" ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name",
		customer.ID,
		customer.Name)
	return err
}

func (s *pgStore) ProductGet(ctx context.Context, id string) (model.Product, error) {
	row := s.database.QueryRowContext(ctx,
		"SELECT id, name, unit_price, stock, active FROM products"+
			" WHERE id = $1",
		id)
	var product model.Product
	err := row.Scan(&product.ID,
		&product.Name,
		&product.UnitPrice,
		&product.Stock,
		&product.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Product{}, ErrNoRows
		}
		return model.Product{}, err
	}
	return product, nil
}

func (s *pgStore) ProductPut(ctx context.Context, product model.Product) error {
	_, err := s.database.ExecContext(ctx,
		"INSERT INTO products (id, name, unit_price, stock, active)"+
			" VALUES ($1, $2, $3, $4, $5)"+
			" ON CONFLICT (id) DO UPDATE SET"+
			" name = EXCLUDED.name,"+
			" unit_price = EXCLUDED.unit_price,"+
			" stock = EXCLUDED.stock,"+
			" active = EXCLUDED.active",
		product.ID,
		product.Name,
		product.UnitPrice,
		product.Stock,
		product.Active)
	return err
}

func (s *pgStore) StockAdjust(ctx context.Context, productID string, delta int) (int, error) {
	// Conditional update keeps the counter at zero or above without a
	// read-modify-write race.
	row := s.database.QueryRowContext(ctx,
		"UPDATE products"+
			" SET stock = stock + $1"+
			" WHERE id = $2"+
			"   AND stock + $1 >= 0"+
			" RETURNING stock",
		delta,
		productID)
	var stock int
	err := row.Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	// No row updated: missing product or floor hit
	row = s.database.QueryRowContext(ctx,
		"SELECT stock FROM products"+
			" WHERE id = $1",
		productID)
	err = row.Scan(&stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNoRows
		}
		return 0, err
	}
	return stock, ErrInsufficientStock
}

func (s *pgStore) OrderPost(ctx context.Context, order model.Order) error {
	_, err := s.database.ExecContext(ctx,
		"INSERT INTO orders (id, customer, status, payment_method, total, created_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6)",
		order.ID,
		order.Customer,
		order.Status,
		order.PaymentMethod,
		order.Total,
		order.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" {
				return ErrAlreadyExists
			}
		}
		return err
	}
	return nil
}

func (s *pgStore) OrderGet(ctx context.Context, id string) (model.Order, error) {
	row := s.database.QueryRowContext(ctx,
		"SELECT id, customer, status, payment_method, total, created_at"+
			" FROM orders"+
			" WHERE id = $1",
		id)
	return scanOrder(row)
}

func (s *pgStore) OrderGetByCustomer(ctx context.Context, customer string) ([]model.Order, error) {
	return s.orderQuery(ctx,
		"SELECT id, customer, status, payment_method, total, created_at"+
			" FROM orders"+
			" WHERE customer = $1"+
			" ORDER BY created_at",
		customer)
}

func (s *pgStore) OrderGetByStatus(ctx context.Context, status string) ([]model.Order, error) {
	return s.orderQuery(ctx,
		"SELECT id, customer, status, payment_method, total, created_at"+
			" FROM orders"+
			" WHERE status = $1"+
			" ORDER BY created_at",
		status)
}

func (s *pgStore) orderQuery(ctx context.Context, query string, arg string) ([]model.Order, error) {
	rows, err := s.database.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []model.Order
	for rows.Next() {
		var order model.Order
		err := rows.Scan(&order.ID,
			&order.Customer,
			&order.Status,
			&order.PaymentMethod,
			&order.Total,
			&order.CreatedAt)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *pgStore) LinesGet(ctx context.Context, orderID string) ([]model.OrderLine, error) {
	rows, err := s.database.QueryContext(ctx,
		"SELECT order_id, product_id, quantity, unit_price"+
			" FROM order_lines"+
			" WHERE order_id = $1"+
			" ORDER BY product_id",
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []model.OrderLine
	for rows.Next() {
		var line model.OrderLine
		err := rows.Scan(&line.OrderID,
			&line.ProductID,
			&line.Quantity,
			&line.UnitPrice)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *pgStore) OrderApplyLine(ctx context.Context, orderID string, line model.OrderLine, remove bool, stockDelta int, total decimal.Decimal) error {
	tx, err := s.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Lock the header for the whole mutation
	var status string
	row := tx.QueryRowContext(ctx,
		"SELECT status FROM orders"+
			" WHERE id = $1"+
			" FOR UPDATE",
		orderID)
	if err := row.Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return ErrNoRows
		}
		return err
	}
	if status != model.OrderStatusPorConfirmar {
		return ErrNotEditable
	}

	if stockDelta != 0 {
		res, err := tx.ExecContext(ctx,
			"UPDATE products"+
				" SET stock = stock + $1"+
				" WHERE id = $2"+
				"   AND stock + $1 >= 0",
			stockDelta,
			line.ProductID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInsufficientStock
		}
	}

	if remove {
		_, err = tx.ExecContext(ctx,
			"DELETE FROM order_lines"+
				" WHERE order_id = $1"+
				"   AND product_id = $2",
			orderID,
			line.ProductID)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO order_lines (order_id, product_id, quantity, unit_price)"+
				" VALUES ($1, $2, $3, $4)"+
				" ON CONFLICT (order_id, product_id) DO UPDATE SET"+
				" quantity = EXCLUDED.quantity,"+
				" unit_price = EXCLUDED.unit_price",
			orderID,
			line.ProductID,
			line.Quantity,
			line.UnitPrice)
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders"+
			" SET total = $1"+
			" WHERE id = $2",
		total,
		orderID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *pgStore) OrderConfirm(ctx context.Context, orderID string) error {
	tx, err := s.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	var total decimal.Decimal
	row := tx.QueryRowContext(ctx,
		"SELECT status, total FROM orders"+
			" WHERE id = $1"+
			" FOR UPDATE",
		orderID)
	if err := row.Scan(&status, &total); err != nil {
		if err == sql.ErrNoRows {
			return ErrNoRows
		}
		return err
	}
	if status != model.OrderStatusPorConfirmar {
		return ErrNotEditable
	}

	var lineCount int
	row = tx.QueryRowContext(ctx,
		"SELECT count(*) FROM order_lines"+
			" WHERE order_id = $1",
		orderID)
	if err := row.Scan(&lineCount); err != nil {
		return err
	}
	if lineCount == 0 {
		return ErrEmptyOrder
	}
	if total.Sign() <= 0 {
		return ErrTotalNotPositive
	}

	// Deficit re-check under the product row locks
	var short string
	row = tx.QueryRowContext(ctx,
		"SELECT l.product_id"+
			" FROM order_lines l"+
			" JOIN products p ON p.id = l.product_id"+
			" WHERE l.order_id = $1"+
			"   AND p.stock < l.quantity"+
			" LIMIT 1"+
			" FOR UPDATE OF p",
		orderID)
	err = row.Scan(&short)
	if err == nil {
		return ErrStockShort
	}
	if err != sql.ErrNoRows {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders"+
			" SET status = $1"+
			" WHERE id = $2",
		model.OrderStatusConfirmado,
		orderID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *pgStore) OrderCancel(ctx context.Context, orderID string) error {
	tx, err := s.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	row := tx.QueryRowContext(ctx,
		"SELECT status FROM orders"+
			" WHERE id = $1"+
			" FOR UPDATE",
		orderID)
	if err := row.Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return ErrNoRows
		}
		return err
	}
	if status != model.OrderStatusPorConfirmar {
		return ErrNotEditable
	}

	// Give every reserved quantity back to the counters
	_, err = tx.ExecContext(ctx,
		"UPDATE products p"+
			" SET stock = p.stock + l.quantity"+
			" FROM order_lines l"+
			" WHERE l.order_id = $1"+
			"   AND l.product_id = p.id",
		orderID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders"+
			" SET status = $1"+
			" WHERE id = $2",
		model.OrderStatusCancelado,
		orderID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func scanOrder(row *sql.Row) (model.Order, error) {
	var order model.Order
	err := row.Scan(&order.ID,
		&order.Customer,
		&order.Status,
		&order.PaymentMethod,
		&order.Total,
		&order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Order{}, ErrNoRows
		}
		return model.Order{}, err
	}
	return order, nil
}

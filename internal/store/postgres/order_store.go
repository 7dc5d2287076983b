package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create journals one submission attempt. Re-journaling the same intent id
// is a no-op.
func (s *OrderStore) Create(ctx context.Context, rec domain.OrderRecord) error {
	const query = `
		INSERT INTO orders (
			id, order_id, symbol, side, price, quantity, status,
			filled_quantity, avg_fill_price, source, reason, error, created_at
		) VALUES (
			$1, $2, $3, $4, $5::numeric, $6, $7,
			$8, $9::numeric, $10, $11, $12, $13
		)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.OrderID, rec.Symbol, string(rec.Side),
		rec.Price.String(), rec.Quantity, string(rec.Status),
		rec.FilledQuantity, rec.AvgFillPrice.String(),
		string(rec.Source), rec.Reason, rec.Error, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns journal entries newest first.
func (s *OrderStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.OrderRecord, error) {
	query := `
		SELECT id, order_id, symbol, side, price::text, quantity, status,
		       filled_quantity, avg_fill_price::text, source, reason, error, created_at
		FROM orders`
	query, args := withListOpts(query, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}

	records, err := pgx.CollectRows(rows, scanOrderRecord)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	return records, nil
}

func scanOrderRecord(row pgx.CollectableRow) (domain.OrderRecord, error) {
	var (
		rec               domain.OrderRecord
		side, status, src string
		priceStr, avgStr  string
	)
	if err := row.Scan(
		&rec.ID, &rec.OrderID, &rec.Symbol, &side, &priceStr, &rec.Quantity, &status,
		&rec.FilledQuantity, &avgStr, &src, &rec.Reason, &rec.Error, &rec.CreatedAt,
	); err != nil {
		return domain.OrderRecord{}, fmt.Errorf("scan order: %w", err)
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("parse price %q: %w", priceStr, err)
	}
	avg, err := decimal.NewFromString(avgStr)
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("parse avg fill price %q: %w", avgStr, err)
	}

	rec.Side = domain.OrderSide(side)
	rec.Status = domain.OrderStatus(status)
	rec.Source = domain.IntentSource(src)
	rec.Price = price
	rec.AvgFillPrice = avg
	return rec, nil
}

var _ domain.OrderStore = (*OrderStore)(nil)

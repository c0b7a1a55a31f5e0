package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rl1809/redis-cart/internal/core/domain"
)

// MySQLAdapter archives completed checkouts into a relational table so they
// survive stream trimming and can be queried with SQL. The order stream in
// Redis remains the source of truth.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// EnsureSchema creates the archive table when it does not exist yet.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS archived_orders (
			order_id       VARCHAR(64)  NOT NULL PRIMARY KEY,
			user_id        VARCHAR(128) NOT NULL,
			stream_id      VARCHAR(64)  NOT NULL,
			item_kinds     INT          NOT NULL,
			total_units    BIGINT       NOT NULL,
			items          TEXT         NOT NULL,
			checked_out_at DATETIME(6)  NOT NULL,
			INDEX idx_archived_orders_user (user_id)
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ArchiveOrder(ctx context.Context, order domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO archived_orders (order_id, user_id, stream_id, item_kinds, total_units, items, checked_out_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE order_id = order_id`,
		order.ID, order.UserID, order.StreamID, len(order.Items), order.Items.TotalUnits(),
		items, order.CheckedOutAt,
	)
	if err != nil {
		return fmt.Errorf("insert archived order: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ArchivedOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var (
		order domain.Order
		items []byte
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT order_id, user_id, stream_id, items, checked_out_at
		FROM archived_orders WHERE order_id = ?`, orderID,
	).Scan(&order.ID, &order.UserID, &order.StreamID, &items, &order.CheckedOutAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query archived order: %w", err)
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return &order, nil
}

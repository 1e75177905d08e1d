package db

import (
	"context"
	"fmt"
)

// CreateOrder inserts one order record.
func (d *Database) CreateOrder(ctx context.Context, o OrderRecord) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO orders (id, symbol, side, volume, price, sl, tp, order_ticket, deal, retcode, status, comment, magic, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Symbol, o.Side, o.Volume, o.Price, o.SL, o.TP,
		o.OrderTicket, o.Deal, o.Retcode, o.Status, o.Comment, o.Magic, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// ListOrders returns the newest records first.
func (d *Database) ListOrders(ctx context.Context, limit int) ([]OrderRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, symbol, side, volume, price, sl, tp, order_ticket, deal, retcode, status, COALESCE(comment, ''), magic, created_at
		FROM orders ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.ID, &o.Symbol, &o.Side, &o.Volume, &o.Price, &o.SL, &o.TP,
			&o.OrderTicket, &o.Deal, &o.Retcode, &o.Status, &o.Comment, &o.Magic, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateClose inserts one close record.
func (d *Database) CreateClose(ctx context.Context, c CloseRecord) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO closes (id, position_ticket, symbol, position_side, volume, price, profit, deal, retcode, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PositionTicket, c.Symbol, c.PositionSide, c.Volume, c.Price,
		c.Profit, c.Deal, c.Retcode, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert close: %w", err)
	}
	return nil
}

// ListCloses returns the newest records first.
func (d *Database) ListCloses(ctx context.Context, limit int) ([]CloseRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, position_ticket, symbol, position_side, volume, price, profit, deal, retcode, status, created_at
		FROM closes ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list closes: %w", err)
	}
	defer rows.Close()

	var out []CloseRecord
	for rows.Next() {
		var c CloseRecord
		if err := rows.Scan(&c.ID, &c.PositionTicket, &c.Symbol, &c.PositionSide, &c.Volume,
			&c.Price, &c.Profit, &c.Deal, &c.Retcode, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan close: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateSessionEvent inserts one session transition.
func (d *Database) CreateSessionEvent(ctx context.Context, s SessionRecord) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO session_events (id, kind, account, server, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Kind, s.Account, s.Server, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

package db

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	return database
}

func TestCreateAndListOrders(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := OrderRecord{
			ID:          fmt.Sprintf("order-%d", i),
			Symbol:      "EURUSD",
			Side:        "BUY",
			Volume:      0.1,
			Price:       1.1 + float64(i)*0.001,
			OrderTicket: uint64(1000 + i),
			Retcode:     10009,
			Status:      "FILLED",
			Comment:     "entry",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := database.CreateOrder(ctx, rec); err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
	}

	orders, err := database.ListOrders(ctx, 0)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("got %d orders, want 3", len(orders))
	}
	if orders[0].ID != "order-2" {
		t.Errorf("first order = %s, want newest order-2", orders[0].ID)
	}

	limited, err := database.ListOrders(ctx, 2)
	if err != nil {
		t.Fatalf("ListOrders limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d orders with limit 2, want 2", len(limited))
	}
}

func TestCreateAndListCloses(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	rec := CloseRecord{
		ID:             "close-1",
		PositionTicket: 500001,
		Symbol:         "EURUSD",
		PositionSide:   "BUY",
		Volume:         1.0,
		Price:          1.1,
		Profit:         42.5,
		Deal:           600001,
		Retcode:        10009,
		Status:         "CLOSED",
		CreatedAt:      time.Now(),
	}
	if err := database.CreateClose(ctx, rec); err != nil {
		t.Fatalf("CreateClose: %v", err)
	}

	closes, err := database.ListCloses(ctx, 10)
	if err != nil {
		t.Fatalf("ListCloses: %v", err)
	}
	if len(closes) != 1 {
		t.Fatalf("got %d closes, want 1", len(closes))
	}
	got := closes[0]
	if got.PositionTicket != 500001 {
		t.Errorf("position ticket = %d, want 500001", got.PositionTicket)
	}
	if got.Profit != 42.5 {
		t.Errorf("profit = %v, want 42.5", got.Profit)
	}
}

func TestCreateSessionEvent(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	rec := SessionRecord{
		ID:        "sess-1",
		Kind:      "CONNECTED",
		Account:   1000001,
		Server:    "Demo-Server",
		CreatedAt: time.Now(),
	}
	if err := database.CreateSessionEvent(ctx, rec); err != nil {
		t.Fatalf("CreateSessionEvent: %v", err)
	}

	var count int
	if err := database.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_events WHERE kind = ?`, "CONNECTED").Scan(&count); err != nil {
		t.Fatalf("count session events: %v", err)
	}
	if count != 1 {
		t.Errorf("session event count = %d, want 1", count)
	}
}

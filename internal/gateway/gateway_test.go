package gateway

import (
	"errors"
	"testing"
	"time"

	"mt5-gateway/internal/events"
	"mt5-gateway/internal/monitor"
	"mt5-gateway/internal/push"
	"mt5-gateway/internal/session"
	"mt5-gateway/internal/stream"
	"mt5-gateway/internal/trade"
	"mt5-gateway/pkg/db"
	"mt5-gateway/pkg/mt5"
	"mt5-gateway/pkg/mt5/sim"
)

func eurusdInfo() mt5.SymbolInfo {
	return mt5.SymbolInfo{
		Name:        "EURUSD",
		Point:       0.00001,
		Digits:      5,
		TradeMode:   mt5.TradeModeFull,
		VolumeMin:   0.01,
		VolumeMax:   100,
		VolumeStep:  0.01,
		StopsLevel:  10,
		FillingMask: mt5.FillingFOK | mt5.FillingIOC,
	}
}

func newTestGateway(t *testing.T, term *sim.Terminal, bus *events.Bus) *Gateway {
	t.Helper()
	gw := New(Options{
		Terminal: term,
		Bus:      bus,
		Hub:      push.NewHub(),
		Metrics:  monitor.New(),
		Stream:   stream.Config{PollInterval: time.Millisecond, ErrorThreshold: 5},
	})
	if _, err := gw.Connect("Demo-Server", 1000001, "pass"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return gw
}

func TestGetPriceFromLiveTick(t *testing.T) {
	term := sim.New()
	term.AddSymbol(eurusdInfo(), 1.10000, 1.10012)
	gw := newTestGateway(t, term, nil)
	defer gw.Disconnect()

	data, err := gw.GetPrice("EURUSD")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if data.Bid != 1.10000 || data.Ask != 1.10012 {
		t.Errorf("quote = %v/%v, want 1.10000/1.10012", data.Bid, data.Ask)
	}
	if data.Spread != 12 {
		t.Errorf("spread = %v points, want 12", data.Spread)
	}
	if data.MarketStatus != mt5.MarketTradeable {
		t.Errorf("market status = %s, want TRADEABLE", data.MarketStatus)
	}
	if data.High != 1.10012 || data.Low != 1.10000 {
		t.Errorf("first quote must seed high/low, got %v/%v", data.High, data.Low)
	}
}

func TestGetPriceWidensHighLow(t *testing.T) {
	term := sim.New()
	term.AddSymbol(eurusdInfo(), 1.10000, 1.10012)
	gw := newTestGateway(t, term, nil)
	defer gw.Disconnect()

	if _, err := gw.GetPrice("EURUSD"); err != nil {
		t.Fatalf("GetPrice: %v", err)
	}

	term.SetTick("EURUSD", 1.10100, 1.10112)
	data, err := gw.GetPrice("EURUSD")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if data.High != 1.10112 {
		t.Errorf("high = %v, want widened 1.10112", data.High)
	}
	if data.Low != 1.10000 {
		t.Errorf("low = %v, want original 1.10000", data.Low)
	}

	term.SetTick("EURUSD", 1.09900, 1.09912)
	data, err = gw.GetPrice("EURUSD")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if data.Low != 1.09900 {
		t.Errorf("low = %v, want widened 1.09900", data.Low)
	}
	if data.High != 1.10112 {
		t.Errorf("high = %v, must not shrink", data.High)
	}
}

func TestGetPriceFallsBackToBarWhenMarketClosed(t *testing.T) {
	term := sim.New()
	term.AddSymbol(eurusdInfo(), 1.10000, 1.10012)
	term.DropTick("EURUSD")
	term.SetBar("EURUSD", mt5.Bar{
		Open:  1.09950,
		High:  1.10050,
		Low:   1.09900,
		Close: 1.10000,
		Time:  time.Now(),
	})
	gw := newTestGateway(t, term, nil)
	defer gw.Disconnect()

	data, err := gw.GetPrice("EURUSD")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if data.Bid != 1.10000 || data.Ask != 1.10000 {
		t.Errorf("closed-market quote = %v/%v, want close price on both sides", data.Bid, data.Ask)
	}
	if data.Spread != 0 {
		t.Errorf("spread = %v, want 0 for a bar fallback", data.Spread)
	}
	if data.MarketStatus != mt5.MarketClosed {
		t.Errorf("market status = %s, want CLOSED", data.MarketStatus)
	}
}

func TestGetPriceNoTickNoBar(t *testing.T) {
	term := sim.New()
	term.AddSymbol(eurusdInfo(), 1.10000, 1.10012)
	term.DropTick("EURUSD")
	gw := newTestGateway(t, term, nil)
	defer gw.Disconnect()

	_, err := gw.GetPrice("EURUSD")
	if !errors.Is(err, trade.ErrNoPrice) {
		t.Fatalf("error = %v, want ErrNoPrice", err)
	}
}

func TestSubscribeRequiresConnection(t *testing.T) {
	term := sim.New()
	term.AddSymbol(eurusdInfo(), 1.10000, 1.10012)
	gw := New(Options{Terminal: term, Hub: push.NewHub()})

	err := gw.Subscribe("EURUSD", "client-a")
	if !errors.Is(err, session.ErrNotConnected) {
		t.Fatalf("error = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectStopsWorkersAndIsIdempotent(t *testing.T) {
	term := sim.New()
	term.AddSymbol(eurusdInfo(), 1.10000, 1.10012)
	gw := newTestGateway(t, term, nil)

	if err := gw.Subscribe("EURUSD", "client-a"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if got := len(gw.ActiveSymbols()); got != 1 {
		t.Fatalf("ActiveSymbols = %d, want 1", got)
	}

	if err := gw.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if gw.Connected() {
		t.Error("gateway should report disconnected")
	}
	if got := len(gw.ActiveSymbols()); got != 0 {
		t.Errorf("ActiveSymbols = %d after disconnect, want 0", got)
	}

	// Second disconnect is a no-op.
	if err := gw.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
}

func TestPlaceOrderPublishesJournalEvent(t *testing.T) {
	term := sim.New()
	term.AddSymbol(eurusdInfo(), 1.10000, 1.10012)
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.EventOrderPlaced, 8)
	defer unsub()

	gw := newTestGateway(t, term, bus)
	defer gw.Disconnect()

	res, err := gw.PlaceOrder(trade.OrderRequest{Symbol: "EURUSD", Volume: 0.1, Side: mt5.SideBuy})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	select {
	case payload := <-ch:
		rec, ok := payload.(db.OrderRecord)
		if !ok {
			t.Fatalf("payload type %T, want db.OrderRecord", payload)
		}
		if rec.Status != "FILLED" {
			t.Errorf("status = %s, want FILLED", rec.Status)
		}
		if rec.OrderTicket != res.Order {
			t.Errorf("order ticket = %d, want %d", rec.OrderTicket, res.Order)
		}
	case <-time.After(time.Second):
		t.Fatal("no order.placed event published")
	}
}

func TestFailedOrderPublishesFailureEvent(t *testing.T) {
	term := sim.New()
	term.AddSymbol(eurusdInfo(), 1.10000, 1.10012)
	term.QueueOrderResult(mt5.RetNoMoney)
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.EventOrderFailed, 8)
	defer unsub()

	gw := newTestGateway(t, term, bus)
	defer gw.Disconnect()

	if _, err := gw.PlaceOrder(trade.OrderRequest{Symbol: "EURUSD", Volume: 0.1, Side: mt5.SideBuy}); err == nil {
		t.Fatal("expected order failure")
	}

	select {
	case payload := <-ch:
		rec := payload.(db.OrderRecord)
		if rec.Status != "FAILED" {
			t.Errorf("status = %s, want FAILED", rec.Status)
		}
		if rec.Retcode != mt5.RetNoMoney {
			t.Errorf("retcode = %d, want %d", rec.Retcode, mt5.RetNoMoney)
		}
	case <-time.After(time.Second):
		t.Fatal("no order.failed event published")
	}
}

func TestClosePositionPublishesJournalEvent(t *testing.T) {
	term := sim.New()
	term.AddSymbol(eurusdInfo(), 1.10000, 1.10012)
	ticket := term.AddPosition(mt5.Position{Symbol: "EURUSD", Side: mt5.SideBuy, Volume: 1.0, Profit: 10})
	bus := events.NewBus()
	ch, unsub := bus.Subscribe(events.EventPositionClosed, 8)
	defer unsub()

	gw := newTestGateway(t, term, bus)
	defer gw.Disconnect()

	if _, err := gw.ClosePosition(trade.CloseRequest{Ticket: ticket}); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}

	select {
	case payload := <-ch:
		rec := payload.(db.CloseRecord)
		if rec.Status != "CLOSED" {
			t.Errorf("status = %s, want CLOSED", rec.Status)
		}
		if rec.PositionTicket != ticket {
			t.Errorf("ticket = %d, want %d", rec.PositionTicket, ticket)
		}
	case <-time.After(time.Second):
		t.Fatal("no position.closed event published")
	}
}

func TestHealthSnapshot(t *testing.T) {
	term := sim.New()
	term.AddSymbol(eurusdInfo(), 1.10000, 1.10012)
	gw := newTestGateway(t, term, nil)
	defer gw.Disconnect()

	h := gw.Health()
	if !h.Connected {
		t.Error("health should report connected")
	}
	if h.Account != 1000001 {
		t.Errorf("account = %d, want 1000001", h.Account)
	}
	if h.InstanceID == "" {
		t.Error("instance id must be set")
	}
}

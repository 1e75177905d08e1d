// Package gateway is the facade tying the session guard, streaming workers
// and trade pipelines together behind one API surface.
package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"

	"mt5-gateway/internal/events"
	"mt5-gateway/internal/monitor"
	"mt5-gateway/internal/session"
	"mt5-gateway/internal/stream"
	"mt5-gateway/internal/trade"
	"mt5-gateway/pkg/db"
	"mt5-gateway/pkg/mt5"
)

const defaultStopTimeout = 5 * time.Second

// Options configures a gateway instance. Terminal is required; everything
// else has working defaults.
type Options struct {
	Terminal mt5.Terminal
	Bus      *events.Bus
	Hub      stream.Publisher
	Metrics  *monitor.Metrics

	Stream      stream.Config
	StopTimeout time.Duration // bound on joining workers during disconnect

	OrderDeviation   int
	RequoteDeviation int
	CloseMaxAttempts int
	CloseRetryPause  time.Duration
}

// Gateway exposes the venue operations. One instance per process.
type Gateway struct {
	guard    *session.Guard
	streams  *stream.Manager
	executor *trade.Executor
	closer   *trade.Closer
	bus      *events.Bus
	metrics  *monitor.Metrics

	stopTimeout time.Duration
	instanceID  string

	stateMu sync.Mutex
	states  map[string]*symbolState
	server  string
}

// symbolState tracks per-instrument running statistics, seeded from the
// first observed quote and widened on every successful fetch.
type symbolState struct {
	high      float64
	low       float64
	lastClose float64
	lastSeen  time.Time
}

// New wires a gateway from its options.
func New(opts Options) *Gateway {
	guard := session.NewGuard(opts.Terminal)

	g := &Gateway{
		guard:       guard,
		bus:         opts.Bus,
		metrics:     opts.Metrics,
		stopTimeout: opts.StopTimeout,
		states:      make(map[string]*symbolState),
	}
	if g.stopTimeout <= 0 {
		g.stopTimeout = defaultStopTimeout
	}

	g.executor = trade.NewExecutor(guard)
	g.executor.Deviation = opts.OrderDeviation
	g.executor.RequoteDeviation = opts.RequoteDeviation

	g.closer = trade.NewCloser(guard)
	g.closer.MaxAttempts = opts.CloseMaxAttempts
	g.closer.RetryPause = opts.CloseRetryPause

	g.streams = stream.NewManager(guard, g, opts.Hub, opts.Bus, opts.Stream)

	id, err := machineid.ID()
	if err != nil {
		id = uuid.NewString()
	}
	g.instanceID = id

	return g
}

// Connect establishes the venue session.
func (g *Gateway) Connect(server string, login int64, password string) (session.Info, error) {
	info, err := g.guard.Connect(server, login, password)
	if err != nil {
		return session.Info{}, err
	}
	g.stateMu.Lock()
	g.server = server
	g.stateMu.Unlock()
	g.publish(events.EventSessionConnected, events.SessionEvent{Account: info.Account, Server: server})
	return info, nil
}

// Disconnect stops the streaming workers, waits for them (bounded), then
// releases the terminal. Calling it when already disconnected is a no-op.
func (g *Gateway) Disconnect() error {
	if !g.guard.BeginShutdown() {
		return nil
	}
	g.streams.StopAll(g.stopTimeout)
	err := g.guard.Release()

	g.stateMu.Lock()
	server := g.server
	g.stateMu.Unlock()
	g.publish(events.EventSessionDisconnected, events.SessionEvent{Server: server})
	return err
}

// Connected reports whether the venue session is up.
func (g *Gateway) Connected() bool { return g.guard.Connected() }

// Account returns the authenticated account, zero when disconnected.
func (g *Gateway) Account() int64 { return g.guard.AccountID() }

// Symbols lists the instruments known to the terminal.
func (g *Gateway) Symbols() ([]string, error) {
	var out []string
	err := g.guard.WithSession(func(term mt5.Terminal) error {
		var err error
		out, err = term.Symbols()
		return err
	})
	return out, err
}

// SymbolInfo returns instrument metadata, selecting the symbol first.
func (g *Gateway) SymbolInfo(symbol string) (*mt5.SymbolInfo, error) {
	var info *mt5.SymbolInfo
	err := g.guard.WithSession(func(term mt5.Terminal) error {
		if !term.SymbolSelect(symbol, true) {
			return trade.ErrSymbolNotSelected
		}
		var err error
		info, err = term.SymbolInfo(symbol)
		if err != nil {
			return err
		}
		if info == nil {
			return trade.ErrSymbolNotFound
		}
		return nil
	})
	return info, err
}

// Positions lists the open positions.
func (g *Gateway) Positions() ([]mt5.Position, error) {
	var out []mt5.Position
	err := g.guard.WithSession(func(term mt5.Terminal) error {
		var err error
		out, err = term.Positions()
		return err
	})
	return out, err
}

// PlaceOrder runs the execution pipeline and journals the outcome.
func (g *Gateway) PlaceOrder(req trade.OrderRequest) (*trade.OrderResult, error) {
	res, err := g.executor.PlaceOrder(req)
	if err != nil {
		if g.metrics != nil {
			g.metrics.IncrementFailed()
		}
		g.publish(events.EventOrderFailed, orderRecord(req, nil, err))
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.IncrementOrders()
	}
	g.publish(events.EventOrderPlaced, orderRecord(req, res, nil))
	return res, nil
}

// ClosePosition runs the close pipeline and journals the outcome.
func (g *Gateway) ClosePosition(req trade.CloseRequest) (*trade.CloseResult, error) {
	res, err := g.closer.ClosePosition(req)
	if err != nil {
		g.publish(events.EventCloseFailed, closeRecord(req, nil, err))
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.IncrementCloses()
	}
	g.publish(events.EventPositionClosed, closeRecord(req, res, nil))
	return res, nil
}

// Subscribe attaches a streaming identity to a symbol. Fails when the venue
// session is down; workers would only spin against a dead terminal.
func (g *Gateway) Subscribe(symbol, subscriberID string) error {
	if !g.guard.Connected() {
		return session.ErrNotConnected
	}
	g.streams.Subscribe(symbol, subscriberID)
	return nil
}

// Unsubscribe detaches the identity from one symbol.
func (g *Gateway) Unsubscribe(symbol, subscriberID string) {
	g.streams.Unsubscribe(symbol, subscriberID)
}

// UnsubscribeAll detaches the identity from every symbol.
func (g *Gateway) UnsubscribeAll(subscriberID string) {
	g.streams.UnsubscribeAll(subscriberID)
}

// ActiveSymbols lists symbols with a live polling worker.
func (g *Gateway) ActiveSymbols() []string { return g.streams.ActiveSymbols() }

// Health is the liveness snapshot served by the health endpoint.
type Health struct {
	Connected     bool      `json:"connected"`
	Account       int64     `json:"account,omitempty"`
	ActiveSymbols []string  `json:"active_symbols"`
	WorkerCount   int       `json:"worker_count"`
	InstanceID    string    `json:"instance_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Health reports the current gateway state.
func (g *Gateway) Health() Health {
	return Health{
		Connected:     g.guard.Connected(),
		Account:       g.guard.AccountID(),
		ActiveSymbols: g.streams.ActiveSymbols(),
		WorkerCount:   g.streams.WorkerCount(),
		InstanceID:    g.instanceID,
		Timestamp:     time.Now(),
	}
}

func (g *Gateway) publish(e events.Event, payload any) {
	if g.bus != nil {
		g.bus.Publish(e, payload)
	}
}

// orderRecord maps an order outcome to its journal row.
func orderRecord(req trade.OrderRequest, res *trade.OrderResult, err error) db.OrderRecord {
	rec := db.OrderRecord{
		ID:        uuid.NewString(),
		Symbol:    req.Symbol,
		Side:      string(req.Side),
		Volume:    req.Volume,
		Comment:   req.Comment,
		Magic:     req.Magic,
		CreatedAt: time.Now(),
	}
	if res != nil {
		rec.Status = "FILLED"
		rec.Volume = res.Volume
		rec.Price = res.Price
		rec.SL = res.SL
		rec.TP = res.TP
		rec.OrderTicket = res.Order
		rec.Deal = res.Deal
		rec.Retcode = res.Retcode
		return rec
	}
	rec.Status = "FAILED"
	var ofe *trade.OrderFailedError
	if errors.As(err, &ofe) {
		rec.Retcode = ofe.Code
		rec.Comment = ofe.Message
	} else if err != nil {
		rec.Comment = err.Error()
	}
	return rec
}

// closeRecord maps a close outcome to its journal row.
func closeRecord(req trade.CloseRequest, res *trade.CloseResult, err error) db.CloseRecord {
	rec := db.CloseRecord{
		ID:             uuid.NewString(),
		PositionTicket: req.Ticket,
		Symbol:         req.Symbol,
		Volume:         req.Volume,
		CreatedAt:      time.Now(),
	}
	if res != nil {
		rec.Status = "CLOSED"
		rec.Symbol = res.Symbol
		rec.PositionSide = string(res.PositionSide)
		rec.Volume = res.Volume
		rec.Price = res.Price
		rec.Profit = res.Profit
		rec.Deal = res.Deal
		rec.Retcode = res.Retcode
		return rec
	}
	rec.Status = "FAILED"
	var cfe *trade.CloseFailedError
	if errors.As(err, &cfe) {
		rec.Retcode = cfe.Code
	}
	return rec
}

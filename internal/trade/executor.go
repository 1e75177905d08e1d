// Package trade implements order placement and position closure against the
// venue session.
package trade

import (
	"errors"
	"fmt"
	"log"

	"mt5-gateway/internal/session"
	"mt5-gateway/pkg/mt5"
)

const (
	defaultDeviation = 20 // price tolerance in points
	requoteDeviation = 50 // widened tolerance for the single requote retry
)

// OrderRequest is a trade intent. SL/TP are distances from the execution
// price, not absolute levels; zero means no stop.
type OrderRequest struct {
	Symbol     string
	Volume     float64
	Side       mt5.Side
	SLDistance float64
	TPDistance float64
	Comment    string
	Magic      int64
}

// OrderResult is the normalized acknowledgement of a filled order.
type OrderResult struct {
	Order   uint64  `json:"order"`
	Deal    uint64  `json:"deal"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	SL      float64 `json:"sl"`
	TP      float64 `json:"tp"`
	Comment string  `json:"comment"`
	Retcode uint32  `json:"retcode"`
}

// Executor validates, normalizes and submits orders.
type Executor struct {
	Session *session.Guard

	// Deviation and RequoteDeviation override the default price tolerances
	// when non-zero.
	Deviation        int
	RequoteDeviation int
}

// NewExecutor builds an executor bound to the session guard.
func NewExecutor(guard *session.Guard) *Executor {
	return &Executor{Session: guard}
}

func (e *Executor) deviation() int {
	if e.Deviation > 0 {
		return e.Deviation
	}
	return defaultDeviation
}

func (e *Executor) requoteDeviation() int {
	if e.RequoteDeviation > 0 {
		return e.RequoteDeviation
	}
	return requoteDeviation
}

// PlaceOrder runs the full execution pipeline: symbol checks, reference
// price, SL/TP from distances, volume normalization, filling negotiation,
// submission with a single requote retry at widened tolerance.
func (e *Executor) PlaceOrder(req OrderRequest) (*OrderResult, error) {
	if req.Side != mt5.SideBuy && req.Side != mt5.SideSell {
		return nil, fmt.Errorf("invalid order side %q", req.Side)
	}

	var res *OrderResult
	err := e.Session.WithSession(func(term mt5.Terminal) error {
		if !term.SymbolSelect(req.Symbol, true) {
			return fmt.Errorf("%w: %s", ErrSymbolNotSelected, req.Symbol)
		}
		info, err := term.SymbolInfo(req.Symbol)
		if err != nil {
			return fmt.Errorf("symbol info %s: %w", req.Symbol, err)
		}
		if info == nil {
			return fmt.Errorf("%w: %s", ErrSymbolNotFound, req.Symbol)
		}
		if info.TradeMode == mt5.TradeModeDisabled {
			return fmt.Errorf("%w: %s", ErrNotTradable, req.Symbol)
		}

		tick, err := term.SymbolTick(req.Symbol)
		if err != nil {
			return fmt.Errorf("tick %s: %w", req.Symbol, err)
		}
		if tick == nil {
			return fmt.Errorf("%w: %s", ErrNoPrice, req.Symbol)
		}

		// BUY executes at ask, SELL at bid. SL sits against the trade
		// direction, TP with it.
		var price float64
		if req.Side == mt5.SideBuy {
			price = tick.Ask
		} else {
			price = tick.Bid
		}

		slDist := widenDistance(req.SLDistance, info)
		tpDist := widenDistance(req.TPDistance, info)

		var sl, tp float64
		if slDist > 0 {
			sl = stopPrice(price, slDist, info.Digits, req.Side == mt5.SideBuy)
		}
		if tpDist > 0 {
			tp = stopPrice(price, tpDist, info.Digits, req.Side == mt5.SideSell)
		}

		volume := NormalizeVolume(req.Volume, info)

		filling, err := SelectFilling(info)
		if err != nil {
			return fmt.Errorf("%w: %s", err, req.Symbol)
		}

		treq := &mt5.TradeRequest{
			Symbol:    req.Symbol,
			Volume:    volume,
			Side:      req.Side,
			Price:     price,
			SL:        sl,
			TP:        tp,
			Deviation: e.deviation(),
			Magic:     req.Magic,
			Comment:   req.Comment,
			Filling:   filling,
		}

		result, sendErr := term.OrderSend(treq)
		if result == nil {
			// Only the no-result requote path is retried; a rejection
			// carried in a result surfaces immediately whatever its code.
			var terr *mt5.TerminalError
			if errors.As(sendErr, &terr) && terr.Requote() {
				log.Printf("trade: requote on %s, retrying with deviation %d",
					req.Symbol, e.requoteDeviation())
				treq.Deviation = e.requoteDeviation()
				result, sendErr = term.OrderSend(treq)
			}
			if result == nil {
				return orderFailure(sendErr)
			}
		}

		if !result.Done() {
			return &OrderFailedError{Code: result.Retcode, Message: mt5.Describe(result.Retcode)}
		}

		res = &OrderResult{
			Order:   result.Order,
			Deal:    result.Deal,
			Volume:  result.Volume,
			Price:   result.Price,
			SL:      sl,
			TP:      tp,
			Comment: req.Comment,
			Retcode: result.Retcode,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("trade: order filled %s %s vol=%v price=%v order=%d",
		req.Side, req.Symbol, res.Volume, res.Price, res.Order)
	return res, nil
}

// orderFailure maps a no-result submission error to OrderFailedError.
func orderFailure(err error) error {
	var terr *mt5.TerminalError
	if errors.As(err, &terr) {
		return &OrderFailedError{Code: terr.Code, Message: terr.Message}
	}
	if err != nil {
		return &OrderFailedError{Message: err.Error()}
	}
	return &OrderFailedError{Message: "order returned no result"}
}

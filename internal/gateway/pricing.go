package gateway

import (
	"fmt"
	"math"
	"time"

	"mt5-gateway/internal/trade"
	"mt5-gateway/pkg/mt5"
)

// GetPrice returns the current quote snapshot for a symbol. When no live
// tick is available the most recent closed bar stands in, flagged CLOSED.
// Implements the stream manager's price source contract.
func (g *Gateway) GetPrice(symbol string) (*mt5.PriceData, error) {
	var data *mt5.PriceData
	err := g.guard.WithSession(func(term mt5.Terminal) error {
		if !term.SymbolSelect(symbol, true) {
			return fmt.Errorf("%w: %s", trade.ErrSymbolNotSelected, symbol)
		}
		info, err := term.SymbolInfo(symbol)
		if err != nil {
			return fmt.Errorf("symbol info %s: %w", symbol, err)
		}
		if info == nil {
			return fmt.Errorf("%w: %s", trade.ErrSymbolNotFound, symbol)
		}

		tick, err := term.SymbolTick(symbol)
		if err != nil {
			return fmt.Errorf("tick %s: %w", symbol, err)
		}
		if tick != nil && tick.Bid > 0 {
			data = g.priceFromTick(symbol, info, tick)
			return nil
		}

		// No live tick. Serve the last closed bar so clients still see a
		// reference price while the market is shut.
		bar, err := term.LastBar(symbol)
		if err != nil {
			return fmt.Errorf("last bar %s: %w", symbol, err)
		}
		if bar == nil {
			return fmt.Errorf("%w: %s", trade.ErrNoPrice, symbol)
		}
		data = g.priceFromBar(symbol, bar)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.IncrementTicks()
	}
	return data, nil
}

func (g *Gateway) priceFromTick(symbol string, info *mt5.SymbolInfo, tick *mt5.Tick) *mt5.PriceData {
	spread := 0.0
	if info.Point > 0 {
		spread = math.Round((tick.Ask - tick.Bid) / info.Point)
	}
	high, low := g.observe(symbol, tick.Bid, tick.Ask, 0, tick.Time)

	status := mt5.MarketTradeable
	if info.TradeMode == mt5.TradeModeDisabled {
		status = mt5.MarketClosed
	}

	return &mt5.PriceData{
		Symbol:       symbol,
		Bid:          tick.Bid,
		Ask:          tick.Ask,
		Spread:       spread,
		Time:         tick.Time.UTC().Format("2006-01-02 15:04:05"),
		Timestamp:    float64(tick.Time.UnixNano()) / float64(time.Second),
		High:         high,
		Low:          low,
		MarketStatus: status,
	}
}

func (g *Gateway) priceFromBar(symbol string, bar *mt5.Bar) *mt5.PriceData {
	high, low := g.observe(symbol, bar.Close, bar.Close, bar.Close, bar.Time)
	if bar.High > high {
		high = bar.High
	}
	if bar.Low < low {
		low = bar.Low
	}
	return &mt5.PriceData{
		Symbol:       symbol,
		Bid:          bar.Close,
		Ask:          bar.Close,
		Spread:       0,
		Time:         bar.Time.UTC().Format("2006-01-02 15:04:05"),
		Timestamp:    float64(bar.Time.UnixNano()) / float64(time.Second),
		High:         high,
		Low:          low,
		MarketStatus: mt5.MarketClosed,
	}
}

// observe folds the quote into the symbol's running statistics and returns
// the updated high/low water marks. close is only recorded when non-zero
// (bar fallback path).
func (g *Gateway) observe(symbol string, bid, ask, closePx float64, ts time.Time) (high, low float64) {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()

	st, ok := g.states[symbol]
	if !ok {
		st = &symbolState{
			high: math.Max(bid, ask),
			low:  math.Min(bid, ask),
		}
		g.states[symbol] = st
	} else {
		if v := math.Max(bid, ask); v > st.high {
			st.high = v
		}
		if v := math.Min(bid, ask); v < st.low {
			st.low = v
		}
	}
	if closePx > 0 {
		st.lastClose = closePx
	}
	st.lastSeen = ts
	return st.high, st.low
}

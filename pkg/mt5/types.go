// Package mt5 defines the venue-facing types and the Terminal contract for a
// MetaTrader 5 style trading backend.
package mt5

import (
	"fmt"
	"time"
)

// Side denotes order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing direction for a position opened on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// TradeMode describes whether an instrument accepts orders.
type TradeMode int

const (
	TradeModeDisabled  TradeMode = 0
	TradeModeLongOnly  TradeMode = 1
	TradeModeShortOnly TradeMode = 2
	TradeModeCloseOnly TradeMode = 3
	TradeModeFull      TradeMode = 4
)

// MarketStatus reflects whether live quotes are flowing for an instrument.
type MarketStatus string

const (
	MarketTradeable MarketStatus = "TRADEABLE"
	MarketClosed    MarketStatus = "CLOSED"
)

// FillingMode is the venue bitmask of execution-completion modes an
// instrument currently accepts. It is re-derived on every trade call and
// never cached; the venue can change it at any time.
type FillingMode int

const (
	FillingFOK    FillingMode = 1
	FillingIOC    FillingMode = 2
	FillingReturn FillingMode = 4
)

// Has reports whether mode f is present in the bitmask.
func (m FillingMode) Has(f FillingMode) bool { return m&f != 0 }

// Supported expands the bitmask into individual modes in fixed priority
// order FOK > IOC > RETURN. Callers take the first entry.
func (m FillingMode) Supported() []FillingMode {
	var out []FillingMode
	for _, f := range []FillingMode{FillingFOK, FillingIOC, FillingReturn} {
		if m.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (m FillingMode) String() string {
	switch m {
	case FillingFOK:
		return "FOK"
	case FillingIOC:
		return "IOC"
	case FillingReturn:
		return "RETURN"
	default:
		return fmt.Sprintf("FILLING(%d)", int(m))
	}
}

// AccountInfo is the venue account summary returned after login.
type AccountInfo struct {
	Login       int64
	TradeExpert bool // false when the account forbids automated trading
	Currency    string
	Balance     float64
}

// SymbolInfo carries per-instrument metadata needed for normalization.
type SymbolInfo struct {
	Name        string
	Point       float64
	Digits      int
	Spread      int
	TradeMode   TradeMode
	VolumeMin   float64
	VolumeMax   float64
	VolumeStep  float64
	StopsLevel  int // minimum stop distance in points
	FillingMask FillingMode
}

// StopDistance is the venue-mandated minimum SL/TP gap in price units.
func (s *SymbolInfo) StopDistance() float64 {
	return float64(s.StopsLevel) * s.Point
}

// Tick is a live quote snapshot.
type Tick struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// Bar is an aggregated candle, used as a price fallback when no live tick
// is available (market closed).
type Bar struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	Time  time.Time
}

// Position is a read-only snapshot of an open position.
type Position struct {
	Ticket       uint64
	Symbol       string
	Side         Side
	Volume       float64
	PriceOpen    float64
	PriceCurrent float64
	SL           float64
	TP           float64
	Profit       float64
	OpenTime     time.Time
	Comment      string
	Magic        int64
}

// TradeRequest is a normalized deal request submitted to the venue.
type TradeRequest struct {
	Symbol    string
	Volume    float64
	Side      Side
	Price     float64
	SL        float64
	TP        float64
	Deviation int // allowed price tolerance in points
	Magic     int64
	Comment   string
	Position  uint64 // ticket being closed, zero for a new deal
	Filling   FillingMode
}

// TradeResult is the venue acknowledgement for a submitted deal.
type TradeResult struct {
	Retcode uint32
	Order   uint64
	Deal    uint64
	Volume  float64
	Price   float64
	Comment string
}

// Done reports whether the venue accepted and executed the request.
func (r *TradeResult) Done() bool { return r != nil && r.Retcode == RetDone }

// PriceData is the quote snapshot shape pushed to streaming subscribers and
// returned by price queries.
type PriceData struct {
	Symbol       string       `json:"symbol"`
	Bid          float64      `json:"bid"`
	Ask          float64      `json:"ask"`
	Spread       float64      `json:"spread"`
	Time         string       `json:"time"`
	Timestamp    float64      `json:"timestamp"`
	High         float64      `json:"high"`
	Low          float64      `json:"low"`
	MarketStatus MarketStatus `json:"marketStatus"`
}

// TerminalError carries the venue's last-error pair for calls that yielded
// no result at all (transport or terminal level failure).
type TerminalError struct {
	Code    uint32
	Message string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("terminal error %d: %s", e.Code, e.Message)
}

// Requote reports whether the failure is the requote condition eligible for
// a single automatic retry at wider price tolerance.
func (e *TerminalError) Requote() bool { return e.Code == RetRequote }

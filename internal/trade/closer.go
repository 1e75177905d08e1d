package trade

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"mt5-gateway/internal/session"
	"mt5-gateway/pkg/mt5"
)

const (
	defaultMaxAttempts    = 3
	defaultRetryPause     = 500 * time.Millisecond
	closeDeviationStepPts = 10
)

// CloseRequest asks to close (part of) an open position. Volume zero means
// the full remaining volume; Symbol is resolved from the position when empty.
type CloseRequest struct {
	Ticket uint64
	Volume float64
	Symbol string
}

// CloseResult is the acknowledgement of a successful close.
type CloseResult struct {
	Deal         uint64   `json:"deal"`
	Retcode      uint32   `json:"retcode"`
	Price        float64  `json:"price"`
	Volume       float64  `json:"volume"`
	Profit       float64  `json:"profit"`
	Symbol       string   `json:"symbol"`
	PositionSide mt5.Side `json:"position_side"`
}

// Closer closes open positions with bounded retries: the price tolerance
// widens each attempt, and invalid-request rejections fall back to the next
// supported filling mode.
type Closer struct {
	Session *session.Guard

	MaxAttempts int
	Deviation   int // base tolerance of the first attempt
	RetryPause  time.Duration
}

// NewCloser builds a closer bound to the session guard.
func NewCloser(guard *session.Guard) *Closer {
	return &Closer{Session: guard}
}

func (c *Closer) maxAttempts() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return defaultMaxAttempts
}

func (c *Closer) baseDeviation() int {
	if c.Deviation > 0 {
		return c.Deviation
	}
	return defaultDeviation
}

func (c *Closer) retryPause() time.Duration {
	if c.RetryPause > 0 {
		return c.RetryPause
	}
	return defaultRetryPause
}

// ClosePosition closes req.Volume of the position, capped at its remaining
// volume. The session lock is held per venue call, never across the pause
// between attempts.
func (c *Closer) ClosePosition(req CloseRequest) (*CloseResult, error) {
	var (
		pos  *mt5.Position
		info *mt5.SymbolInfo
	)
	err := c.Session.WithSession(func(term mt5.Terminal) error {
		var err error
		pos, err = term.PositionByTicket(req.Ticket)
		if err != nil {
			return fmt.Errorf("position %d: %w", req.Ticket, err)
		}
		if pos == nil {
			return &PositionNotFoundError{Ticket: req.Ticket}
		}

		symbol := req.Symbol
		if symbol == "" {
			symbol = pos.Symbol
		}
		if !term.SymbolSelect(symbol, true) {
			return fmt.Errorf("%w: %s", ErrSymbolNotSelected, symbol)
		}
		info, err = term.SymbolInfo(symbol)
		if err != nil {
			return fmt.Errorf("symbol info %s: %w", symbol, err)
		}
		if info == nil {
			return fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		if info.TradeMode == mt5.TradeModeDisabled {
			return fmt.Errorf("%w: %s", ErrNotTradable, symbol)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	symbol := info.Name

	volume := pos.Volume
	if req.Volume > 0 {
		volume = math.Min(req.Volume, pos.Volume)
	}
	volume = QuantizeVolume(volume, info.VolumeStep)
	const eps = 1e-9
	if volume < info.VolumeMin-eps || volume > info.VolumeMax+eps {
		return nil, &VolumeError{Volume: volume, Min: info.VolumeMin, Max: info.VolumeMax}
	}

	fillings := info.FillingMask.Supported()
	if len(fillings) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFillingMode, symbol)
	}
	fillingIdx := 0

	closeSide := pos.Side.Opposite()
	attempts := c.maxAttempts()

	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-c.Session.Done():
			return nil, session.ErrNotConnected
		default:
		}

		var (
			result  *mt5.TradeResult
			sendErr error
		)
		err := c.Session.WithSession(func(term mt5.Terminal) error {
			// Re-fetch the tick: the price can move between attempts.
			tick, err := term.SymbolTick(symbol)
			if err != nil {
				return fmt.Errorf("tick %s: %w", symbol, err)
			}
			if tick == nil {
				return fmt.Errorf("%w: %s", ErrNoPrice, symbol)
			}
			price := tick.Ask
			if pos.Side == mt5.SideBuy {
				price = tick.Bid
			}

			treq := &mt5.TradeRequest{
				Symbol:    symbol,
				Volume:    volume,
				Side:      closeSide,
				Price:     price,
				Deviation: c.baseDeviation() + attempt*closeDeviationStepPts,
				Magic:     pos.Magic,
				Comment:   fmt.Sprintf("close #%d", pos.Ticket),
				Position:  pos.Ticket,
				Filling:   fillings[fillingIdx],
			}
			result, sendErr = term.OrderSend(treq)
			return nil
		})
		if err != nil {
			return nil, err
		}

		if result == nil {
			return nil, closeFailure(sendErr)
		}

		if result.Done() {
			return &CloseResult{
				Deal:         result.Deal,
				Retcode:      result.Retcode,
				Price:        result.Price,
				Volume:       result.Volume,
				Profit:       pos.Profit,
				Symbol:       symbol,
				PositionSide: pos.Side,
			}, nil
		}

		// Invalid-request rejections retry with the next filling mode; any
		// other rejection is final.
		if result.Retcode != mt5.RetInvalidRequest {
			return nil, &CloseFailedError{Code: result.Retcode, Message: mt5.Describe(result.Retcode)}
		}
		if attempt < attempts-1 {
			if fillingIdx+1 < len(fillings) {
				fillingIdx++
			}
			log.Printf("trade: close #%d rejected (%s), retrying with filling %s",
				pos.Ticket, mt5.Describe(result.Retcode), fillings[fillingIdx])
			select {
			case <-c.Session.Done():
				return nil, session.ErrNotConnected
			case <-time.After(c.retryPause()):
			}
		}
	}

	return nil, &CloseExhaustedError{Attempts: attempts}
}

// closeFailure maps a no-result submission error to CloseFailedError.
func closeFailure(err error) error {
	var terr *mt5.TerminalError
	if errors.As(err, &terr) {
		return &CloseFailedError{Code: terr.Code, Message: terr.Message}
	}
	if err != nil {
		return &CloseFailedError{Message: err.Error()}
	}
	return &CloseFailedError{Message: "close returned no result"}
}

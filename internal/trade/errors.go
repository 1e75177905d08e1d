package trade

import (
	"errors"
	"fmt"
)

var (
	ErrSymbolNotSelected = errors.New("symbol could not be selected")
	ErrSymbolNotFound    = errors.New("symbol not found")
	ErrNotTradable       = errors.New("symbol not tradable")
	ErrNoPrice           = errors.New("no price available")
	ErrNoFillingMode     = errors.New("no supported filling mode")
)

// OrderFailedError is a venue rejection of an order, translated through the
// return-code catalog.
type OrderFailedError struct {
	Code    uint32
	Message string
}

func (e *OrderFailedError) Error() string {
	return fmt.Sprintf("order failed: code %d: %s", e.Code, e.Message)
}

// CloseFailedError is a venue rejection of a position close.
type CloseFailedError struct {
	Code    uint32
	Message string
}

func (e *CloseFailedError) Error() string {
	return fmt.Sprintf("close failed: code %d: %s", e.Code, e.Message)
}

// CloseExhaustedError signals that every close attempt was consumed without
// success; it is distinct from the last underlying rejection.
type CloseExhaustedError struct {
	Attempts int
}

func (e *CloseExhaustedError) Error() string {
	return fmt.Sprintf("close failed after %d attempts", e.Attempts)
}

// PositionNotFoundError reports an unknown position ticket.
type PositionNotFoundError struct {
	Ticket uint64
}

func (e *PositionNotFoundError) Error() string {
	return fmt.Sprintf("position %d not found", e.Ticket)
}

// VolumeError reports a close volume outside the instrument's bounds after
// quantization.
type VolumeError struct {
	Volume float64
	Min    float64
	Max    float64
}

func (e *VolumeError) Error() string {
	return fmt.Sprintf("volume %v outside instrument bounds [%v, %v]", e.Volume, e.Min, e.Max)
}

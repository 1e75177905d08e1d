package db

import "time"

// OrderRecord is a journaled order submission, filled or rejected.
type OrderRecord struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Volume      float64   `json:"volume"`
	Price       float64   `json:"price"`
	SL          float64   `json:"sl"`
	TP          float64   `json:"tp"`
	OrderTicket uint64    `json:"order_ticket"`
	Deal        uint64    `json:"deal"`
	Retcode     uint32    `json:"retcode"`
	Status      string    `json:"status"` // FILLED or FAILED
	Comment     string    `json:"comment"`
	Magic       int64     `json:"magic"`
	CreatedAt   time.Time `json:"created_at"`
}

// CloseRecord is a journaled position close, successful or not.
type CloseRecord struct {
	ID             string    `json:"id"`
	PositionTicket uint64    `json:"position_ticket"`
	Symbol         string    `json:"symbol"`
	PositionSide   string    `json:"position_side"`
	Volume         float64   `json:"volume"`
	Price          float64   `json:"price"`
	Profit         float64   `json:"profit"`
	Deal           uint64    `json:"deal"`
	Retcode        uint32    `json:"retcode"`
	Status         string    `json:"status"` // CLOSED or FAILED
	CreatedAt      time.Time `json:"created_at"`
}

// SessionRecord journals connect/disconnect transitions.
type SessionRecord struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"` // CONNECTED or DISCONNECTED
	Account   int64     `json:"account"`
	Server    string    `json:"server"`
	CreatedAt time.Time `json:"created_at"`
}

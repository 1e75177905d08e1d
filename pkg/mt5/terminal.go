package mt5

// Terminal abstracts the venue terminal. Exactly one session is active per
// process; callers must serialize access through the session guard — the
// implementations make no concurrency promises of their own.
type Terminal interface {
	// Initialize prepares the terminal before login.
	Initialize() error
	// Login authenticates the trading account against the given server.
	Login(login int64, password, server string) error
	// Shutdown tears the session down. Safe to call more than once.
	Shutdown() error

	// AccountInfo returns the authenticated account summary.
	AccountInfo() (*AccountInfo, error)

	// Symbols lists all instrument names known to the terminal.
	Symbols() ([]string, error)
	// SymbolSelect ensures the instrument is visible in the terminal's
	// market watch; metadata and ticks are only served for selected symbols.
	SymbolSelect(symbol string, enable bool) bool
	// SymbolInfo returns instrument metadata, or nil when unknown.
	SymbolInfo(symbol string) (*SymbolInfo, error)
	// SymbolTick returns the live quote, or nil when no tick is available.
	SymbolTick(symbol string) (*Tick, error)
	// LastBar returns the most recent M1 candle, used as a closed-market
	// price fallback when SymbolTick yields nothing.
	LastBar(symbol string) (*Bar, error)

	// OrderSend submits a deal request. A nil result with a *TerminalError
	// models the venue's "no result" failure path; a non-nil result carries
	// the venue return code, which may still signal rejection.
	OrderSend(req *TradeRequest) (*TradeResult, error)

	// Positions returns snapshots of all open positions.
	Positions() ([]Position, error)
	// PositionByTicket returns the open position with the given ticket, or
	// nil when it does not exist.
	PositionByTicket(ticket uint64) (*Position, error)
}

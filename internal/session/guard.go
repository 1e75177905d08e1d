// Package session owns the single venue session and serializes every venue
// call behind one lock.
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"mt5-gateway/pkg/mt5"
)

var (
	ErrNotConnected        = errors.New("not connected to venue")
	ErrInitFailed          = errors.New("terminal initialization failed")
	ErrAutoTradingDisabled = errors.New("automated trading disabled for account")
)

// AuthError carries the venue's rejection of the supplied credentials.
type AuthError struct {
	Code    uint32
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login failed: code %d: %s", e.Code, e.Message)
}

// Info summarizes an established session.
type Info struct {
	Account int64 `json:"account"`
}

// Guard owns the terminal. All venue calls go through WithSession, which
// holds the session lock for the duration of that one call — never across a
// worker's polling interval.
type Guard struct {
	sessionMu sync.Mutex // exclusive access to the terminal
	term      mt5.Terminal

	stateMu   sync.Mutex // protects connected/account/done
	connected bool
	account   int64
	done      chan struct{}
}

// NewGuard wraps a terminal. The guard starts disconnected.
func NewGuard(term mt5.Terminal) *Guard {
	return &Guard{term: term}
}

// Connect initializes the terminal, authenticates, and verifies the account
// permits automated trading.
func (g *Guard) Connect(server string, login int64, password string) (Info, error) {
	g.sessionMu.Lock()
	defer g.sessionMu.Unlock()

	if err := g.term.Initialize(); err != nil {
		log.Printf("session: terminal init failed: %v", err)
		return Info{}, fmt.Errorf("%w: %v", ErrInitFailed, err)
	}

	if err := g.term.Login(login, password, server); err != nil {
		log.Printf("session: login failed for account %d: %v", login, err)
		var terr *mt5.TerminalError
		if errors.As(err, &terr) {
			return Info{}, &AuthError{Code: terr.Code, Message: terr.Message}
		}
		return Info{}, &AuthError{Message: err.Error()}
	}

	acct, err := g.term.AccountInfo()
	if err == nil && acct != nil && !acct.TradeExpert {
		log.Printf("session: account %d forbids automated trading", acct.Login)
		return Info{}, ErrAutoTradingDisabled
	}

	info := Info{Account: login}
	if acct != nil {
		info.Account = acct.Login
	}

	g.stateMu.Lock()
	g.connected = true
	g.account = info.Account
	g.done = make(chan struct{})
	g.stateMu.Unlock()

	log.Printf("session: connected, account %d", info.Account)
	return info, nil
}

// BeginShutdown flips the session to disconnected and signals every worker.
// It reports whether the session was connected; the caller joins the workers
// and then calls Release. Safe to call repeatedly.
func (g *Guard) BeginShutdown() bool {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	if !g.connected {
		return false
	}
	g.connected = false
	close(g.done)
	return true
}

// Release shuts the terminal down under the session lock. Idempotent.
func (g *Guard) Release() error {
	g.sessionMu.Lock()
	defer g.sessionMu.Unlock()
	if err := g.term.Shutdown(); err != nil {
		return fmt.Errorf("terminal shutdown: %w", err)
	}
	log.Printf("session: disconnected")
	return nil
}

// WithSession runs fn while holding exclusive access to the venue session.
// It fails fast when the session is not connected.
func (g *Guard) WithSession(fn func(term mt5.Terminal) error) error {
	g.stateMu.Lock()
	connected := g.connected
	g.stateMu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	g.sessionMu.Lock()
	defer g.sessionMu.Unlock()
	return fn(g.term)
}

// Connected reports whether a session is established.
func (g *Guard) Connected() bool {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	return g.connected
}

// AccountID returns the authenticated account, zero when disconnected.
func (g *Guard) AccountID() int64 {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	if !g.connected {
		return 0
	}
	return g.account
}

// Done returns a channel closed when the current session begins shutting
// down. Before the first connect it returns an already-closed channel.
func (g *Guard) Done() <-chan struct{} {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	if g.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return g.done
}

// Package sim provides an in-process scriptable Terminal used for local
// development and tests.
package sim

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"mt5-gateway/pkg/mt5"
)

type tickStep struct {
	tick *mt5.Tick
	fail bool
}

type orderStep struct {
	result *mt5.TradeResult
	err    error
}

type instrument struct {
	info     mt5.SymbolInfo
	selected bool
	tick     *mt5.Tick
	bar      *mt5.Bar
	script   []tickStep
}

// Terminal is a simulated venue terminal. Zero value is not usable; call New.
type Terminal struct {
	mu sync.Mutex

	initErr  error
	loginErr error
	account  mt5.AccountInfo

	instruments map[string]*instrument
	positions   map[uint64]*mt5.Position
	orderScript []orderStep
	sent        []mt5.TradeRequest

	nextTicket uint64
	drift      float64 // random-walk step applied per tick fetch when > 0
	running    bool
}

// New creates an empty simulated terminal with a default demo account.
func New() *Terminal {
	return &Terminal{
		account:     mt5.AccountInfo{Login: 1000001, TradeExpert: true, Currency: "USD"},
		instruments: make(map[string]*instrument),
		positions:   make(map[uint64]*mt5.Position),
		nextTicket:  500000,
	}
}

// AddSymbol registers an instrument with an initial quote.
func (s *Terminal) AddSymbol(info mt5.SymbolInfo, bid, ask float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments[info.Name] = &instrument{
		info: info,
		tick: &mt5.Tick{Bid: bid, Ask: ask, Time: time.Now()},
	}
}

// SetBar installs the closed-market fallback candle for a symbol.
func (s *Terminal) SetBar(symbol string, bar mt5.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := s.instruments[symbol]; ok {
		b := bar
		inst.bar = &b
	}
}

// SetTick replaces the live quote for a symbol.
func (s *Terminal) SetTick(symbol string, bid, ask float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := s.instruments[symbol]; ok {
		inst.tick = &mt5.Tick{Bid: bid, Ask: ask, Time: time.Now()}
	}
}

// DropTick removes the live quote so only the bar fallback remains.
func (s *Terminal) DropTick(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := s.instruments[symbol]; ok {
		inst.tick = nil
	}
}

// QueueTick schedules the next quote returned for a symbol; queued entries
// are consumed in order before the standing tick is served again.
func (s *Terminal) QueueTick(symbol string, bid, ask float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := s.instruments[symbol]; ok {
		inst.script = append(inst.script, tickStep{
			tick: &mt5.Tick{Bid: bid, Ask: ask, Time: time.Now()},
		})
	}
}

// QueueTickFailures schedules n consecutive failed tick fetches for a symbol.
func (s *Terminal) QueueTickFailures(symbol string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instruments[symbol]
	if !ok {
		return
	}
	for i := 0; i < n; i++ {
		inst.script = append(inst.script, tickStep{fail: true})
	}
}

// QueueOrderResult schedules the next OrderSend outcome with a venue retcode.
func (s *Terminal) QueueOrderResult(retcode uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderScript = append(s.orderScript, orderStep{
		result: &mt5.TradeResult{Retcode: retcode, Comment: mt5.Describe(retcode)},
	})
}

// QueueOrderError schedules the next OrderSend to yield no result at all,
// with the given last-error pair.
func (s *Terminal) QueueOrderError(code uint32, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderScript = append(s.orderScript, orderStep{
		err: &mt5.TerminalError{Code: code, Message: message},
	})
}

// AddPosition installs an open position and returns its ticket.
func (s *Terminal) AddPosition(pos mt5.Position) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos.Ticket == 0 {
		s.nextTicket++
		pos.Ticket = s.nextTicket
	}
	if pos.OpenTime.IsZero() {
		pos.OpenTime = time.Now()
	}
	p := pos
	s.positions[pos.Ticket] = &p
	return pos.Ticket
}

// FailInit makes Initialize fail until cleared with nil.
func (s *Terminal) FailInit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initErr = err
}

// FailLogin makes Login fail with the given venue error code.
func (s *Terminal) FailLogin(code uint32, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message == "" {
		s.loginErr = nil
		return
	}
	s.loginErr = &mt5.TerminalError{Code: code, Message: message}
}

// SetAccount overrides the account summary (e.g. TradeExpert=false).
func (s *Terminal) SetAccount(acct mt5.AccountInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = acct
}

// SetDrift enables a random walk on served quotes, for live-looking demo
// streams.
func (s *Terminal) SetDrift(step float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drift = step
}

// SentRequests returns a copy of every TradeRequest received so far.
func (s *Terminal) SentRequests() []mt5.TradeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mt5.TradeRequest, len(s.sent))
	copy(out, s.sent)
	return out
}

// --- mt5.Terminal ---

func (s *Terminal) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initErr != nil {
		return s.initErr
	}
	s.running = true
	return nil
}

func (s *Terminal) Login(login int64, password, server string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return errors.New("terminal not initialized")
	}
	if s.loginErr != nil {
		return s.loginErr
	}
	s.account.Login = login
	return nil
}

func (s *Terminal) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *Terminal) AccountInfo() (*mt5.AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.account
	return &acct, nil
}

func (s *Terminal) Symbols() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.instruments))
	for name := range s.instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Terminal) SymbolSelect(symbol string, enable bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instruments[symbol]
	if !ok {
		return false
	}
	inst.selected = enable
	return true
}

func (s *Terminal) SymbolInfo(symbol string) (*mt5.SymbolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instruments[symbol]
	if !ok {
		return nil, nil
	}
	info := inst.info
	return &info, nil
}

func (s *Terminal) SymbolTick(symbol string) (*mt5.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instruments[symbol]
	if !ok {
		return nil, nil
	}
	if len(inst.script) > 0 {
		step := inst.script[0]
		inst.script = inst.script[1:]
		if step.fail {
			return nil, nil
		}
		inst.tick = step.tick
		t := *step.tick
		return &t, nil
	}
	if inst.tick == nil {
		return nil, nil
	}
	if s.drift > 0 {
		move := (rand.Float64()*2 - 1) * s.drift
		inst.tick = &mt5.Tick{
			Bid:  inst.tick.Bid + move,
			Ask:  inst.tick.Ask + move,
			Time: time.Now(),
		}
	}
	t := *inst.tick
	return &t, nil
}

func (s *Terminal) LastBar(symbol string) (*mt5.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instruments[symbol]
	if !ok || inst.bar == nil {
		return nil, nil
	}
	b := *inst.bar
	return &b, nil
}

func (s *Terminal) OrderSend(req *mt5.TradeRequest) (*mt5.TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, *req)

	if len(s.orderScript) > 0 {
		step := s.orderScript[0]
		s.orderScript = s.orderScript[1:]
		if step.err != nil {
			return nil, step.err
		}
		res := *step.result
		res.Volume = req.Volume
		res.Price = req.Price
		return &res, nil
	}

	// Default: fill at the requested price.
	s.nextTicket++
	res := &mt5.TradeResult{
		Retcode: mt5.RetDone,
		Order:   s.nextTicket,
		Deal:    s.nextTicket,
		Volume:  req.Volume,
		Price:   req.Price,
	}

	if req.Position != 0 {
		if pos, ok := s.positions[req.Position]; ok {
			pos.Volume -= req.Volume
			if pos.Volume <= 1e-9 {
				delete(s.positions, req.Position)
			}
		}
	} else {
		s.nextTicket++
		ticket := s.nextTicket
		s.positions[ticket] = &mt5.Position{
			Ticket:       ticket,
			Symbol:       req.Symbol,
			Side:         req.Side,
			Volume:       req.Volume,
			PriceOpen:    req.Price,
			PriceCurrent: req.Price,
			SL:           req.SL,
			TP:           req.TP,
			OpenTime:     time.Now(),
			Comment:      req.Comment,
			Magic:        req.Magic,
		}
	}
	return res, nil
}

func (s *Terminal) Positions() ([]mt5.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mt5.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}

func (s *Terminal) PositionByTicket(ticket uint64) (*mt5.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[ticket]
	if !ok {
		return nil, nil
	}
	p := *pos
	return &p, nil
}

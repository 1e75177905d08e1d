// Package stream multiplexes per-symbol price polling workers onto many
// streaming subscribers.
package stream

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"mt5-gateway/internal/events"
	"mt5-gateway/pkg/mt5"
)

// Session exposes the parts of the session guard the workers need.
type Session interface {
	Connected() bool
	Done() <-chan struct{}
}

// PriceSource fetches a quote snapshot for one symbol. Implementations run
// the venue call under the session lock.
type PriceSource interface {
	GetPrice(symbol string) (*mt5.PriceData, error)
}

// Publisher delivers a quote to the given subscriber identities.
type Publisher interface {
	PublishPrice(subscribers []string, data *mt5.PriceData)
}

// Config tunes the polling workers.
type Config struct {
	PollInterval   time.Duration // sleep between iterations, success or not
	ErrorThreshold int           // consecutive fetch failures before the worker stops
}

// DefaultConfig mirrors the venue connector defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:   100 * time.Millisecond,
		ErrorThreshold: 5,
	}
}

type worker struct {
	symbol string
	stop   chan struct{}
	subs   map[string]struct{}
}

// Manager keeps one polling worker per subscribed symbol. The registry lock
// is structural only and never held across a venue call.
type Manager struct {
	mu      sync.Mutex
	workers map[string]*worker

	session Session
	src     PriceSource
	pub     Publisher
	bus     *events.Bus
	cfg     Config

	wg sync.WaitGroup
}

// NewManager builds a stream manager. bus may be nil.
func NewManager(session Session, src PriceSource, pub Publisher, bus *events.Bus, cfg Config) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = DefaultConfig().ErrorThreshold
	}
	return &Manager{
		workers: make(map[string]*worker),
		session: session,
		src:     src,
		pub:     pub,
		bus:     bus,
		cfg:     cfg,
	}
}

// Subscribe adds subscriberID to the symbol's set, starting a worker when it
// is the first subscriber. Idempotent for an already-subscribed identity.
func (m *Manager) Subscribe(symbol, subscriberID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.workers[symbol]; ok {
		w.subs[subscriberID] = struct{}{}
		return
	}

	w := &worker{
		symbol: symbol,
		stop:   make(chan struct{}),
		subs:   map[string]struct{}{subscriberID: {}},
	}
	m.workers[symbol] = w
	m.wg.Add(1)
	go m.run(w)

	log.Printf("stream: started worker for %s (subscriber %s)", symbol, subscriberID)
	if m.bus != nil {
		m.bus.Publish(events.EventStreamStarted, events.StreamEvent{Symbol: symbol, Reason: "subscribed"})
	}
}

// Unsubscribe removes subscriberID from the symbol's set and stops the
// worker when the set empties. Unknown symbol or identity is a no-op.
func (m *Manager) Unsubscribe(symbol, subscriberID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribeLocked(symbol, subscriberID)
}

// UnsubscribeAll removes the identity from every symbol, stopping workers
// whose sets empty. Invoked when a streaming client disconnects.
func (m *Manager) UnsubscribeAll(subscriberID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for symbol := range m.workers {
		m.unsubscribeLocked(symbol, subscriberID)
	}
}

func (m *Manager) unsubscribeLocked(symbol, subscriberID string) {
	w, ok := m.workers[symbol]
	if !ok {
		return
	}
	if _, ok := w.subs[subscriberID]; !ok {
		return
	}
	delete(w.subs, subscriberID)
	if len(w.subs) > 0 {
		return
	}
	close(w.stop)
	delete(m.workers, symbol)
	log.Printf("stream: stopped worker for %s (last subscriber left)", symbol)
	if m.bus != nil {
		m.bus.Publish(events.EventStreamStopped, events.StreamEvent{Symbol: symbol, Reason: "unsubscribed"})
	}
}

// ActiveSymbols lists symbols with a live worker, sorted.
func (m *Manager) ActiveSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.workers))
	for symbol := range m.workers {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// WorkerCount returns the number of live workers.
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// StopAll stops every worker and waits for them to exit, bounded by timeout.
// Used during disconnect so the session is never torn down under a worker.
func (m *Manager) StopAll(timeout time.Duration) {
	m.mu.Lock()
	for symbol, w := range m.workers {
		close(w.stop)
		delete(m.workers, symbol)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("stream: timed out after %v waiting for workers to stop", timeout)
	}
}

// subscriberIDs snapshots the current subscriber set for a worker.
func (m *Manager) subscriberIDs(w *worker) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(w.subs))
	for id := range w.subs {
		out = append(out, id)
	}
	return out
}

// retire removes a worker that stopped itself (error threshold, shutdown).
func (m *Manager) retire(w *worker, reason string) {
	m.mu.Lock()
	if m.workers[w.symbol] == w {
		delete(m.workers, w.symbol)
	}
	m.mu.Unlock()
	log.Printf("stream: worker for %s ended (%s)", w.symbol, reason)
	if m.bus != nil {
		m.bus.Publish(events.EventStreamStopped, events.StreamEvent{Symbol: w.symbol, Reason: reason})
	}
}

func (m *Manager) run(w *worker) {
	defer m.wg.Done()

	var lastSig string
	errCount := 0

	for {
		select {
		case <-w.stop:
			return
		case <-m.session.Done():
			m.retire(w, "shutdown")
			return
		default:
		}
		if !m.session.Connected() {
			m.retire(w, "shutdown")
			return
		}

		data, err := m.src.GetPrice(w.symbol)
		if err != nil {
			errCount++
			log.Printf("stream: price fetch for %s failed (%d/%d): %v",
				w.symbol, errCount, m.cfg.ErrorThreshold, err)
			if errCount >= m.cfg.ErrorThreshold {
				m.retire(w, "errors")
				return
			}
		} else {
			errCount = 0
			sig := quoteSignature(data)
			if sig != lastSig {
				m.pub.PublishPrice(m.subscriberIDs(w), data)
				lastSig = sig
			}
		}

		select {
		case <-w.stop:
			return
		case <-m.session.Done():
			m.retire(w, "shutdown")
			return
		case <-time.After(m.cfg.PollInterval):
		}
	}
}

// quoteSignature detects quote changes; identical bid/ask pairs publish once.
func quoteSignature(d *mt5.PriceData) string {
	return fmt.Sprintf("%v-%v", d.Bid, d.Ask)
}

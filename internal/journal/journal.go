// Package journal persists gateway activity (orders, closes, session
// transitions) off the hot path.
package journal

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"mt5-gateway/internal/events"
	"mt5-gateway/pkg/db"
)

const writeTimeout = 5 * time.Second

// Journal consumes lifecycle events from the bus and writes them to sqlite.
// Writes are asynchronous; the bus drops events for a stalled journal rather
// than blocking trading.
type Journal struct {
	DB  *db.Database
	Bus *events.Bus

	wg     sync.WaitGroup
	unsubs []func()
}

// New builds a journal over the given store and bus.
func New(database *db.Database, bus *events.Bus) *Journal {
	return &Journal{DB: database, Bus: bus}
}

// Start subscribes to the journaled topics.
func (j *Journal) Start() {
	j.consume(events.EventOrderPlaced, j.writeOrder)
	j.consume(events.EventOrderFailed, j.writeOrder)
	j.consume(events.EventPositionClosed, j.writeClose)
	j.consume(events.EventCloseFailed, j.writeClose)
	j.consume(events.EventSessionConnected, j.writeSession("CONNECTED"))
	j.consume(events.EventSessionDisconnected, j.writeSession("DISCONNECTED"))
}

// Stop unsubscribes and drains the in-flight writers.
func (j *Journal) Stop() {
	for _, unsub := range j.unsubs {
		unsub()
	}
	j.unsubs = nil
	j.wg.Wait()
}

func (j *Journal) consume(e events.Event, handle func(any)) {
	ch, unsub := j.Bus.Subscribe(e, 128)
	j.unsubs = append(j.unsubs, unsub)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		for payload := range ch {
			handle(payload)
		}
	}()
}

func (j *Journal) writeOrder(payload any) {
	rec, ok := payload.(db.OrderRecord)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j.DB.CreateOrder(ctx, rec); err != nil {
		log.Printf("journal: store order %s: %v", rec.ID, err)
	}
}

func (j *Journal) writeClose(payload any) {
	rec, ok := payload.(db.CloseRecord)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j.DB.CreateClose(ctx, rec); err != nil {
		log.Printf("journal: store close %s: %v", rec.ID, err)
	}
}

func (j *Journal) writeSession(kind string) func(any) {
	return func(payload any) {
		ev, ok := payload.(events.SessionEvent)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		rec := db.SessionRecord{
			ID:        uuid.NewString(),
			Kind:      kind,
			Account:   ev.Account,
			Server:    ev.Server,
			CreatedAt: time.Now(),
		}
		if err := j.DB.CreateSessionEvent(ctx, rec); err != nil {
			log.Printf("journal: store session event: %v", err)
		}
	}
}

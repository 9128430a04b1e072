package chat

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/go-portfolio/corujao-chat/internal/store"
)

// MessageStore is the durable side of the message log.
type MessageStore interface {
	AppendMessage(ctx context.Context, m store.Message) error
}

var (
	// ErrLogUnhealthy is returned while the store is marked unhealthy
	// and new appends are being refused instead of queued unboundedly.
	ErrLogUnhealthy = errors.New("message log unhealthy")
	// ErrLogBusy is returned when the append queue is full.
	ErrLogBusy = errors.New("message log queue full")
)

const (
	journalQueueSize   = 256
	journalTimeout     = 5 * time.Second
	journalMaxFailures = 5
	journalProbeEvery  = 30 * time.Second
)

// Journal appends chat messages to the durable store asynchronously so
// broadcast fan-out never waits on a database write. Write failures are
// reported back through the per-entry notify callback; after
// journalMaxFailures consecutive failures the journal turns unhealthy
// and refuses new appends, letting one probe write through per
// journalProbeEvery until the store recovers.
type Journal struct {
	store MessageStore
	queue chan journalEntry

	mu        sync.Mutex
	failures  int
	unhealthy bool
	lastProbe time.Time
}

type journalEntry struct {
	msg    store.Message
	notify func(err error)
}

// NewJournal creates a journal over the given store. Run must be started
// in its own goroutine.
func NewJournal(s MessageStore) *Journal {
	return &Journal{
		store: s,
		queue: make(chan journalEntry, journalQueueSize),
	}
}

// Enqueue schedules an append. notify (optional) is invoked from the
// writer goroutine with the write result. The call never blocks.
func (j *Journal) Enqueue(msg store.Message, notify func(err error)) error {
	j.mu.Lock()
	if j.unhealthy {
		if time.Since(j.lastProbe) < journalProbeEvery {
			j.mu.Unlock()
			return ErrLogUnhealthy
		}
		j.lastProbe = time.Now()
	}
	j.mu.Unlock()

	select {
	case j.queue <- journalEntry{msg: msg, notify: notify}:
		return nil
	default:
		return ErrLogBusy
	}
}

// Run drains the queue until ctx is cancelled.
func (j *Journal) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-j.queue:
			j.write(ctx, e)
		}
	}
}

func (j *Journal) write(ctx context.Context, e journalEntry) {
	wctx, cancel := context.WithTimeout(ctx, journalTimeout)
	err := j.store.AppendMessage(wctx, e.msg)
	cancel()

	j.mu.Lock()
	if err != nil {
		j.failures++
		if j.failures >= journalMaxFailures && !j.unhealthy {
			j.unhealthy = true
			j.lastProbe = time.Now()
			log.Printf("journal: marking message log unhealthy after %d consecutive failures", j.failures)
		}
	} else {
		if j.unhealthy {
			log.Printf("journal: message log recovered")
		}
		j.failures = 0
		j.unhealthy = false
	}
	j.mu.Unlock()

	if err != nil {
		log.Printf("journal: append failed for room %s: %v", e.msg.Room, err)
	}
	if e.notify != nil {
		e.notify(err)
	}
}

// Healthy reports whether appends are currently being accepted.
func (j *Journal) Healthy() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return !j.unhealthy
}

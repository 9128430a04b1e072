package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-portfolio/corujao-chat/internal/store"
	"github.com/stretchr/testify/assert"
)

// flakyStore fails while failing is set and records successful appends.
type flakyStore struct {
	mu       sync.Mutex
	failing  bool
	appended []store.Message
}

func (f *flakyStore) AppendMessage(ctx context.Context, m store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("store unreachable")
	}
	f.appended = append(f.appended, m)
	return nil
}

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *flakyStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

// enqueueAndWait pushes one message and blocks until the writer reports
// the outcome.
func enqueueAndWait(t *testing.T, j *Journal, msg store.Message) error {
	t.Helper()
	done := make(chan error, 1)
	err := j.Enqueue(msg, func(err error) { done <- err })
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("journal write did not complete")
		return nil
	}
}

func TestJournal_AppendsAsynchronously(t *testing.T) {
	fs := &flakyStore{}
	j := NewJournal(fs)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	err := enqueueAndWait(t, j, store.Message{ID: "1", Room: "geral", Author: "alice", Text: "oi"})
	assert.NoError(t, err)
	assert.Equal(t, 1, fs.count())
	assert.True(t, j.Healthy())
}

func TestJournal_NotifiesOnFailure(t *testing.T) {
	fs := &flakyStore{failing: true}
	j := NewJournal(fs)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	err := enqueueAndWait(t, j, store.Message{ID: "1", Room: "geral"})
	assert.Error(t, err)
}

func TestJournal_TurnsUnhealthyAfterConsecutiveFailures(t *testing.T) {
	fs := &flakyStore{failing: true}
	j := NewJournal(fs)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	for i := 0; i < journalMaxFailures; i++ {
		enqueueAndWait(t, j, store.Message{ID: "x", Room: "geral"})
	}

	assert.False(t, j.Healthy())
	err := j.Enqueue(store.Message{ID: "y", Room: "geral"}, nil)
	assert.ErrorIs(t, err, ErrLogUnhealthy)
}

func TestJournal_RecoversAfterProbeSucceeds(t *testing.T) {
	fs := &flakyStore{failing: true}
	j := NewJournal(fs)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	for i := 0; i < journalMaxFailures; i++ {
		enqueueAndWait(t, j, store.Message{ID: "x", Room: "geral"})
	}
	assert.False(t, j.Healthy())

	// allow the next probe immediately and let it succeed
	fs.setFailing(false)
	j.mu.Lock()
	j.lastProbe = time.Now().Add(-journalProbeEvery)
	j.mu.Unlock()

	err := enqueueAndWait(t, j, store.Message{ID: "probe", Room: "geral"})
	assert.NoError(t, err)
	assert.True(t, j.Healthy())

	// back to normal operation
	err = enqueueAndWait(t, j, store.Message{ID: "next", Room: "geral"})
	assert.NoError(t, err)
}

func TestJournal_SuccessResetsFailureCount(t *testing.T) {
	fs := &flakyStore{failing: true}
	j := NewJournal(fs)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	for i := 0; i < journalMaxFailures-1; i++ {
		enqueueAndWait(t, j, store.Message{ID: "x", Room: "geral"})
	}
	fs.setFailing(true)

	fs.setFailing(false)
	enqueueAndWait(t, j, store.Message{ID: "ok", Room: "geral"})
	fs.setFailing(true)
	enqueueAndWait(t, j, store.Message{ID: "fail", Room: "geral"})

	assert.True(t, j.Healthy(), "one failure after a success must not trip the breaker")
}

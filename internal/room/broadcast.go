package room

import (
	"context"
	"errors"
	"sync"

	"github.com/kalgynirae/sudoku/internal/board"
)

// ErrLagged is returned by DiffSubscriber.Recv when the subscriber
// fell more than the channel capacity behind. Its cursor is advanced
// past the lost messages; the caller is expected to resync the client
// with a full board update.
var ErrLagged = errors.New("diff subscriber lagged behind the broadcast channel")

// ErrClosed is returned by DiffSubscriber.Recv after the broadcaster
// is closed. The room holds the broadcaster for its lifetime, so
// subscribers do not normally observe it.
var ErrClosed = errors.New("diff broadcast channel is closed")

// DiffBroadcast is one published group of diffs. SenderID and SyncID
// let each subscriber decide whether the message is its own echo.
type DiffBroadcast struct {
	Diffs    []board.Diff
	SenderID SessionID
	SyncID   uint64
}

// diffBroadcaster is a bounded multi-producer multi-consumer broadcast
// channel over a ring buffer. Every subscriber sees every published
// message in publication order unless it falls behind by more than the
// buffer capacity, in which case its next Recv reports ErrLagged and
// skips ahead to the oldest retained message. Producers never block;
// publishing overwrites the oldest slot.
type diffBroadcaster struct {
	mu          sync.Mutex
	ring        []*DiffBroadcast
	head        uint64 // sequence number of the next publish
	subscribers int
	closed      bool
	wakeup      chan struct{} // closed and replaced on every publish
}

func newDiffBroadcaster(capacity int) *diffBroadcaster {
	return &diffBroadcaster{
		ring:   make([]*DiffBroadcast, capacity),
		wakeup: make(chan struct{}),
	}
}

func (b *diffBroadcaster) publish(msg *DiffBroadcast) (hadSubscribers bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.ring[b.head%uint64(len(b.ring))] = msg
	b.head++
	close(b.wakeup)
	b.wakeup = make(chan struct{})
	return b.subscribers > 0
}

func (b *diffBroadcaster) subscribe() *DiffSubscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers++
	// receive future broadcasts only
	return &DiffSubscriber{b: b, next: b.head}
}

func (b *diffBroadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.wakeup)
}

// DiffSubscriber is one consumer's cursor into the broadcast channel.
type DiffSubscriber struct {
	b      *diffBroadcaster
	next   uint64
	closed bool
}

// Recv blocks until the next message is available, the subscriber has
// lagged, the broadcaster closes, or ctx is done.
func (s *DiffSubscriber) Recv(ctx context.Context) (*DiffBroadcast, error) {
	s.b.mu.Lock()
	for {
		if s.closed {
			s.b.mu.Unlock()
			return nil, ErrClosed
		}
		capacity := uint64(len(s.b.ring))
		if s.b.head-s.next > capacity {
			// skip ahead to the oldest message still in the ring
			s.next = s.b.head - capacity
			s.b.mu.Unlock()
			return nil, ErrLagged
		}
		if s.next < s.b.head {
			msg := s.b.ring[s.next%capacity]
			s.next++
			s.b.mu.Unlock()
			return msg, nil
		}
		if s.b.closed {
			s.b.mu.Unlock()
			return nil, ErrClosed
		}
		wakeup := s.b.wakeup
		s.b.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wakeup:
		}
		s.b.mu.Lock()
	}
}

// Close releases the subscriber's slot in the broadcaster's count.
// Recv returns ErrClosed afterwards.
func (s *DiffSubscriber) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.b.subscribers--
	}
}

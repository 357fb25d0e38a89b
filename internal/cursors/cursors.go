// Package cursors shares a map of cursor selections between every
// client in a room. Cursor motion is high-rate and idempotent, so the
// fan-out is a watch-style cell holding the latest Map by value:
// receivers that fall behind observe only the newest state, which
// coalesces intermediate updates and keeps the cost O(rooms) rather
// than O(updates).
package cursors

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrMapFull is returned by NewSession when every slot is taken.
var ErrMapFull = errors.New("attempted to insert into a full cursor map")

// ErrWatchClosed is returned by Receiver.Recv after Close. The room
// holds the cursors core for its lifetime, so receivers do not
// normally observe it.
var ErrWatchClosed = errors.New("tried to recv, but the cursor watch is closed")

// InvalidSlotError reports a stale slot index or one belonging to a
// different map.
type InvalidSlotError struct {
	Index int
}

func (e *InvalidSlotError) Error() string {
	return fmt.Sprintf("cursor slot %d is invalid for the map", e.Index)
}

// Cursors is the per-room cursor fan-out core.
type Cursors struct {
	mu      sync.Mutex
	m       Map
	version uint64
	closed  bool
	wakeup  chan struct{} // closed and replaced on every publish
}

// New creates an empty cursors core.
func New() *Cursors {
	return &Cursors{
		version: 1, // so a fresh receiver's first Recv returns immediately
		wakeup:  make(chan struct{}),
	}
}

// NewSession claims a slot and returns the sender/receiver pair bound
// to it. The new (empty) selection is published to all receivers.
func (c *Cursors) NewSession(sessionID uint64) (*SessionCursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, err := c.m.newSession(sessionID)
	if err != nil {
		return nil, err
	}
	c.publishLocked()
	return &SessionCursor{
		Tx: &Sender{c: c, idx: idx},
		Rx: &Receiver{c: c, idx: idx},
	}, nil
}

// Close wakes all receivers with ErrWatchClosed. Used when the room is
// dropped.
func (c *Cursors) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.wakeup)
	}
}

func (c *Cursors) publishLocked() {
	if c.closed {
		return
	}
	c.version++
	close(c.wakeup)
	c.wakeup = make(chan struct{})
}

// SessionCursor bundles the sender and receiver halves handed to a
// session.
type SessionCursor struct {
	Tx *Sender
	Rx *Receiver
}

// Sender writes one session's selection into the shared map.
type Sender struct {
	c      *Cursors
	idx    int
	closed bool
}

// Update stores the selection in the owner's slot and publishes the
// new map.
func (s *Sender) Update(sel Selection) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.closed {
		return &InvalidSlotError{Index: s.idx}
	}
	if err := s.c.m.update(s.idx, sel); err != nil {
		return err
	}
	s.c.publishLocked()
	return nil
}

// Close releases the owner's slot and publishes the removal. Safe to
// call more than once.
func (s *Sender) Close() error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.c.m.remove(s.idx); err != nil {
		return err
	}
	s.c.publishLocked()
	return nil
}

// Receiver observes changes to the shared map.
type Receiver struct {
	c    *Cursors
	idx  int
	seen uint64
}

// Recv blocks until the map changes since the last call, then returns
// a view with the receiver's own slot elided. The first call returns
// immediately with the current value.
func (r *Receiver) Recv(ctx context.Context) (MapView, error) {
	r.c.mu.Lock()
	for {
		if r.c.version != r.seen {
			r.seen = r.c.version
			view := r.c.m.View(r.idx)
			r.c.mu.Unlock()
			return view, nil
		}
		if r.c.closed {
			r.c.mu.Unlock()
			return MapView{}, ErrWatchClosed
		}
		wakeup := r.c.wakeup
		r.c.mu.Unlock()
		select {
		case <-ctx.Done():
			return MapView{}, ctx.Err()
		case <-wakeup:
		}
		r.c.mu.Lock()
	}
}

package cursors

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvJSON(t *testing.T, rx *Receiver) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	view, err := rx.Recv(ctx)
	require.NoError(t, err)
	data, err := json.Marshal(view)
	require.NoError(t, err)
	return string(data)
}

func TestWatchTwoClients(t *testing.T) {
	c := New()

	session0, err := c.NewSession(1000)
	require.NoError(t, err)
	// we can recv immediately on a new session
	assert.JSONEq(t, `{}`, recvJSON(t, session0.Rx))

	session1, err := c.NewSession(1001)
	require.NoError(t, err)

	require.NoError(t, session0.Tx.Update(selectionFromJSON(t, `[1,2,3]`)))
	require.NoError(t, session1.Tx.Update(selectionFromJSON(t, `[4,5,6]`)))

	assert.JSONEq(t, `{"1":[4,5,6]}`, recvJSON(t, session0.Rx))
	assert.JSONEq(t, `{"0":[1,2,3]}`, recvJSON(t, session1.Rx))
}

func TestWatchCoalesces(t *testing.T) {
	c := New()
	session0, err := c.NewSession(1)
	require.NoError(t, err)
	session1, err := c.NewSession(2)
	require.NoError(t, err)

	// several updates while session0 is not receiving collapse into a
	// single wakeup carrying only the latest value
	for _, raw := range []string{`[1]`, `[2]`, `[3]`} {
		require.NoError(t, session1.Tx.Update(selectionFromJSON(t, raw)))
	}
	assert.JSONEq(t, `{"1":[3]}`, recvJSON(t, session0.Rx))
}

func TestSenderCloseReleasesSlot(t *testing.T) {
	c := New()
	session0, err := c.NewSession(1)
	require.NoError(t, err)
	session1, err := c.NewSession(2)
	require.NoError(t, err)

	require.NoError(t, session1.Tx.Update(selectionFromJSON(t, `[7]`)))
	assert.JSONEq(t, `{"1":[7]}`, recvJSON(t, session0.Rx))

	require.NoError(t, session1.Tx.Close())
	assert.JSONEq(t, `{}`, recvJSON(t, session0.Rx))

	// double close is a no-op
	require.NoError(t, session1.Tx.Close())

	// the freed slot is reusable
	_, err = c.NewSession(3)
	require.NoError(t, err)
}

func TestWatchFull(t *testing.T) {
	c := New()
	for i := 0; i < MaxSessions; i++ {
		_, err := c.NewSession(uint64(i))
		require.NoError(t, err)
	}
	_, err := c.NewSession(99)
	assert.ErrorIs(t, err, ErrMapFull)
}

func TestRecvBlocksUntilUpdate(t *testing.T) {
	c := New()
	session0, err := c.NewSession(1)
	require.NoError(t, err)
	session1, err := c.NewSession(2)
	require.NoError(t, err)

	// drain the initial value
	recvJSON(t, session0.Rx)

	done := make(chan string, 1)
	go func() {
		done <- recvJSON(t, session0.Rx)
	}()

	select {
	case <-done:
		t.Fatal("Recv returned before any update")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, session1.Tx.Update(selectionFromJSON(t, `[1]`)))
	assert.JSONEq(t, `{"1":[1]}`, <-done)
}

func TestRecvContextCancel(t *testing.T) {
	c := New()
	session0, err := c.NewSession(1)
	require.NoError(t, err)
	recvJSON(t, session0.Rx)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = session0.Rx.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecvAfterClose(t *testing.T) {
	c := New()
	session0, err := c.NewSession(1)
	require.NoError(t, err)
	recvJSON(t, session0.Rx)

	c.Close()
	_, err = session0.Rx.Recv(context.Background())
	assert.ErrorIs(t, err, ErrWatchClosed)
}

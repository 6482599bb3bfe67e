package confirm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerRoundTrip(t *testing.T) {
	parked := make(chan Request, 1)
	b := NewBroker(WithTimeout(time.Minute), WithObserver(func(r Request) { parked <- r }))

	done := make(chan Outcome, 1)
	go func() {
		done <- b.Confirm(context.Background(), Request{Title: "Confirm Action Plan", Plan: "delete_junk_file"})
	}()

	req := <-parked
	require.NotEmpty(t, req.ID)
	assert.Len(t, b.Pending(), 1)

	require.NoError(t, b.Resolve(req.ID, true))
	assert.Equal(t, Confirmed, <-done)
	assert.Empty(t, b.Pending())
	assert.ErrorIs(t, b.Resolve(req.ID, true), ErrUnknownRequest)
}

func TestBrokerTimeoutDeclines(t *testing.T) {
	b := NewBroker(WithTimeout(10 * time.Millisecond))
	out := b.Confirm(context.Background(), Request{Title: "x"})
	assert.Equal(t, TimedOut, out)
	assert.False(t, out.Approved())
}

func TestAdapters(t *testing.T) {
	yes := Func(func(context.Context, Request) bool { return true })
	assert.Equal(t, Confirmed, yes.Confirm(context.Background(), Request{}))
	assert.Equal(t, Declined, AutoDecline{}.Confirm(context.Background(), Request{}))
}

package wire

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewChannelReadWriter_RoundTrip(t *testing.T) {
	in := make(chan *Rpc, 1)
	out := make(chan *Rpc, 1)
	ch := NewChannelReadWriter(in, out)

	in <- &Rpc{Id: 7}
	rpc, err := ch.Read(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 7, rpc.Id)

	require.NoError(t, ch.Write(context.Background(), &Rpc{Id: 8}))
	select {
	case rpc := <-out:
		require.EqualValues(t, 8, rpc.Id)
	case <-time.After(time.Second):
		t.Fatal("write did not reach outQ")
	}

	ch.Done() // no-op, must not panic
}

func TestNewChannelReadWriter_ReadOnClosedChannel(t *testing.T) {
	in := make(chan *Rpc)
	out := make(chan *Rpc, 1)
	close(in)
	ch := NewChannelReadWriter(in, out)

	_, err := ch.Read(context.Background())
	require.ErrorIs(t, err, errClosed)
}

func TestNewChannelReadWriter_ReadContextCancelled(t *testing.T) {
	in := make(chan *Rpc)
	out := make(chan *Rpc)
	ch := NewChannelReadWriter(in, out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ch.Read(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewFnReadWriter_DoneIsNilSafe(t *testing.T) {
	ch := NewFnReadWriter(
		func(context.Context) (*Rpc, error) { return nil, nil },
		func(context.Context, *Rpc) error { return nil },
		nil,
	)
	ch.Done() // must not panic
}

func TestNewFnReadWriter_InvokesGivenFuncs(t *testing.T) {
	var doneCalled bool
	ch := NewFnReadWriter(
		func(context.Context) (*Rpc, error) { return &Rpc{Id: 42}, nil },
		func(_ context.Context, rpc *Rpc) error {
			require.EqualValues(t, 1, rpc.Id)
			return nil
		},
		func() { doneCalled = true },
	)

	rpc, err := ch.Read(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 42, rpc.Id)

	require.NoError(t, ch.Write(context.Background(), &Rpc{Id: 1}))

	ch.Done()
	require.True(t, doneCalled)
}

// Package wire defines the Rpc envelope that GOAT's multiplexer sends and
// receives on the caller-supplied channel, plus the ChannelIO collaborator
// interface. Every call driver in the parent package speaks this envelope;
// nothing in this package knows about call ids being "in flight", headers
// being merged, or streams being open - that state lives in demux and in
// the parent package's call drivers.
package wire

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/anypb"
)

// KeyValue is one header entry. Order within a Header's Headers list is
// preserved on the wire; the adapter appends user headers after any
// adapter-owned headers, so indices beyond that prefix are stable across a
// round trip.
type KeyValue struct {
	Key   string
	Value string
}

// Header carries routing and per-call metadata. Method has the form
// "/<service>/<method>". Headers carries user headers; it is only present
// (non-nil) on the opening envelope of a call.
type Header struct {
	Method      string
	Headers     []KeyValue
	Destination string
	Source      string
}

// Body carries one serialized message payload.
type Body struct {
	Data []byte
}

// Status terminates a call with a non-zero Code, or (with Code zero, which
// is never sent) is simply absent. Details mirrors grpc/status's own
// representation of structured error details.
type Status struct {
	Code    codes.Code
	Message string
	Details []*anypb.Any
}

// Trailer's mere presence on an envelope signals end-of-stream from the
// sending side, regardless of whether Metadata is empty.
type Trailer struct {
	Metadata []KeyValue
}

// ResetType enumerates the reset envelope's Type field. RST_STREAM is the
// only value GOAT itself ever sends; the type exists (rather than a bare
// bool) because the wire format allows a peer to define others.
type ResetType string

// RSTStream is the reset type GOAT sends to abort a stream abnormally.
const RSTStream ResetType = "RST_STREAM"

// Reset instructs the peer to treat the identified call as abnormally
// closed.
type Reset struct {
	Type ResetType
}

// Rpc is one framed envelope on the shared channel. Any subset of Header,
// Body, Status, Trailer, and Reset may be populated; Id pairs a response
// with the call that requested it, and is unique per outstanding call on
// this side (ids are never reused within a Transport's lifetime, except
// across a Reset which starts a fresh Transport-side sequence only in the
// sense that old ids can no longer be resolved - the counter itself never
// rewinds).
type Rpc struct {
	Id      uint64
	Header  *Header
	Body    *Body
	Status  *Status
	Trailer *Trailer
	Reset   *Reset
}

// ChannelIO is the transport collaborator GOAT multiplexes over: an
// application-supplied, in-order, bidirectional, message-oriented channel
// of Rpc envelopes (e.g. a WebSocket, a pipe, a multiplexed session).
//
// Read produces the next envelope and fails only on unrecoverable channel
// failure. Write enqueues one envelope and fails on channel failure; GOAT
// never splits one envelope across multiple Write calls, but concurrent
// Write calls from different in-flight calls are expected and must either
// be serialized internally or tolerated by the underlying transport
// (message boundaries, e.g. a WebSocket frame per Write, suffice).
//
// Done is a voluntary teardown notification invoked by GOAT once per
// ChannelIO, after Reset has replaced the channel. No other path calls
// Done: a channel that is never replaced never has Done called by GOAT.
type ChannelIO interface {
	Read(ctx context.Context) (*Rpc, error)
	Write(ctx context.Context, rpc *Rpc) error
	Done()
}

// FnChannelIO adapts a read/write/done function triple into a ChannelIO,
// mirroring the convenience constructors the original GOAT transport
// exposed for turning arbitrary I/O primitives into an RpcReadWriter.
type FnChannelIO struct {
	ReadFunc  func(ctx context.Context) (*Rpc, error)
	WriteFunc func(ctx context.Context, rpc *Rpc) error
	DoneFunc  func()
}

func (f *FnChannelIO) Read(ctx context.Context) (*Rpc, error) { return f.ReadFunc(ctx) }

func (f *FnChannelIO) Write(ctx context.Context, rpc *Rpc) error { return f.WriteFunc(ctx, rpc) }

func (f *FnChannelIO) Done() {
	if f.DoneFunc != nil {
		f.DoneFunc()
	}
}

// NewFnReadWriter adapts a read/write/done function triple into a
// ChannelIO. done may be nil, in which case Done is a no-op.
func NewFnReadWriter(read func(ctx context.Context) (*Rpc, error), write func(ctx context.Context, rpc *Rpc) error, done func()) ChannelIO {
	return &FnChannelIO{ReadFunc: read, WriteFunc: write, DoneFunc: done}
}

// NewChannelReadWriter adapts a pair of Go channels into a ChannelIO. The
// returned value's Done is a no-op; callers that own inQ/outQ should close
// them themselves once the ChannelIO is no longer in use.
func NewChannelReadWriter(inQ <-chan *Rpc, outQ chan<- *Rpc) ChannelIO {
	return &FnChannelIO{
		ReadFunc: func(ctx context.Context) (*Rpc, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case rpc, ok := <-inQ:
				if !ok {
					return nil, errClosed
				}
				return rpc, nil
			}
		},
		WriteFunc: func(ctx context.Context, rpc *Rpc) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case outQ <- rpc:
				return nil
			}
		},
	}
}

var errClosed = channelClosedError{}

type channelClosedError struct{}

func (channelClosedError) Error() string { return "wire: read channel closed" }

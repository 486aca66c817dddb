package goat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	spbstatus "google.golang.org/genproto/googleapis/rpc/status"

	"github.com/joeycumines/go-goat/goaterrors"
	"github.com/joeycumines/go-goat/internal/demux"
	"github.com/joeycumines/go-goat/internal/outbox"
	"github.com/joeycumines/go-goat/wire"
)

// errStreamClosed is returned by SendMsg once CloseSend has been called on
// the StreamCall. SendMsg after the call has unwound without CloseSend
// still writes to the channel.
var errStreamClosed = errors.New("goat: stream closed")

// StreamRequest is the minimal shape the framework hands the adapter to
// open a client/server/bidi streaming call. Unlike UnaryRequest there is
// no single input message: messages are pushed one at a time via
// StreamCall.SendMsg, with the framework's own upload goroutine driving
// the sequence.
type StreamRequest struct {
	Method string
	Header metadata.MD
	Codec  MessageCodec
}

// StreamCall is the per-call handle returned by Transport.Stream:
// SendMsg/CloseSend drive the upload side, RecvMsg drives the response
// consumer, and cleanup runs exactly once regardless of which side
// observes the terminal condition first.
type StreamCall struct {
	ctx    context.Context
	t      *Transport
	id     uint64
	codec  MessageCodec
	output *outbox.Outbox[*wire.Rpc]

	midHeader *wire.Header

	stopAbortWatcher chan struct{}

	sendMu     sync.Mutex
	sendClosed bool

	cleanupOnce sync.Once

	// trailerMu guards serverClosed, clientClosed, and trailer: cleanup
	// reads the first two to decide whether an RST is owed, RecvMsg and
	// CloseSend set them from different goroutines when the caller drives
	// upload and download concurrently.
	trailerMu    sync.Mutex
	serverClosed bool
	clientClosed bool
	trailer      metadata.MD
}

// Stream opens a streaming call and returns a handle for driving its
// upload and response sides.
func (t *Transport) Stream(ctx context.Context, req StreamRequest) (*StreamCall, error) {
	if err := ctx.Err(); err != nil {
		return nil, &goaterrors.Aborted{Cause: err}
	}

	initialHeader := &wire.Header{
		Method:      req.Method,
		Headers:     headersToKV(req.Header),
		Destination: t.opts.destinationName,
		Source:      t.opts.sourceName,
	}
	midHeader := &wire.Header{
		Method:      req.Method,
		Destination: t.opts.destinationName,
		Source:      t.opts.sourceName,
	}

	s := &StreamCall{
		ctx:              ctx,
		t:                t,
		codec:            req.Codec,
		output:           outbox.New[*wire.Rpc](),
		midHeader:        midHeader,
		stopAbortWatcher: make(chan struct{}),
	}

	id, err := t.demux.Open(demux.Entry{
		Resolve: func(rpc *wire.Rpc) { s.output.Send(rpc) },
		Reject:  func(err error) { s.output.SendError(err) },
	})
	if err != nil {
		return nil, err
	}
	s.id = id

	go s.watchAbort()

	if err := t.demux.Write(ctx, &wire.Rpc{Id: id, Header: initialHeader}); err != nil {
		t.demux.Unregister(id)
		close(s.stopAbortWatcher)
		return nil, err
	}

	return s, nil
}

func (s *StreamCall) watchAbort() {
	select {
	case <-s.ctx.Done():
		s.output.SendError(&goaterrors.Aborted{Cause: s.ctx.Err()})
	case <-s.stopAbortWatcher:
	}
}

// SendMsg serializes and writes msg as the next envelope of the call's
// upload side. A write failure is injected into the response sequence as
// an UploadFailure, in addition to being returned here so a caller
// driving its own upload loop observes it immediately too.
func (s *StreamCall) SendMsg(msg any) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.sendClosed {
		return errStreamClosed
	}

	data, err := s.codec.Marshal(msg)
	if err != nil {
		return err
	}
	if len(data) > s.t.opts.envelopeSizeLimit {
		err := fmt.Errorf("goat: message exceeds envelope size limit of %d bytes", s.t.opts.envelopeSizeLimit)
		s.output.SendError(&goaterrors.UploadFailure{Cause: err})
		return err
	}

	if err := s.t.demux.Write(s.ctx, &wire.Rpc{Id: s.id, Header: s.midHeader, Body: &wire.Body{Data: data}}); err != nil {
		s.output.SendError(&goaterrors.UploadFailure{Cause: err})
		return err
	}
	return nil
}

// CloseSend writes the terminal trailer envelope marking end-of-client-
// stream. It is idempotent: subsequent calls are no-ops.
func (s *StreamCall) CloseSend() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.sendClosed {
		return nil
	}
	s.sendClosed = true

	if err := s.t.demux.Write(s.ctx, &wire.Rpc{Id: s.id, Header: s.midHeader, Trailer: &wire.Trailer{}}); err != nil {
		s.output.SendError(&goaterrors.UploadFailure{Cause: err})
		return err
	}
	s.markClientClosed()
	return nil
}

func (s *StreamCall) markClientClosed() {
	s.trailerMu.Lock()
	s.clientClosed = true
	s.trailerMu.Unlock()
}

// RecvMsg drains the next item of the response sequence into reply. It
// returns io.EOF once the peer's trailer envelope has been consumed, or
// any other error the call terminated with (a ResponseStatus, an injected
// UploadFailure, or an Aborted from context cancellation). Cleanup runs
// exactly once, on the first terminal RecvMsg.
func (s *StreamCall) RecvMsg(reply any) error {
	item, err := s.output.Recv(s.ctx)
	if err != nil {
		s.cleanup()
		// Only reachable via ctx cancellation racing the abort watcher's
		// injected error, or the output sequence having been closed by
		// cleanup (a concurrent RecvMsg, or a RecvMsg after the call has
		// already terminated); either way this is caller-driven.
		return &goaterrors.Aborted{Cause: err}
	}
	if item.Err != nil {
		s.cleanup()
		return item.Err
	}

	rpc := item.Value
	switch {
	case rpc.Status != nil && rpc.Status.Code != 0:
		s.markServerClosed()
		s.cleanup()
		st := status.FromProto(&spbstatus.Status{
			Code:    int32(rpc.Status.Code),
			Message: rpc.Status.Message,
			Details: rpc.Status.Details,
		})
		return &goaterrors.ResponseStatus{Status: st}
	case rpc.Body != nil:
		if len(rpc.Body.Data) > s.t.opts.envelopeSizeLimit {
			return fmt.Errorf("goat: response body exceeds envelope size limit of %d bytes", s.t.opts.envelopeSizeLimit)
		}
		return s.codec.Unmarshal(rpc.Body.Data, reply)
	case rpc.Trailer != nil:
		s.trailerMu.Lock()
		s.trailer = kvToHeaders(rpc.Trailer.Metadata)
		s.serverClosed = true
		s.trailerMu.Unlock()
		s.cleanup()
		return io.EOF
	default:
		s.cleanup()
		return &goaterrors.ProtocolInvariantViolation{}
	}
}

func (s *StreamCall) markServerClosed() {
	s.trailerMu.Lock()
	s.serverClosed = true
	s.trailerMu.Unlock()
}

// Trailer returns the peer's trailer metadata, valid once RecvMsg has
// returned io.EOF.
func (s *StreamCall) Trailer() metadata.MD {
	s.trailerMu.Lock()
	defer s.trailerMu.Unlock()
	return s.trailer
}

// Context returns the context this call was opened with.
func (s *StreamCall) Context() context.Context { return s.ctx }

// cleanup runs exactly once: remove the demux entry, close the output
// sequence, stop the abort watcher, and - unless both sides closed
// cleanly - best-effort write an RST envelope.
func (s *StreamCall) cleanup() {
	s.cleanupOnce.Do(func() {
		s.t.demux.Unregister(s.id)
		s.output.Close()
		close(s.stopAbortWatcher)

		s.trailerMu.Lock()
		clean := s.serverClosed && s.clientClosed
		s.trailerMu.Unlock()

		if !clean {
			if err := s.t.demux.Write(context.Background(), &wire.Rpc{
				Id:     s.id,
				Header: s.midHeader,
				Reset:  &wire.Reset{Type: wire.RSTStream},
			}); err != nil {
				s.t.logRSTWriteFailure(s.id, err)
			}
		}
	})
}

package goat

import (
	"context"
	"fmt"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	spbstatus "google.golang.org/genproto/googleapis/rpc/status"

	"github.com/joeycumines/go-goat/goaterrors"
	"github.com/joeycumines/go-goat/internal/demux"
	"github.com/joeycumines/go-goat/wire"
)

// MessageCodec is the per-method serializer pair the framework layer
// resolves and hands to the adapter; this package never knows the
// concrete message type.
type MessageCodec struct {
	Marshal   func(msg any) ([]byte, error)
	Unmarshal func(data []byte, msg any) error
}

// UnaryRequest is the minimal shape the framework hands the adapter for a
// unary call. Cancellation and deadlines travel on ctx rather than as a
// separate abort-signal/timeout pair - see DESIGN.md for the rationale.
type UnaryRequest struct {
	Method  string
	Header  metadata.MD
	Message any
	Codec   MessageCodec
}

// UnaryResponse is what Transport.Unary returns on success.
type UnaryResponse struct {
	Header  metadata.MD
	Trailer metadata.MD
	Message any
}

type unaryResult struct {
	rpc *wire.Rpc
	err error
}

// Unary sends req as a single request envelope, awaits the single response
// envelope, and unmarshals it into reply (which Message on the returned
// UnaryResponse also points at).
func (t *Transport) Unary(ctx context.Context, req UnaryRequest, reply any) (*UnaryResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &goaterrors.Aborted{Cause: err}
	}

	data, err := req.Codec.Marshal(req.Message)
	if err != nil {
		return nil, err
	}
	if len(data) > t.opts.envelopeSizeLimit {
		return nil, fmt.Errorf("goat: request body exceeds envelope size limit of %d bytes", t.opts.envelopeSizeLimit)
	}

	resultCh := make(chan unaryResult, 1)
	id, err := t.demux.Open(demux.Entry{
		Resolve: func(rpc *wire.Rpc) {
			select {
			case resultCh <- unaryResult{rpc: rpc}:
			default:
			}
		},
		Reject: func(err error) {
			select {
			case resultCh <- unaryResult{err: err}:
			default:
			}
		},
	})
	if err != nil {
		return nil, err
	}
	defer t.demux.Unregister(id)

	rpc := &wire.Rpc{
		Id: id,
		Header: &wire.Header{
			Method:      req.Method,
			Headers:     headersToKV(req.Header),
			Destination: t.opts.destinationName,
			Source:      t.opts.sourceName,
		},
		Body:    &wire.Body{Data: data},
		Trailer: &wire.Trailer{}, // end-of-client-stream marker for unary
	}
	if err := t.demux.Write(ctx, rpc); err != nil {
		return nil, err
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return t.mapUnaryResponse(res.rpc, req.Codec, reply)
	case <-ctx.Done():
		// No RST is sent for an aborted unary call: the peer already saw
		// the request's trailer:{} and will time out or ignore it.
		return nil, &goaterrors.Aborted{Cause: ctx.Err()}
	}
}

func (t *Transport) mapUnaryResponse(rpc *wire.Rpc, codec MessageCodec, reply any) (*UnaryResponse, error) {
	switch {
	case rpc.Status != nil && rpc.Status.Code != 0:
		st := status.FromProto(&spbstatus.Status{
			Code:    int32(rpc.Status.Code),
			Message: rpc.Status.Message,
			Details: rpc.Status.Details,
		})
		return nil, &goaterrors.ResponseStatus{Status: st}
	case rpc.Body != nil:
		if len(rpc.Body.Data) > t.opts.envelopeSizeLimit {
			return nil, fmt.Errorf("goat: response body exceeds envelope size limit of %d bytes", t.opts.envelopeSizeLimit)
		}
		if err := codec.Unmarshal(rpc.Body.Data, reply); err != nil {
			return nil, err
		}
		return &UnaryResponse{
			Header:  kvToHeaders(headerHeaders(rpc.Header)),
			Trailer: kvToHeaders(trailerMetadata(rpc.Trailer)),
			Message: reply,
		}, nil
	default:
		return nil, &goaterrors.ProtocolInvariantViolation{}
	}
}

// Package goat turns one application-supplied, in-order, bidirectional,
// message-oriented channel into a multiplexed RPC transport: N concurrent
// unary and streaming calls share one ChannelIO, each tagged with an id the
// demultiplexer uses to route peer responses back to the right caller.
//
// The package does not implement an RPC framework - it has no service
// dispatch, no code generation, and no built-in serialization. It consumes
// UnaryRequest/StreamRequest shapes a framework layer resolves (method
// name, headers, per-method codec) and returns UnaryResponse/StreamCall
// values that layer maps back into its own client API.
package goat

import (
	"github.com/joeycumines/logiface"
	"google.golang.org/grpc"

	"github.com/joeycumines/go-goat/internal/demux"
	"github.com/joeycumines/go-goat/wire"
)

// Transport owns one ChannelIO and multiplexes calls over it. The zero
// value is not usable; construct with NewTransport.
type Transport struct {
	opts  *transportOptions
	demux *demux.Demux
}

// NewTransport constructs a Transport over channel. It panics if any
// option fails validation, mirroring inprocgrpc.NewChannel.
func NewTransport(channel wire.ChannelIO, opts ...Option) *Transport {
	cfg, err := resolveOptions(opts)
	if err != nil {
		panic("goat: " + err.Error())
	}

	t := &Transport{opts: cfg}
	t.demux = demux.New(channel, demux.Hooks{
		NextID:            cfg.nextID,
		OnReset:           t.logReset,
		OnReadError:       t.logReadError,
		OnDroppedEnvelope: t.logDroppedEnvelope,
	})
	return t
}

// Reset atomically replaces the underlying channel, rejecting every
// in-flight call with reason (or a default Aborted("reset")) and starting a
// fresh reader against newChannel.
func (t *Transport) Reset(newChannel wire.ChannelIO, reason error) {
	t.demux.Reset(newChannel, reason)
}

// ReadError returns the latched fatal channel-read error, if any. Once
// set, Unary and Stream fail immediately with it until the next Reset.
func (t *Transport) ReadError() error {
	return t.demux.ReadError()
}

// Interceptors returns the interceptor chains configured via
// WithInterceptors, for the framework layer above this Transport to apply
// around its own call runners. GOAT never invokes these itself.
func (t *Transport) Interceptors() ([]grpc.UnaryClientInterceptor, []grpc.StreamClientInterceptor) {
	return t.opts.unaryInterceptors, t.opts.streamInterceptors
}

func (t *Transport) logger() *logiface.Logger[logiface.Event] { return t.opts.logger }

func (t *Transport) logReset(reason error) {
	t.logger().Info().Err(reason).Log("goat: channel reset")
}

func (t *Transport) logReadError(err error) {
	t.logger().Warning().Err(err).Log("goat: channel read failed, latching")
}

func (t *Transport) logDroppedEnvelope(id uint64) {
	t.logger().Debug().Uint64("id", id).Log("goat: dropped envelope for unknown call id")
}

func (t *Transport) logRSTWriteFailure(id uint64, err error) {
	t.logger().Debug().Uint64("id", id).Err(err).Log("goat: best-effort RST write failed during stream cleanup")
}

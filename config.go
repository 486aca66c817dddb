package goat

import (
	"errors"

	"github.com/joeycumines/logiface"
	"google.golang.org/grpc"
)

// DefaultEnvelopeSizeLimit is the read/write cap, in bytes, applied to a
// single envelope's serialized body when no WithEnvelopeSizeLimit option is
// given.
const DefaultEnvelopeSizeLimit = 10_000_000

// transportOptions holds Transport configuration.
type transportOptions struct {
	logger            *logiface.Logger[logiface.Event]
	nextID            func() uint64
	unaryInterceptors []grpc.UnaryClientInterceptor
	streamInterceptors []grpc.StreamClientInterceptor
	destinationName   string
	sourceName        string
	envelopeSizeLimit int
}

// Option configures a Transport. Options are applied during construction by
// NewTransport.
type Option interface {
	applyOption(*transportOptions) error
}

// transportOptionImpl implements Option via a closure, mirroring
// inprocgrpc's channelOptionImpl.
type transportOptionImpl struct {
	fn func(*transportOptions) error
}

func (o *transportOptionImpl) applyOption(opts *transportOptions) error {
	return o.fn(opts)
}

// WithDestinationName sets the value included in every outgoing envelope's
// header.destination.
func WithDestinationName(name string) Option {
	return &transportOptionImpl{fn: func(opts *transportOptions) error {
		opts.destinationName = name
		return nil
	}}
}

// WithSourceName sets the value included in every outgoing envelope's
// header.source.
func WithSourceName(name string) Option {
	return &transportOptionImpl{fn: func(opts *transportOptions) error {
		opts.sourceName = name
		return nil
	}}
}

// WithInterceptors configures the interceptors passed through to the
// framework's call runners. This adapter invokes none of these itself; it
// only carries them for the framework layer above it to apply.
func WithInterceptors(unary []grpc.UnaryClientInterceptor, stream []grpc.StreamClientInterceptor) Option {
	return &transportOptionImpl{fn: func(opts *transportOptions) error {
		opts.unaryInterceptors = unary
		opts.streamInterceptors = stream
		return nil
	}}
}

// WithLogger configures the structured logger used for demux/streaming
// diagnostics. A nil logger (the default) disables logging entirely; every
// call site is nil-safe the way a *logiface.Logger already is.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &transportOptionImpl{fn: func(opts *transportOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithIDGenerator overrides call-id allocation. It exists as a test seam
// for deterministic ids; production callers should leave it unset and get
// the default dense, monotonically increasing sequence starting at zero.
func WithIDGenerator(gen func() uint64) Option {
	return &transportOptionImpl{fn: func(opts *transportOptions) error {
		if gen == nil {
			return errors.New("goat: id generator must not be nil")
		}
		opts.nextID = gen
		return nil
	}}
}

// WithEnvelopeSizeLimit overrides the default 10,000,000-byte read/write cap
// on a single envelope's serialized body.
func WithEnvelopeSizeLimit(bytes int) Option {
	return &transportOptionImpl{fn: func(opts *transportOptions) error {
		if bytes <= 0 {
			return errors.New("goat: envelope size limit must be positive")
		}
		opts.envelopeSizeLimit = bytes
		return nil
	}}
}

// resolveOptions applies opts to a default transportOptions.
func resolveOptions(opts []Option) (*transportOptions, error) {
	cfg := &transportOptions{
		envelopeSizeLimit: DefaultEnvelopeSizeLimit,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

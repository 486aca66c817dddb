// Package demux implements GOAT's demultiplexer: it owns the shared
// ChannelIO, allocates call ids, runs the single reader that survives
// each read by re-arming itself, and fans channel failure out to every
// outstanding call.
//
// It is grounded on go-inprocgrpc's Channel, which likewise owns a single
// piece of shared state (there, an event-loop-submitted RPCState map;
// here, an outstanding-calls map) mutated from exactly one place. Channel
// delegates that single-mutator invariant to an injected event loop
// (go-eventloop's Loop.Submit); a small multiplexing engine like this one
// does not justify pulling in an event loop built to host a scripting
// runtime's timers and microtasks. Instead Demux is a dedicated actor: a
// mutex guards next_id/outstanding/channel/read_error exactly the way
// go-inprocgrpc's loop guards RPCState, and a single reader goroutine
// plays the role of the loop's read side.
package demux

import (
	"context"
	"sync"

	"github.com/joeycumines/go-goat/goaterrors"
	"github.com/joeycumines/go-goat/wire"
)

// Entry is one outstanding call's resolver pair. Resolve is invoked with
// each envelope the peer sends for this call's id, in the order the peer
// emitted them (Reject is called at most once, and never after Resolve
// has removed the entry itself, since only a call driver removes its own
// entry).
type Entry struct {
	// Resolve is called on the reader goroutine for every envelope
	// addressed to this id. It must not block.
	Resolve func(*wire.Rpc)
	// Reject is called at most once if the channel fails (on the reader
	// goroutine) or the Demux is reset (on the goroutine calling Reset)
	// while this entry is still registered. It must not block.
	Reject func(error)
}

// Hooks are optional, nil-safe observability callbacks. They mirror
// go-inprocgrpc's optional stats-handler collaborators: Demux works
// correctly with a zero Hooks, and every field is checked for nil before
// use.
type Hooks struct {
	// OnReset is invoked after a Reset call has rejected every prior
	// outstanding entry, with the reason used.
	OnReset func(reason error)
	// OnReadError is invoked once when the reader latches a fatal
	// channel-read error.
	OnReadError func(err error)
	// OnDroppedEnvelope is invoked when an incoming envelope's id has no
	// matching outstanding entry (the call already ended on this side).
	OnDroppedEnvelope func(id uint64)
	// NextID overrides call-id allocation, if set. It exists as a test
	// seam for deterministic ids; nil selects the default dense,
	// monotonically increasing counter starting at zero.
	NextID func() uint64
}

func (h Hooks) onReset(reason error) {
	if h.OnReset != nil {
		h.OnReset(reason)
	}
}

func (h Hooks) onReadError(err error) {
	if h.OnReadError != nil {
		h.OnReadError(err)
	}
}

func (h Hooks) onDroppedEnvelope(id uint64) {
	if h.OnDroppedEnvelope != nil {
		h.OnDroppedEnvelope(id)
	}
}

// Demux owns the shared channel, the next-id counter, and the outstanding
// map. The zero value is not usable; construct with New.
type Demux struct {
	hooks Hooks

	mu          sync.Mutex
	channel     wire.ChannelIO
	outstanding map[uint64]Entry
	nextID      uint64
	readErr     error
	generation  uint64
}

// New constructs a Demux over channel and starts its reader.
func New(channel wire.ChannelIO, hooks Hooks) *Demux {
	d := &Demux{
		hooks:       hooks,
		channel:     channel,
		outstanding: make(map[uint64]Entry),
	}
	go d.reader(d.generation, channel)
	return d
}

// Open allocates the next id and registers entry for it in one atomic
// step, so that a concurrent Reset can never observe a half-registered
// call. It fails immediately, without allocating an id or registering
// entry, if a fatal read error is already latched.
func (d *Demux) Open(entry Entry) (id uint64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return 0, d.readErr
	}
	if d.hooks.NextID != nil {
		id = d.hooks.NextID()
	} else {
		id = d.nextID
		d.nextID++
	}
	d.outstanding[id] = entry
	return id, nil
}

// Unregister removes id from the outstanding map, if present. Call
// drivers call this from their own cleanup; it is a no-op if the entry
// was already removed (by Reset or by the reader observing a fatal
// error).
func (d *Demux) Unregister(id uint64) {
	d.mu.Lock()
	delete(d.outstanding, id)
	d.mu.Unlock()
}

// ReadError returns the latched fatal reader error, or nil if none is
// latched.
func (d *Demux) ReadError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readErr
}

// Write writes rpc on the current channel. It fails immediately with the
// latched read error, without touching the channel, if one is latched.
// Concurrent Write calls from independent call drivers are expected; the
// ChannelIO contract requires it to either serialize them internally or
// tolerate interleaved single-envelope writes.
func (d *Demux) Write(ctx context.Context, rpc *wire.Rpc) error {
	d.mu.Lock()
	if d.readErr != nil {
		err := d.readErr
		d.mu.Unlock()
		return err
	}
	ch := d.channel
	d.mu.Unlock()
	if err := ch.Write(ctx, rpc); err != nil {
		return &goaterrors.ChannelFailure{Cause: err}
	}
	return nil
}

// Reset atomically (from the Demux's perspective) rejects every entry
// currently in the outstanding map with reason (defaulting to
// ResetAborted if reason is nil), clears the map, swaps in newChannel,
// clears any latched read error, and starts a fresh reader against
// newChannel. The old channel's Done is invoked after the swap. Readers
// belonging to a channel that has since been replaced compare their
// captured generation against the current one and exit quietly instead of
// mutating state that no longer belongs to them.
func (d *Demux) Reset(newChannel wire.ChannelIO, reason error) {
	if reason == nil {
		reason = goaterrors.ResetAborted
	}

	d.mu.Lock()
	old := d.channel
	entries := d.outstanding
	d.outstanding = make(map[uint64]Entry)
	d.channel = newChannel
	d.readErr = nil
	d.generation++
	gen := d.generation
	d.mu.Unlock()

	for _, e := range entries {
		e.Reject(reason)
	}

	go d.reader(gen, newChannel)
	old.Done()
	d.hooks.onReset(reason)
}

// reader is the single perpetual read loop for one channel generation. It
// survives each successful read by looping rather than recursing, so it
// re-arms itself without unbounded stack growth.
func (d *Demux) reader(gen uint64, channel wire.ChannelIO) {
	for {
		rpc, err := channel.Read(context.Background())

		d.mu.Lock()
		if d.generation != gen {
			// This reader's channel was already replaced by Reset; the
			// failure or success below belongs to a channel nobody is
			// using any more.
			d.mu.Unlock()
			return
		}

		if err != nil {
			wrapped := &goaterrors.ChannelFailure{Cause: err}
			d.readErr = wrapped
			entries := d.outstanding
			d.outstanding = make(map[uint64]Entry)
			d.mu.Unlock()

			d.hooks.onReadError(wrapped)
			for _, e := range entries {
				e.Reject(wrapped)
			}
			return
		}

		entry, ok := d.outstanding[rpc.Id]
		d.mu.Unlock()

		if !ok {
			d.hooks.onDroppedEnvelope(rpc.Id)
			continue
		}
		entry.Resolve(rpc)
	}
}

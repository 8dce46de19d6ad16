package prelude

import (
	"context"
	"io"

	"github.com/tomruk/prelude-go/frame"
)

// Capability interfaces a source may satisfy beyond io.Reader. *Stream
// satisfies all of them; plain readers get the conservative behavior
// (no flow guard needed, relay-based remainder).
type (
	// Flowinger reports whether the source is already delivering
	// bytes to another consumer via callbacks.
	Flowinger interface{ Flowing() bool }

	// Pauser suspends flowing delivery so pull reads can take over.
	Pauser interface{ Pause() }

	// Unshifter re-buffers bytes at the front of the source.
	Unshifter interface{ Unshift(p []byte) }

	// Bufferer reports how many unread bytes the source has queued.
	Bufferer interface{ Buffered() int }

	// ErrCloser fails the source so no dangling reader holds it.
	ErrCloser interface{ CloseWithError(err error) }

	contextReader interface {
		ReadContext(ctx context.Context, p []byte) (int, error)
	}
)

const readChunkSize = 4096

// Parse extracts a frame header from src and returns the remainder:
// a reader positioned at the first body byte.
//
// The header bytes are consumed incrementally, so src may deliver them
// in chunks of any size. If the stream doesn't start with a configured
// marker, Parse returns an empty header and a remainder carrying the
// entire original input, probed bytes included — unless
// opts.RequirePrelude is set, in which case it fails with
// frame.ErrMarkerMismatch.
//
// When src supports re-buffering and is safe to hand back (see
// Unshifter, Flowinger, Bufferer), the remainder is src itself with the
// probed surplus unshifted; otherwise it is a relay *Stream fed from
// src, with src errors forwarded. The two are indistinguishable except
// for identity and copy cost.
//
// On any terminal error src is failed via CloseWithError when it
// supports that.
func Parse(ctx context.Context, src io.Reader, opts *Options) (frame.Header, io.Reader, error) {
	if opts == nil {
		opts = &Options{}
	}
	debug := opts.debugger().WithContext("prelude: Parse")
	if src == nil {
		return nil, nil, ErrInvalidSource
	}

	// Flow-control guard. Checked once, before the first read: a
	// source in flowing delivery is already losing bytes to another
	// consumer.
	if f, ok := src.(Flowinger); ok && f.Flowing() {
		p, canPause := src.(Pauser)
		if !opts.AutoPause || !canPause {
			// The other consumer still owns the source; don't fail it.
			return nil, nil, ErrConcurrentConsumption
		}
		debug.Log("pausing flowing source")
		p.Pause()
	}

	fopts, err := opts.frameOptions()
	if err != nil {
		return nil, nil, err
	}
	m := frame.NewMachine(fopts, opts.RequirePrelude)

	var (
		surplus []byte
		atEOF   bool
		buf     = make([]byte, readChunkSize)
	)
	for !m.Done() {
		n, rerr := readChunk(ctx, src, buf)
		if n > 0 {
			body, ferr := m.Feed(buf[:n])
			if ferr != nil {
				failSource(src, ferr)
				return nil, nil, ferr
			}
			if len(body) > 0 {
				// body aliases buf; the surplus must own its bytes.
				surplus = append([]byte(nil), body...)
			}
		}
		if rerr != nil {
			if rerr != io.EOF {
				failSource(src, rerr)
				return nil, nil, rerr
			}
			body, ferr := m.CloseEOF()
			if ferr != nil {
				failSource(src, ferr)
				return nil, nil, ferr
			}
			surplus = append(surplus, body...)
			atEOF = true
			break
		}
	}

	header := m.Header()
	debug.Log("header extracted", "matched", m.Matched(), "surplus", len(surplus))

	observeHeader(opts.OnHeader, header)

	return header, newRemainder(src, surplus, atEOF), nil
}

// readChunk issues one read, preferring the cancellable form.
func readChunk(ctx context.Context, src io.Reader, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if cr, ok := src.(contextReader); ok {
		return cr.ReadContext(ctx, p)
	}
	return src.Read(p)
}

// observeHeader hands the header to the caller's observer. The observer
// must not be able to affect the parse outcome, so panics are
// swallowed.
func observeHeader(cb func(frame.Header), header frame.Header) {
	if cb == nil {
		return
	}
	defer func() { _ = recover() }()
	cb(header)
}

// newRemainder builds the body-only stream.
//
// Zero-copy path: the probed surplus is pushed back into the source's
// own buffer and the source itself is the remainder. Eligible only when
// the source supports re-buffering, is not in flowing delivery, and has
// no bytes queued between the parse position and its buffer.
//
// Otherwise a relay stream owns the surplus and mirrors the source,
// errors included.
func newRemainder(src io.Reader, surplus []byte, atEOF bool) io.Reader {
	if u, ok := src.(Unshifter); ok && rebufferSafe(src) {
		u.Unshift(surplus)
		return src
	}

	relay := NewStream()
	// The surplus is owned, so hand it over without a copy.
	relay.Unshift(surplus)
	if atEOF {
		relay.Close()
	} else {
		go pump(src, relay)
	}
	return relay
}

func rebufferSafe(src io.Reader) bool {
	if f, ok := src.(Flowinger); ok && f.Flowing() {
		return false
	}
	if b, ok := src.(Bufferer); ok {
		return b.Buffered() == 0
	}
	// Cannot tell what is queued ahead; re-buffering could reorder.
	return false
}

func failSource(src io.Reader, err error) {
	if ec, ok := src.(ErrCloser); ok {
		ec.CloseWithError(err)
	}
}

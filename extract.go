package prelude

import (
	"io"

	"github.com/tomruk/prelude-go/frame"
	"github.com/tomruk/prelude-go/internal/sync"
)

// Extractor is the push-mode adapter around the incremental frame
// parser, for pipelines that deliver chunks via writes instead of pull
// reads. Chunks written to it advance the same state machine Parse
// uses; once the header is complete (or the mismatch fallback is
// taken), it is emitted exactly once through the callbacks, and all
// body bytes — buffered leftover first — are forwarded downstream.
//
// Backpressure follows from blocking semantics: a downstream Write that
// doesn't return keeps the Extractor's Write from accepting further
// upstream input.
type Extractor struct {
	mu        sync.Mutex
	machine   *frame.Machine
	dst       io.Writer
	callbacks *Callbacks
	debug     Debugger

	emitted bool
	closed  bool
}

// NewExtractor wraps dst. callbacks may be nil if the caller doesn't
// care about the header.
func NewExtractor(dst io.Writer, callbacks *Callbacks, opts *Options) (*Extractor, error) {
	if opts == nil {
		opts = &Options{}
	}
	if callbacks == nil {
		callbacks = NewCallbacks()
	}
	fopts, err := opts.frameOptions()
	if err != nil {
		return nil, err
	}
	return &Extractor{
		machine:   frame.NewMachine(fopts, opts.RequirePrelude),
		dst:       dst,
		callbacks: callbacks,
		debug:     opts.debugger().WithContext("prelude: Extractor"),
	}, nil
}

// Write feeds one upstream chunk. Header-field bytes are absorbed by
// the state machine; body bytes are forwarded to the downstream writer
// before Write returns.
func (e *Extractor) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, io.ErrClosedPipe
	}
	body, err := e.machine.Feed(p)
	if err != nil {
		e.closed = true
		e.callbacks.OnClose(err)
		return 0, err
	}
	e.emitMaybe()
	if len(body) > 0 {
		if _, err := e.dst.Write(body); err != nil {
			e.closed = true
			e.callbacks.OnClose(err)
			return 0, err
		}
	}
	return len(p), nil
}

// Close signals end of upstream input. Input ending mid-field surfaces
// frame.ErrTruncated (see frame.Machine.CloseEOF for the non-strict
// short-input fallback). The downstream writer is closed if it supports
// that.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	body, err := e.machine.CloseEOF()
	if err != nil {
		e.callbacks.OnClose(err)
		return err
	}
	e.emitMaybe()
	if len(body) > 0 {
		if _, err := e.dst.Write(body); err != nil {
			e.callbacks.OnClose(err)
			return err
		}
	}
	e.callbacks.OnClose(nil)
	if c, ok := e.dst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Header returns the extracted header once the machine has reached the
// body. ok is false while header bytes are still being accumulated.
func (e *Extractor) Header() (header frame.Header, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.machine.Done() {
		return nil, false
	}
	return e.machine.Header(), true
}

func (e *Extractor) emitMaybe() {
	if e.emitted || !e.machine.Done() {
		return
	}
	e.emitted = true
	header := e.machine.Header()
	e.debug.Log("header emitted", "matched", e.machine.Matched())
	observeHeader(e.callbacks.OnHeader, header)
}

package prelude

import (
	"context"
	"io"

	"github.com/tomruk/prelude-go/internal/sync"
)

// DefaultHighWater is the buffered-byte threshold above which Write
// blocks until a reader drains the stream.
const DefaultHighWater = 16 * 1024

// Stream is an in-memory byte pipe satisfying the source and sink
// contracts of the parser: blocking pull reads, writes with a
// high-water-mark backpressure contract, re-buffering of unconsumed
// bytes (Unshift), an error channel, and an optional push-delivery
// (flowing) mode driven by a callback.
//
// All methods are safe for concurrent use.
type Stream struct {
	mu        sync.Mutex
	chunks    [][]byte
	buffered  int
	highWater int

	closed bool
	err    error

	onData  DataCallback
	flowing bool
	// flowGen invalidates drain goroutines: each started loop holds
	// the generation it was born with and exits once it goes stale,
	// so Pause followed by an immediate Resume can never leave two
	// loops draining the same stream.
	flowGen int

	// wake is closed and replaced on every state change; waiters grab
	// it under the lock and block on it unlocked.
	wake chan struct{}
}

// DataCallback receives chunks while a stream is in flowing mode.
type DataCallback func(chunk []byte)

func NewStream() *Stream {
	return NewStreamHighWater(DefaultHighWater)
}

func NewStreamHighWater(highWater int) *Stream {
	if highWater <= 0 {
		highWater = DefaultHighWater
	}
	return &Stream{
		highWater: highWater,
		wake:      make(chan struct{}),
	}
}

// NewStreamReader pumps r into a new Stream on a goroutine, forwarding
// its terminal error. Use it to parse from a plain reader while keeping
// Stream semantics (cancellation, error channel).
func NewStreamReader(r io.Reader) *Stream {
	s := NewStream()
	go pump(r, s)
	return s
}

func (s *Stream) broadcastLocked() {
	close(s.wake)
	s.wake = make(chan struct{})
}

// Read blocks until at least one byte is buffered, the stream is
// closed (io.EOF) or failed. Buffered bytes are drained before the
// terminal condition — io.EOF on a clean close, the error otherwise —
// is reported.
func (s *Stream) Read(p []byte) (int, error) {
	return s.ReadContext(context.Background(), p)
}

// ReadContext is Read with cancellation.
func (s *Stream) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	for {
		if s.buffered > 0 {
			n := s.popLocked(p)
			s.broadcastLocked()
			s.mu.Unlock()
			return n, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return 0, err
		}
		if s.closed {
			s.mu.Unlock()
			return 0, io.EOF
		}
		wake := s.wake
		s.mu.Unlock()
		select {
		case <-wake:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		s.mu.Lock()
	}
}

func (s *Stream) popLocked(p []byte) int {
	n := 0
	for n < len(p) && len(s.chunks) > 0 {
		c := s.chunks[0]
		w := copy(p[n:], c)
		n += w
		if w == len(c) {
			s.chunks = s.chunks[1:]
		} else {
			s.chunks[0] = c[w:]
		}
	}
	s.buffered -= n
	return n
}

// Write buffers a copy of p. It blocks while the buffered byte count is
// at or above the high-water mark, which is the stream's backpressure
// signal to producers.
func (s *Stream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	for {
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return 0, err
		}
		if s.closed {
			s.mu.Unlock()
			return 0, io.ErrClosedPipe
		}
		if s.buffered < s.highWater {
			break
		}
		wake := s.wake
		s.mu.Unlock()
		<-wake
		s.mu.Lock()
	}
	c := make([]byte, len(p))
	copy(c, p)
	s.chunks = append(s.chunks, c)
	s.buffered += len(c)
	s.broadcastLocked()
	s.mu.Unlock()
	return len(p), nil
}

// Unshift puts bytes back at the front of the buffer so the next read
// observes them first. Unlike Write it takes ownership of p without
// copying and never blocks; it is meant for returning probed bytes.
func (s *Stream) Unshift(p []byte) {
	if len(p) == 0 {
		return
	}
	s.mu.Lock()
	s.chunks = append([][]byte{p}, s.chunks...)
	s.buffered += len(p)
	s.broadcastLocked()
	s.mu.Unlock()
}

// Buffered reports the number of unread bytes currently queued.
func (s *Stream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffered
}

/// OnData switches the stream into flowing mode: chunks are delivered to
// cb on a drain goroutine as they arrive, bypassing Read. A nil cb
// pauses delivery.
func (s *Stream) OnData(cb DataCallback) {
	s.mu.Lock()
	s.onData = cb
	var gen int
	start := cb != nil && !s.flowing && !s.closed && s.err == nil
	if start {
		s.flowing = true
		s.flowGen++
		gen = s.flowGen
	}
	if cb == nil {
		s.flowing = false
	}
	s.broadcastLocked()
	s.mu.Unlock()
	if start {
		go s.flowLoop(gen)
	}
}

// Flowing reports whether a drain goroutine is actively delivering
// chunks to a callback. A flowing stream must not be read from
/// concurrently: bytes would be split between the two consumers.
func (s *Stream) Flowing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flowing
}

// Pause suspends flowing delivery. Buffered and future bytes stay
// queued for pull reads until Resume or another OnData call.
func (s *Stream) Pause() {
	s.mu.Lock()
	s.flowing = false
	s.broadcastLocked()
	s.mu.Unlock()
}

// Resume restarts flowing delivery with the previously set callback.
func (s *Stream) Resume() {
	s.mu.Lock()
	var gen int
	start := s.onData != nil && !s.flowing && !s.closed && s.err == nil
	if start {
		s.flowing = true
		s.flowGen++
		gen = s.flowGen
		s.broadcastLocked()
	}
	s.mu.Unlock()
	if start {
		go s.flowLoop(gen)
	}
}

func (s *Stream) flowLoop(gen int) {
	for {
		s.mu.Lock()
		if !s.flowing || gen != s.flowGen {
			s.mu.Unlock()
			return
		}
		if s.buffered == 0 {
			if s.closed || s.err != nil {
				s.flowing = false
				s.mu.Unlock()
				return
			}
			wake := s.wake
			s.mu.Unlock()
			<-wake
			continue
		}
		chunk := s.chunks[0]
		s.chunks = s.chunks[1:]
		s.buffered -= len(chunk)
		cb := s.onData
		s.broadcastLocked()
		s.mu.Unlock()
		cb(chunk)
	}
}

// Close marks the end of input. Pending bytes remain readable; readers
// then observe io.EOF.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.broadcastLocked()
	s.mu.Unlock()
	return nil
}

// CloseWithError fails the stream. Bytes buffered before the failure
// stay readable; once drained, reads observe err instead of a clean
// EOF. Writes fail immediately. A nil err behaves like Close.
func (s *Stream) CloseWithError(err error) {
	if err == nil || err == io.EOF {
		s.Close()
		return
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.closed = true
	s.broadcastLocked()
	s.mu.Unlock()
}

// Err returns the terminal error, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// pump copies src into dst until EOF or error, carrying the terminal
// condition over to dst.
func pump(src io.Reader, dst *Stream) {
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				dst.Close()
			} else {
				dst.CloseWithError(err)
			}
			return
		}
	}
}

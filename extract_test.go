package prelude

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomruk/prelude-go/frame"
	"github.com/tomruk/prelude-go/internal/utils"
)

func TestExtractor(t *testing.T) {
	body := []byte("Hello world!")
	input := encodeFrame(t, frame.Header{"contentType": "text/plain"}, body)

	var (
		sink        []byte
		headerSeen  bool
		headerFirst = true
	)
	callbacks := NewCallbacks()
	callbacks.Set(func(header frame.Header) {
		headerSeen = true
		contentType, _ := header.String("contentType")
		assert.Equal(t, "text/plain", contentType)
	}, nil)

	dst := writerFunc(func(p []byte) (int, error) {
		if !headerSeen {
			headerFirst = false
		}
		sink = append(sink, p...)
		return len(p), nil
	})

	e, err := NewExtractor(dst, callbacks, nil)
	require.NoError(t, err)

	// One byte at a time: the machine must absorb header bytes and
	// forward only body bytes.
	for _, b := range input {
		n, err := e.Write([]byte{b})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
	require.NoError(t, e.Close())

	assert.True(t, headerSeen)
	assert.True(t, headerFirst, "header must be emitted before any body byte")
	assert.Equal(t, body, sink)

	header, ok := e.Header()
	require.True(t, ok)
	assert.Equal(t, 1, header.Version())
}

func TestExtractorFallback(t *testing.T) {
	input := []byte("XXXX never a frame")

	var sink []byte
	var emitted []frame.Header
	callbacks := NewCallbacks()
	callbacks.Set(func(header frame.Header) {
		emitted = append(emitted, header)
	}, nil)

	e, err := NewExtractor(writerFunc(func(p []byte) (int, error) {
		sink = append(sink, p...)
		return len(p), nil
	}), callbacks, nil)
	require.NoError(t, err)

	for _, b := range input {
		_, err := e.Write([]byte{b})
		require.NoError(t, err)
	}
	require.NoError(t, e.Close())

	require.Len(t, emitted, 1, "the empty header is emitted exactly once")
	assert.Equal(t, frame.Header{}, emitted[0])
	assert.Equal(t, input, sink)
}

func TestExtractorStrict(t *testing.T) {
	e, err := NewExtractor(io.Discard, nil, &Options{RequirePrelude: true})
	require.NoError(t, err)

	_, err = e.Write([]byte("XXXX"))
	assert.Equal(t, frame.ErrMarkerMismatch, err)

	// Terminal: the adapter accepts nothing further.
	_, err = e.Write([]byte("more"))
	assert.Equal(t, io.ErrClosedPipe, err)
}

func TestExtractorTruncated(t *testing.T) {
	input := encodeFrame(t, frame.Header{"k": "v"}, nil)

	var closeErr error
	callbacks := NewCallbacks()
	callbacks.Set(nil, func(err error) { closeErr = err })

	e, err := NewExtractor(io.Discard, callbacks, nil)
	require.NoError(t, err)

	_, err = e.Write(input[:6])
	require.NoError(t, err)
	assert.Equal(t, frame.ErrTruncated, e.Close())
	assert.Equal(t, frame.ErrTruncated, closeErr)
}

func TestExtractorObserverPanicSwallowed(t *testing.T) {
	input := encodeFrame(t, frame.Header{"k": "v"}, []byte("body"))

	callbacks := NewCallbacks()
	callbacks.Set(func(header frame.Header) { panic("observer bug") }, nil)

	var sink []byte
	e, err := NewExtractor(writerFunc(func(p []byte) (int, error) {
		sink = append(sink, p...)
		return len(p), nil
	}), callbacks, nil)
	require.NoError(t, err)

	_, err = e.Write(input)
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.Equal(t, []byte("body"), sink)
}

// A downstream writer that doesn't accept a write holds up the
// extractor, which in turn holds up the upstream producer.
func TestExtractorBackpressure(t *testing.T) {
	body := make([]byte, 64)
	input := encodeFrame(t, frame.Header{"k": "v"}, body)

	dst := NewStreamHighWater(16)
	e, err := NewExtractor(dst, nil, nil)
	require.NoError(t, err)

	// The first chunk saturates the downstream buffer; the second one
	// must block until a reader drains it.
	split := len(input) - 32
	_, err = e.Write(input[:split])
	require.NoError(t, err)

	unblocked := make(chan struct{})
	go func() {
		defer close(unblocked)
		_, err := e.Write(input[split:])
		assert.NoError(t, err)
	}()

	select {
	case <-unblocked:
		t.Fatal("write should have blocked on the saturated downstream")
	case <-time.After(100 * time.Millisecond):
	}

	out := make([]byte, 0, len(body))
	buf := make([]byte, 16)
	for len(out) < len(body) {
		n, err := dst.Read(buf)
		require.NoError(t, err)
		out = append(out, buf[:n]...)
	}

	select {
	case <-unblocked:
	case <-time.After(utils.DefaultTestWaitTimeout):
		t.Fatal("write never unblocked")
	}
	assert.Equal(t, body, out)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

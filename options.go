package prelude

import (
	"github.com/tomruk/prelude-go/frame"
	"github.com/tomruk/prelude-go/frame/serializer"
)

// Options configures parsing and encoding. The zero value means: the
// default marker, the default maximum payload size, version 1, stdlib
// JSON, graceful degradation on marker mismatch.
type Options struct {
	// Markers overrides the accepted marker tokens. Each must be
	// exactly 4 bytes; the first one is used for encoding.
	Markers [][]byte

	// MaxPayload bounds the encoded payload size.
	// 0 means frame.DefaultMaxPayload.
	MaxPayload int

	// Version is written into the reserved version key on encode.
	// 0 means frame.DefaultVersion.
	Version int

	// Serializer selects the JSON implementation. Nil means
	// encoding/json; see frame/serializer/fast for the
	// platform-optimal choice.
	Serializer serializer.JSONSerializer

	// RequirePrelude turns the marker-mismatch fallback into a hard
	// frame.ErrMarkerMismatch.
	RequirePrelude bool

	// AutoPause lets Parse take over a source that is already in
	// flowing delivery by pausing it, instead of failing with
	// ErrConcurrentConsumption.
	AutoPause bool

	// OnHeader is invoked with the decoded header before the
	// remainder is constructed. Panics from it are swallowed; it
	// cannot affect the parse outcome.
	OnHeader func(header frame.Header)

	// Debugger receives parser diagnostics. Nil means no output.
	Debugger Debugger
}

func (o *Options) frameOptions() (*frame.Options, error) {
	markers, err := frame.NewMarkerSet(o.Markers...)
	if err != nil {
		return nil, err
	}
	return &frame.Options{
		Markers:    markers,
		MaxPayload: o.MaxPayload,
		Version:    o.Version,
		Serializer: o.Serializer,
	}, nil
}

func (o *Options) debugger() Debugger {
	if o.Debugger == nil {
		return NewNoopDebugger()
	}
	return o.Debugger
}

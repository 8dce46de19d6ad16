// Package prelude implements a framing protocol that prepends a small
// self-describing metadata header to an otherwise opaque byte stream:
// a fixed 4-byte marker, a big-endian payload length and a JSON object
// payload, followed by the unbounded body.
//
// The point of the package is the incremental parser: Parse (pull) and
// Extractor (push) both drive one state machine that is correct no
// matter how chunk boundaries fall relative to the wire layout, and
// hand the body back as a stream without buffering it. Streams that
// don't carry a marker degrade gracefully — the caller gets an empty
// header and the input back, byte for byte.
//
// The header travels inside a trusted boundary; nothing here
// authenticates or encrypts it.
package prelude

import "github.com/tomruk/prelude-go/frame"

// Encode produces the frame bytes (marker, length, payload) for the
// given header. The body is appended or streamed by the caller.
func Encode(header frame.Header, opts *Options) ([]byte, error) {
	fopts, err := frameOptionsOf(opts)
	if err != nil {
		return nil, err
	}
	return fopts.Encode(header)
}

// Decode extracts the header from a fully materialized buffer and
// returns the offset at which the body begins. For streaming input use
// Parse or Extractor instead.
func Decode(buf []byte, opts *Options) (frame.Header, int, error) {
	fopts, err := frameOptionsOf(opts)
	if err != nil {
		return nil, 0, err
	}
	return fopts.Decode(buf)
}

// SizeOf computes len(Encode(header, opts)) without emitting bytes.
func SizeOf(header frame.Header, opts *Options) (int, error) {
	fopts, err := frameOptionsOf(opts)
	if err != nil {
		return 0, err
	}
	return fopts.SizeOf(header)
}

func frameOptionsOf(opts *Options) (*frame.Options, error) {
	if opts == nil {
		opts = &Options{}
	}
	return opts.frameOptions()
}

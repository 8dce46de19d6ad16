// Package frame defines the prelude wire grammar: a fixed marker, a
// big-endian payload length and a JSON object payload, prepended to an
// otherwise opaque body.
//
// Wire layout:
//
//	offset 0   marker, 4 bytes, exact match against the configured set
//	offset 4   length, 4 bytes, unsigned big-endian, 0 < length <= max
//	offset 8   payload, `length` bytes, UTF-8 JSON object
//	offset 8+length   body, opaque, not part of the frame
package frame

import (
	"encoding/binary"

	"github.com/tomruk/prelude-go/frame/serializer"
	"github.com/tomruk/prelude-go/frame/serializer/stdjson"
)

const (
	lengthLen = 4
	fixedLen  = MarkerLen + lengthLen

	// DefaultMaxPayload is the maximum encoded payload size unless
	// the caller configures another bound.
	DefaultMaxPayload = 16384
)

// Options configures encoding and decoding. The zero value (or nil)
// means: DefaultMarker, DefaultMaxPayload, DefaultVersion, stdlib JSON.
type Options struct {
	Markers    *MarkerSet
	MaxPayload int
	Version    int
	Serializer serializer.JSONSerializer
}

func withDefaults(opts *Options) *Options {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Markers == nil {
		o.Markers, _ = NewMarkerSet()
	}
	if o.MaxPayload == 0 {
		o.MaxPayload = DefaultMaxPayload
	}
	if o.Version == 0 {
		o.Version = DefaultVersion
	}
	if o.Serializer == nil {
		o.Serializer = stdjson.New()
	}
	return &o
}

// Encode produces `marker ‖ length ‖ payload` for the given header with
// the version key injected. The body is not part of the frame; callers
// append or stream it separately.
func (o *Options) Encode(header Header) ([]byte, error) {
	opts := withDefaults(o)
	payload, err := marshalPayload(header, opts)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, fixedLen+len(payload))
	copy(buf, opts.Markers.Primary())
	binary.BigEndian.PutUint32(buf[MarkerLen:], uint32(len(payload)))
	copy(buf[fixedLen:], payload)
	return buf, nil
}

// SizeOf computes len(Encode(header)) without emitting bytes. It runs
// the same validation as Encode.
func (o *Options) SizeOf(header Header) (int, error) {
	opts := withDefaults(o)
	payload, err := marshalPayload(header, opts)
	if err != nil {
		return 0, err
	}
	return fixedLen + len(payload), nil
}

// Decode extracts the header from a fully materialized buffer and
// returns the offset at which the body begins.
func (o *Options) Decode(buf []byte) (Header, int, error) {
	opts := withDefaults(o)
	if len(buf) < fixedLen {
		return nil, 0, ErrTruncated
	}
	if !opts.Markers.Contains(buf[:MarkerLen]) {
		return nil, 0, ErrMarkerMismatch
	}
	length := binary.BigEndian.Uint32(buf[MarkerLen:fixedLen])
	if err := checkLength(length, opts.MaxPayload); err != nil {
		return nil, 0, err
	}
	end := fixedLen + int(length)
	if len(buf) < end {
		return nil, 0, ErrTruncated
	}
	header, err := unmarshalPayload(buf[fixedLen:end], opts)
	if err != nil {
		return nil, 0, err
	}
	return header, end, nil
}

// Encode is Options.Encode with default options.
func Encode(header Header) ([]byte, error) { return (*Options)(nil).Encode(header) }

// Decode is Options.Decode with default options.
func Decode(buf []byte) (Header, int, error) { return (*Options)(nil).Decode(buf) }

// SizeOf is Options.SizeOf with default options.
func SizeOf(header Header) (int, error) { return (*Options)(nil).SizeOf(header) }

func checkLength(length uint32, maxPayload int) error {
	if length == 0 {
		return ErrEmptyPayload
	}
	if int64(length) > int64(maxPayload) {
		return ErrPayloadTooLarge
	}
	return nil
}

func marshalPayload(header Header, opts *Options) ([]byte, error) {
	if _, ok := header[VersionKey]; ok {
		return nil, ErrReservedKey
	}
	merged := make(map[string]any, len(header)+1)
	for k, v := range header {
		if err := checkValue(v); err != nil {
			return nil, err
		}
		merged[k] = v
	}
	merged[VersionKey] = opts.Version

	payload, err := opts.Serializer.Marshal(merged)
	if err != nil {
		return nil, ErrNotSerializable
	}
	if len(payload) > opts.MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	return payload, nil
}

func unmarshalPayload(payload []byte, opts *Options) (Header, error) {
	var v any
	if err := opts.Serializer.Unmarshal(payload, &v); err != nil {
		return nil, &PayloadParseError{err: err}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrInvalidPayloadType
	}
	return Header(m), nil
}

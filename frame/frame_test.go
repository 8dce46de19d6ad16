package frame

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomruk/prelude-go/frame/serializer"
	"github.com/tomruk/prelude-go/frame/serializer/fast"
	gojson "github.com/tomruk/prelude-go/frame/serializer/go-json"
)

func mustEncode(t *testing.T, header Header, opts *Options) []byte {
	t.Helper()
	buf, err := opts.Encode(header)
	require.NoError(t, err)
	return buf
}

func TestRoundTrip(t *testing.T) {
	body := []byte("Hello world!")
	buf := mustEncode(t, Header{"contentType": "text/plain"}, nil)
	buf = append(buf, body...)

	header, offset, err := Decode(buf)
	require.NoError(t, err)

	contentType, ok := header.String("contentType")
	assert.True(t, ok)
	assert.Equal(t, "text/plain", contentType)
	assert.Equal(t, 1, header.Version())
	assert.Equal(t, body, buf[offset:])
}

func TestRoundTripSerializers(t *testing.T) {
	serializers := map[string]serializer.JSONSerializer{
		"stdjson": nil, // the default
		"go-json": gojson.New(nil, nil),
		"fast":    fast.New(),
	}

	for name, s := range serializers {
		t.Run(name, func(t *testing.T) {
			opts := &Options{Serializer: s}
			header := Header{
				"contentType": "application/octet-stream",
				"count":       float64(42),
				"tags":        []any{"a", "b"},
				"nested":      map[string]any{"ok": true},
				"none":        nil,
			}
			buf := mustEncode(t, header, opts)

			decoded, offset, err := opts.Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, len(buf), offset)

			for k, v := range header {
				assert.Equal(t, v, decoded[k], "key %q doesn't match", k)
			}
			assert.Equal(t, 1, decoded.Version())
		})
	}
}

func TestSizeOf(t *testing.T) {
	headers := []Header{
		{},
		{"contentType": "text/plain"},
		{"a": float64(1), "b": []any{true, nil}, "c": map[string]any{"d": "e"}},
	}
	for _, header := range headers {
		size, err := SizeOf(header)
		require.NoError(t, err)
		buf := mustEncode(t, header, nil)
		assert.Equal(t, len(buf), size)
	}
}

func TestDecodeZeroLength(t *testing.T) {
	buf := make([]byte, fixedLen)
	copy(buf, DefaultMarker)
	binary.BigEndian.PutUint32(buf[MarkerLen:], 0)

	_, _, err := Decode(buf)
	assert.Equal(t, ErrEmptyPayload, err, "a zero length field is a protocol violation, not an empty header")
}

func TestDecodeTruncated(t *testing.T) {
	buf := mustEncode(t, Header{"contentType": "text/plain"}, nil)

	// Shorter than marker+length.
	_, _, err := Decode(buf[:6])
	assert.Equal(t, ErrTruncated, err)

	// Complete fixed part, incomplete payload.
	_, _, err = Decode(buf[:len(buf)-1])
	assert.Equal(t, ErrTruncated, err)
}

func TestDecodeMarkerMismatch(t *testing.T) {
	buf := mustEncode(t, Header{}, nil)
	copy(buf, "XXXX")

	_, _, err := Decode(buf)
	assert.Equal(t, ErrMarkerMismatch, err)
}

func TestDecodeLengthTooLarge(t *testing.T) {
	buf := make([]byte, fixedLen)
	copy(buf, DefaultMarker)
	binary.BigEndian.PutUint32(buf[MarkerLen:], DefaultMaxPayload+1)

	_, _, err := Decode(buf)
	assert.Equal(t, ErrPayloadTooLarge, err)
}

func TestDecodeMalformedPayload(t *testing.T) {
	payload := []byte(`{"v":1`)
	buf := make([]byte, fixedLen+len(payload))
	copy(buf, DefaultMarker)
	binary.BigEndian.PutUint32(buf[MarkerLen:], uint32(len(payload)))
	copy(buf[fixedLen:], payload)

	_, _, err := Decode(buf)
	var parseErr *PayloadParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestDecodeNonObjectPayload(t *testing.T) {
	for _, payload := range []string{`[1,2,3]`, `"text"`, `42`, `null`, `true`} {
		buf := make([]byte, fixedLen+len(payload))
		copy(buf, DefaultMarker)
		binary.BigEndian.PutUint32(buf[MarkerLen:], uint32(len(payload)))
		copy(buf[fixedLen:], payload)

		_, _, err := Decode(buf)
		assert.Equal(t, ErrInvalidPayloadType, err, "payload %s should be rejected", payload)
	}
}

func TestEncodeReservedKey(t *testing.T) {
	_, err := Encode(Header{"v": 2})
	assert.Equal(t, ErrReservedKey, err)

	_, err = SizeOf(Header{"v": 2})
	assert.Equal(t, ErrReservedKey, err)
}

func TestEncodeNotSerializable(t *testing.T) {
	headers := []Header{
		{"ch": make(chan int)},
		{"fn": func() {}},
		{"nan": math.NaN()},
		{"inf": math.Inf(1)},
		{"nested": map[string]any{"bad": math.Inf(-1)}},
		{"list": []any{1, math.NaN()}},
	}
	for _, header := range headers {
		_, err := Encode(header)
		assert.Equal(t, ErrNotSerializable, err)
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	opts := &Options{MaxPayload: 32}
	_, err := opts.Encode(Header{"pad": string(make([]byte, 64))})
	assert.Equal(t, ErrPayloadTooLarge, err)
}

func TestEncodeVersionOverride(t *testing.T) {
	opts := &Options{Version: 7}
	buf := mustEncode(t, Header{}, opts)

	header, _, err := opts.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 7, header.Version())
}

func TestCustomMarkers(t *testing.T) {
	markers, err := NewMarkerSet([]byte("AAAA"), []byte("BBBB"))
	require.NoError(t, err)
	opts := &Options{Markers: markers}

	buf := mustEncode(t, Header{}, opts)
	assert.Equal(t, []byte("AAAA"), buf[:MarkerLen], "encoding must use the first marker")

	// Decoding accepts any member.
	_, _, err = opts.Decode(buf)
	require.NoError(t, err)
	copy(buf, "BBBB")
	_, _, err = opts.Decode(buf)
	require.NoError(t, err)

	// But not the default one.
	copy(buf, DefaultMarker)
	_, _, err = opts.Decode(buf)
	assert.Equal(t, ErrMarkerMismatch, err)
}

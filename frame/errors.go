package frame

import "fmt"

var (
	ErrTruncated          = fmt.Errorf("frame: truncated input")
	ErrMarkerMismatch     = fmt.Errorf("frame: marker mismatch")
	ErrInvalidMarker      = fmt.Errorf("frame: marker must be exactly %d bytes", MarkerLen)
	ErrEmptyPayload       = fmt.Errorf("frame: length field is zero")
	ErrPayloadTooLarge    = fmt.Errorf("frame: payload exceeds maximum size")
	ErrInvalidPayloadType = fmt.Errorf("frame: payload is not a JSON object")
	ErrNotSerializable    = fmt.Errorf("frame: header value is not JSON-serializable")
	ErrReservedKey        = fmt.Errorf("frame: header key %q is reserved", VersionKey)
)

// PayloadParseError is returned when a frame carries a valid marker and
// length but the payload bytes are not valid JSON. The serializer's own
// error is kept as the cause.
type PayloadParseError struct {
	err error
}

func (e *PayloadParseError) Error() string {
	return "frame: malformed payload: " + e.err.Error()
}

func (e *PayloadParseError) Unwrap() error { return e.err }

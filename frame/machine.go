package frame

import "encoding/binary"

type stage int

const (
	stageMagic stage = iota
	stageLength
	stagePayload
	stageBody
)

func (s stage) String() string {
	switch s {
	case stageMagic:
		return "MAGIC"
	case stageLength:
		return "LENGTH"
	case stagePayload:
		return "PAYLOAD"
	case stageBody:
		return "BODY"
	}
	return "<invalid>"
}

// Machine is the incremental frame parser. It consumes a byte stream
// delivered in arbitrarily sized chunks and extracts the header exactly
// once, regardless of where chunk boundaries fall relative to the
// marker/length/payload layout. A stage only advances when the bytes
// seen so far satisfy its need; short chunks are buffered across calls.
//
// A Machine is owned by a single in-flight parse and is not safe for
// concurrent use.
type Machine struct {
	opts   *Options
	strict bool

	stage stage
	need  int

	// buf holds bytes received but not yet consumed by the current
	// stage. It stays nil on the fast path where each chunk alone
	// satisfies the stage.
	buf []byte

	header  Header
	matched bool
	err     error
}

// NewMachine returns a machine in the MAGIC stage. With strict set, a
// marker mismatch is a hard error instead of the empty-header fallback.
func NewMachine(opts *Options, strict bool) *Machine {
	return &Machine{
		opts:   withDefaults(opts),
		strict: strict,
		stage:  stageMagic,
		need:   MarkerLen,
	}
}

// Feed advances the machine with one chunk and returns any body bytes
// that are ready to be forwarded. The returned slice may alias chunk or
// the machine's internal buffer; it is valid until the next call.
//
// Once the machine reaches BODY, Feed is a pure pass-through.
func (m *Machine) Feed(chunk []byte) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.stage == stageBody {
		return chunk, nil
	}

	// Fast path: nothing buffered, parse the chunk in place.
	data := chunk
	owned := len(m.buf) != 0
	if owned {
		m.buf = append(m.buf, chunk...)
		data = m.buf
	}

	for m.stage != stageBody {
		if len(data) < m.need {
			if owned {
				m.buf = data
			} else {
				m.buf = append([]byte(nil), data...)
			}
			return nil, nil
		}

		switch m.stage {
		case stageMagic:
			if m.opts.Markers.Contains(data[:MarkerLen]) {
				data = data[MarkerLen:]
				m.stage = stageLength
				m.need = lengthLen
				continue
			}
			if m.strict {
				m.err = ErrMarkerMismatch
				return nil, m.err
			}
			// No frame present: the probed bytes and everything
			// after them are body.
			m.header = Header{}
			m.stage = stageBody
			m.need = 0

		case stageLength:
			length := binary.BigEndian.Uint32(data[:lengthLen])
			if err := checkLength(length, m.opts.MaxPayload); err != nil {
				m.err = err
				return nil, m.err
			}
			data = data[lengthLen:]
			m.stage = stagePayload
			m.need = int(length)

		case stagePayload:
			header, err := unmarshalPayload(data[:m.need], m.opts)
			if err != nil {
				m.err = err
				return nil, m.err
			}
			data = data[m.need:]
			m.header = header
			m.matched = true
			m.stage = stageBody
			m.need = 0
		}
	}

	m.buf = nil
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// CloseEOF signals end of input. Reaching it mid-field is a Truncated
// condition, with one exception: in non-strict mode, input that ends
// before a full marker could be read degrades to the mismatch fallback,
// so that markerless streams round-trip byte-for-byte no matter how
// short they are. Any buffered bytes are returned as the final body
// slice.
func (m *Machine) CloseEOF() ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.stage == stageBody {
		return nil, nil
	}
	if m.stage == stageMagic && !m.strict {
		m.header = Header{}
		m.stage = stageBody
		m.need = 0
		rest := m.buf
		m.buf = nil
		return rest, nil
	}
	m.err = ErrTruncated
	return nil, m.err
}

// Done reports whether the machine has reached BODY: the header (or the
// fallback empty header) is available and all further bytes are body.
func (m *Machine) Done() bool { return m.stage == stageBody }

// Header returns the decoded header. Valid once Done reports true; the
// empty header means the fallback path was taken.
func (m *Machine) Header() Header { return m.header }

// Matched reports whether a configured marker was actually found, as
// opposed to the empty-header fallback.
func (m *Machine) Matched() bool { return m.matched }

// Stage is exposed for diagnostics.
func (m *Machine) Stage() string { return m.stage.String() }

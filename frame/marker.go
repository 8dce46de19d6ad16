package frame

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// MarkerLen is the fixed byte length of a marker token.
const MarkerLen = 4

// DefaultMarker is the token used when the caller doesn't configure one.
var DefaultMarker = []byte("PRLD")

// MarkerSet is the ordered set of tokens accepted as frame introducers.
// The first token is the one used for encoding; during decoding a match
// against any member is accepted.
type MarkerSet struct {
	markers [][]byte
	members mapset.Set[[MarkerLen]byte]
}

// NewMarkerSet normalizes the given tokens. With no arguments the set
// contains only DefaultMarker.
func NewMarkerSet(markers ...[]byte) (*MarkerSet, error) {
	if len(markers) == 0 {
		markers = [][]byte{DefaultMarker}
	}

	s := &MarkerSet{
		markers: make([][]byte, 0, len(markers)),
		members: mapset.NewThreadUnsafeSet[[MarkerLen]byte](),
	}
	for _, m := range markers {
		if len(m) != MarkerLen {
			return nil, ErrInvalidMarker
		}
		c := make([]byte, MarkerLen)
		copy(c, m)
		s.markers = append(s.markers, c)
		s.members.Add([MarkerLen]byte(c))
	}
	return s, nil
}

// Primary is the token written by Encode.
func (s *MarkerSet) Primary() []byte { return s.markers[0] }

func (s *MarkerSet) Contains(b []byte) bool {
	if len(b) != MarkerLen {
		return false
	}
	return s.members.Contains([MarkerLen]byte(b))
}

func (s *MarkerSet) Len() int { return len(s.markers) }

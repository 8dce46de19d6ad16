package prelude

import (
	"sync/atomic"

	"github.com/tomruk/prelude-go/frame"
)

type (
	HeaderCallback func(header frame.Header)
	// err is nil on a clean end of input. Always do a nil check.
	CloseCallback func(err error)
)

// Callbacks carries the out-of-band events of an Extractor. The header
// callback fires exactly once, before any body byte is forwarded.
type Callbacks struct {
	onHeader atomic.Value
	onClose  atomic.Value
}

func NewCallbacks() *Callbacks {
	c := new(Callbacks)
	c.Set(nil, nil)
	return c
}

func (c *Callbacks) OnHeader(header frame.Header) {
	f := c.onHeader.Load().(HeaderCallback)
	f(header)
}

func (c *Callbacks) OnClose(err error) {
	f := c.onClose.Load().(CloseCallback)
	f(err)
}

func (c *Callbacks) Set(onHeader HeaderCallback, onClose CloseCallback) {
	if onHeader != nil {
		c.onHeader.Store(onHeader)
	} else {
		var f HeaderCallback = func(header frame.Header) {}
		c.onHeader.Store(f)
	}

	if onClose != nil {
		c.onClose.Store(onClose)
	} else {
		var f CloseCallback = func(err error) {}
		c.onClose.Store(f)
	}
}
